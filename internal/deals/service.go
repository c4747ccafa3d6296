// Package deals implements the transaction ledger: offers moving from
// acceptance through token payment to final settlement, with the property
// status gate, payment audit rows, and generated deal documents.
package deals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/homevia/homevia-backend/internal/commission"
	"github.com/homevia/homevia-backend/internal/documents"
	"github.com/homevia/homevia-backend/internal/notifications"
	"github.com/homevia/homevia-backend/pkg/db/models"
	dbtypes "github.com/homevia/homevia-backend/pkg/db/types"
	"github.com/homevia/homevia-backend/pkg/enums"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
	"github.com/homevia/homevia-backend/pkg/logger"
	"github.com/homevia/homevia-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes the offer lifecycle transitions.
type Service interface {
	CreateOffer(ctx context.Context, buyerID uuid.UUID, input CreateOfferInput) (*models.Offer, error)
	AcceptOffer(ctx context.Context, actorID, offerID uuid.UUID) (*models.Offer, error)
	RejectOffer(ctx context.Context, actorID, offerID uuid.UUID) (*models.Offer, error)
	PayToken(ctx context.Context, buyerID uuid.UUID, input PaymentInput) (*PaymentResult, error)
	Finalize(ctx context.Context, buyerID uuid.UUID, input PaymentInput) (*FinalizeResult, error)
}

type service struct {
	tx         txRunner
	repo       Repository
	users      userFinder
	docs       documents.Gateway
	calculator *commission.Calculator
	dispatcher notifications.Dispatcher
	emitter    outboxEmitter
	logg       *logger.Logger
}

// CreateOfferInput carries a buyer's bid.
type CreateOfferInput struct {
	PropertyID uuid.UUID
	Amount     decimal.Decimal
}

// PaymentInput carries a payment against an offer.
type PaymentInput struct {
	OfferID uuid.UUID
	Amount  decimal.Decimal
	Method  string
}

// PaymentResult reports the outcome of a token payment.
type PaymentResult struct {
	Offer       *models.Offer      `json:"offer"`
	Transaction models.Transaction `json:"transaction"`
	ReceiptRef  string             `json:"receiptRef"`
}

// FinalizeResult reports the outcome of the final settlement.
type FinalizeResult struct {
	Offer       *models.Offer      `json:"offer"`
	Transaction models.Transaction `json:"transaction"`
	SaleDeedRef string             `json:"saleDeedRef"`
	Commission  *commission.Split  `json:"commission"`
}

// TokenPaidPayload is the outbox payload for offer.token_paid events.
type TokenPaidPayload struct {
	OfferID    uuid.UUID       `json:"offerId"`
	PropertyID uuid.UUID       `json:"propertyId"`
	BuyerID    uuid.UUID       `json:"buyerId"`
	Amount     decimal.Decimal `json:"amount"`
}

// CompletedPayload is the outbox payload for offer.completed events.
type CompletedPayload struct {
	OfferID        uuid.UUID       `json:"offerId"`
	PropertyID     uuid.UUID       `json:"propertyId"`
	BuyerID        uuid.UUID       `json:"buyerId"`
	SaleAmount     decimal.Decimal `json:"saleAmount"`
	PlatformAmount decimal.Decimal `json:"platformAmount"`
	AgentAmount    decimal.Decimal `json:"agentAmount"`
}

// NewService wires the deal ledger dependencies.
func NewService(tx txRunner, repo Repository, users userFinder, docs documents.Gateway, calculator *commission.Calculator, dispatcher notifications.Dispatcher, emitter outboxEmitter, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("deals repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if docs == nil {
		return nil, fmt.Errorf("document gateway required")
	}
	if calculator == nil {
		return nil, fmt.Errorf("commission calculator required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:         tx,
		repo:       repo,
		users:      users,
		docs:       docs,
		calculator: calculator,
		dispatcher: dispatcher,
		emitter:    emitter,
		logg:       logg,
	}, nil
}

func (s *service) CreateOffer(ctx context.Context, buyerID uuid.UUID, input CreateOfferInput) (*models.Offer, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer identity missing")
	}
	if input.PropertyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "property id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer amount must be positive")
	}

	var offer *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		property, err := repo.FindPropertyByID(ctx, input.PropertyID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
		}
		if property.Status != enums.PropertyStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "property is not accepting offers")
		}
		if property.SellerID == buyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "sellers cannot bid on their own property")
		}

		row := models.Offer{
			ID:         uuid.New(),
			BuyerID:    buyerID,
			PropertyID: input.PropertyID,
			Amount:     input.Amount,
			Status:     enums.OfferStatusPending,
		}
		if err := repo.CreateOffer(ctx, &row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
		}

		relatedType := "offer"
		if _, err := s.dispatcher.Dispatch(ctx, tx, notifications.DispatchInput{
			UserID:      property.SellerID,
			ActorID:     &buyerID,
			Title:       "New offer received",
			Message:     fmt.Sprintf("An offer of %s was placed on %s", row.Amount.StringFixed(2), property.Title),
			Type:        enums.NotificationTypeOfferUpdate,
			Channels:    dbtypes.ChannelList{enums.NotificationChannelInApp, enums.NotificationChannelEmail},
			RelatedType: &relatedType,
			RelatedID:   &row.ID,
		}); err != nil {
			return err
		}

		offer = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *service) AcceptOffer(ctx context.Context, actorID, offerID uuid.UUID) (*models.Offer, error) {
	return s.decideOffer(ctx, actorID, offerID, enums.OfferStatusAccepted, "Offer accepted", "Your offer was accepted. You can now pay the token amount.")
}

func (s *service) RejectOffer(ctx context.Context, actorID, offerID uuid.UUID) (*models.Offer, error) {
	return s.decideOffer(ctx, actorID, offerID, enums.OfferStatusRejected, "Offer rejected", "Your offer was rejected by the seller.")
}

func (s *service) decideOffer(ctx context.Context, actorID, offerID uuid.UUID, target enums.OfferStatus, title, message string) (*models.Offer, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity missing")
	}
	if offerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}

	var offer *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, err := repo.FindOfferByID(ctx, offerID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
		}

		property, err := repo.FindPropertyByID(ctx, row.PropertyID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
		}
		if !actorManagesProperty(actorID, property) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller or listing agent can decide offers")
		}
		if !row.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("offer cannot move from %s to %s", row.Status, target))
		}

		moved, err := repo.TransitionOffer(ctx, row.ID, row.Status, target, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offer status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer state changed concurrently")
		}
		row.Status = target

		relatedType := "offer"
		if _, err := s.dispatcher.Dispatch(ctx, tx, notifications.DispatchInput{
			UserID:      row.BuyerID,
			ActorID:     &actorID,
			Title:       title,
			Message:     message,
			Type:        enums.NotificationTypeOfferUpdate,
			Priority:    enums.NotificationPriorityHigh,
			Channels:    dbtypes.ChannelList{enums.NotificationChannelInApp, enums.NotificationChannelEmail},
			RelatedType: &relatedType,
			RelatedID:   &row.ID,
		}); err != nil {
			return err
		}

		offer = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// PayToken records the token payment that reserves the property. The receipt
// document is generated inside the transaction so a generation failure rolls
// everything back.
func (s *service) PayToken(ctx context.Context, buyerID uuid.UUID, input PaymentInput) (*PaymentResult, error) {
	if err := validatePayment(buyerID, input); err != nil {
		return nil, err
	}

	var result *PaymentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		offer, err := repo.FindOfferByID(ctx, input.OfferID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
		}
		if offer.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "offer belongs to a different buyer")
		}
		if offer.Status != enums.OfferStatusAccepted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("token payment requires an accepted offer, offer is %s", offer.Status))
		}

		property, err := repo.FindPropertyByID(ctx, offer.PropertyID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
		}
		if property.Status != enums.PropertyStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "property is already reserved or sold")
		}

		buyer, err := s.users.FindByID(ctx, buyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
		}

		txn := models.Transaction{
			ID:      uuid.New(),
			OfferID: offer.ID,
			BuyerID: buyerID,
			Amount:  input.Amount,
			Method:  input.Method,
			Type:    enums.TransactionTypeToken,
			Status:  enums.TransactionStatusSuccess,
		}
		if err := repo.CreateTransaction(ctx, &txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create token transaction")
		}

		receiptRef, err := s.docs.GenerateReceipt(ctx, documents.ReceiptRequest{
			OfferID:         offer.ID,
			TransactionID:   txn.ID,
			PaymentType:     enums.TransactionTypeToken,
			BuyerName:       buyer.FullName(),
			PropertyTitle:   property.Title,
			PropertyAddress: property.Address,
			Amount:          input.Amount,
			PaidAt:          time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := repo.AttachTransactionDocument(ctx, txn.ID, receiptRef); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach receipt to transaction")
		}
		txn.DocumentRef = &receiptRef

		verifiedAt := time.Now().UTC()
		payment := models.DealPayment{
			ID:                 uuid.New(),
			OfferID:            offer.ID,
			TransactionID:      txn.ID,
			Type:               enums.DealPaymentTypeToken,
			Amount:             input.Amount,
			VerificationStatus: enums.VerificationStatusVerified,
			VerifiedAt:         &verifiedAt,
		}
		if err := repo.CreateDealPayment(ctx, &payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create deal payment")
		}

		moved, err := repo.TransitionOffer(ctx, offer.ID, enums.OfferStatusAccepted, enums.OfferStatusTokenPaid, map[string]any{"receipt_ref": receiptRef})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offer status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer state changed concurrently")
		}
		moved, err = repo.TransitionProperty(ctx, property.ID, enums.PropertyStatusActive, enums.PropertyStatusReserved)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve property")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "property was reserved concurrently")
		}

		offer.Status = enums.OfferStatusTokenPaid
		offer.ReceiptRef = &receiptRef

		if err := s.notifyPaymentParties(ctx, tx, offer, property, buyerID,
			"Token payment received",
			fmt.Sprintf("Token payment of %s received for %s", input.Amount.StringFixed(2), property.Title),
		); err != nil {
			return err
		}

		if err := s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferTokenPaid,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID},
			Data: TokenPaidPayload{
				OfferID:    offer.ID,
				PropertyID: property.ID,
				BuyerID:    buyerID,
				Amount:     input.Amount,
			},
			Version: 1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue token paid event")
		}

		result = &PaymentResult{Offer: offer, Transaction: txn, ReceiptRef: receiptRef}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Finalize settles the balance, splits commission, generates the sale deed,
// and closes the deal.
func (s *service) Finalize(ctx context.Context, buyerID uuid.UUID, input PaymentInput) (*FinalizeResult, error) {
	if err := validatePayment(buyerID, input); err != nil {
		return nil, err
	}

	var result *FinalizeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		offer, err := repo.FindOfferByID(ctx, input.OfferID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
		}
		if offer.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "offer belongs to a different buyer")
		}
		if offer.Status != enums.OfferStatusTokenPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("settlement requires token payment first, offer is %s", offer.Status))
		}

		property, err := repo.FindPropertyByID(ctx, offer.PropertyID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
		}

		split, err := s.calculator.Calculate(offer.Amount)
		if err != nil {
			return err
		}

		buyer, err := s.users.FindByID(ctx, buyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
		}
		seller, err := s.users.FindByID(ctx, property.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
		}

		txn := models.Transaction{
			ID:      uuid.New(),
			OfferID: offer.ID,
			BuyerID: buyerID,
			Amount:  input.Amount,
			Method:  input.Method,
			Type:    enums.TransactionTypeFinal,
			Status:  enums.TransactionStatusSuccess,
		}
		if err := repo.CreateTransaction(ctx, &txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create final transaction")
		}

		deedRef, err := s.docs.GenerateSaleDeed(ctx, documents.SaleDeedRequest{
			OfferID:         offer.ID,
			BuyerName:       buyer.FullName(),
			SellerName:      seller.FullName(),
			PropertyTitle:   property.Title,
			PropertyAddress: property.Address,
			SaleAmount:      offer.Amount,
			ClosedAt:        time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := repo.AttachTransactionDocument(ctx, txn.ID, deedRef); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach deed to transaction")
		}
		txn.DocumentRef = &deedRef

		verifiedAt := time.Now().UTC()
		payment := models.DealPayment{
			ID:                 uuid.New(),
			OfferID:            offer.ID,
			TransactionID:      txn.ID,
			Type:               enums.DealPaymentTypeBalance,
			Amount:             input.Amount,
			VerificationStatus: enums.VerificationStatusVerified,
			VerifiedAt:         &verifiedAt,
		}
		if err := repo.CreateDealPayment(ctx, &payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create deal payment")
		}

		moved, err := repo.TransitionOffer(ctx, offer.ID, enums.OfferStatusTokenPaid, enums.OfferStatusCompleted, map[string]any{"sale_deed_ref": deedRef})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offer status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer state changed concurrently")
		}
		moved, err = repo.TransitionProperty(ctx, property.ID, enums.PropertyStatusReserved, enums.PropertyStatusSold)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark property sold")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "property state changed concurrently")
		}

		offer.Status = enums.OfferStatusCompleted
		offer.SaleDeedRef = &deedRef

		if err := s.notifyPaymentParties(ctx, tx, offer, property, buyerID,
			"Deal completed",
			fmt.Sprintf("The sale of %s is complete. The sale deed is available.", property.Title),
		); err != nil {
			return err
		}

		if err := s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferCompleted,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID},
			Data: CompletedPayload{
				OfferID:        offer.ID,
				PropertyID:     property.ID,
				BuyerID:        buyerID,
				SaleAmount:     offer.Amount,
				PlatformAmount: split.PlatformAmount,
				AgentAmount:    split.AgentAmount,
			},
			Version: 1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue offer completed event")
		}

		result = &FinalizeResult{Offer: offer, Transaction: txn, SaleDeedRef: deedRef, Commission: split}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) notifyPaymentParties(ctx context.Context, tx *gorm.DB, offer *models.Offer, property *models.Property, actorID uuid.UUID, title, message string) error {
	relatedType := "offer"
	recipients := []uuid.UUID{offer.BuyerID, property.SellerID}
	for _, userID := range recipients {
		if _, err := s.dispatcher.Dispatch(ctx, tx, notifications.DispatchInput{
			UserID:      userID,
			ActorID:     &actorID,
			Title:       title,
			Message:     message,
			Type:        enums.NotificationTypePayment,
			Priority:    enums.NotificationPriorityHigh,
			Channels:    dbtypes.ChannelList{enums.NotificationChannelInApp, enums.NotificationChannelEmail},
			RelatedType: &relatedType,
			RelatedID:   &offer.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func actorManagesProperty(actorID uuid.UUID, property *models.Property) bool {
	if property.SellerID == actorID {
		return true
	}
	return property.AgentID != nil && *property.AgentID == actorID
}

func validatePayment(buyerID uuid.UUID, input PaymentInput) error {
	if buyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer identity missing")
	}
	if input.OfferID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if input.Method == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}
	return nil
}
