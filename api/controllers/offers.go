package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/homevia/homevia-backend/api/responses"
	"github.com/homevia/homevia-backend/api/validators"
	"github.com/homevia/homevia-backend/internal/deals"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
	"github.com/homevia/homevia-backend/pkg/logger"
)

type createOfferBody struct {
	PropertyID string `json:"propertyId" validate:"required,uuid4"`
	Amount     string `json:"amount" validate:"required"`
}

type paymentBody struct {
	Amount string `json:"amount" validate:"required"`
	Method string `json:"method" validate:"required"`
}

// CreateOffer places a bid on a property for the caller.
func CreateOffer(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createOfferBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		propertyID, err := uuid.Parse(body.PropertyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid property id"))
			return
		}
		amount, err := decimal.NewFromString(body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		offer, err := svc.CreateOffer(r.Context(), userID, deals.CreateOfferInput{PropertyID: propertyID, Amount: amount})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

// AcceptOffer lets the seller or listing agent accept a pending offer.
func AcceptOffer(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, offerID, err := offerCall(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.AcceptOffer(r.Context(), userID, offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// RejectOffer lets the seller or listing agent decline an offer.
func RejectOffer(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, offerID, err := offerCall(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.RejectOffer(r.Context(), userID, offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// PayOfferToken records the reservation payment for an accepted offer.
func PayOfferToken(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, offerID, err := offerCall(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := decodePayment(r, offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PayToken(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// FinalizeOffer settles the balance and completes the sale.
func FinalizeOffer(svc deals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, offerID, err := offerCall(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := decodePayment(r, offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Finalize(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func decodePayment(r *http.Request, offerID uuid.UUID) (deals.PaymentInput, error) {
	var body paymentBody
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return deals.PaymentInput{}, err
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return deals.PaymentInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	return deals.PaymentInput{OfferID: offerID, Amount: amount, Method: body.Method}, nil
}

func offerCall(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, err := callerID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	offerID, err := uuid.Parse(chi.URLParam(r, "offerId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid offer id")
	}
	return userID, offerID, nil
}
