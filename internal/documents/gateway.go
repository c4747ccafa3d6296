// Package documents integrates with the external document generation service
// that renders payment receipts and sale deeds.
package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/homevia/homevia-backend/pkg/config"
	"github.com/homevia/homevia-backend/pkg/enums"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("documents base url is required")

// ReceiptRequest describes a payment receipt to render.
type ReceiptRequest struct {
	OfferID         uuid.UUID             `json:"offerId"`
	TransactionID   uuid.UUID             `json:"transactionId"`
	PaymentType     enums.TransactionType `json:"paymentType"`
	BuyerName       string                `json:"buyerName"`
	PropertyTitle   string                `json:"propertyTitle"`
	PropertyAddress string                `json:"propertyAddress"`
	Amount          decimal.Decimal       `json:"amount"`
	PaidAt          time.Time             `json:"paidAt"`
}

// SaleDeedRequest describes the final sale deed to render.
type SaleDeedRequest struct {
	OfferID         uuid.UUID       `json:"offerId"`
	BuyerName       string          `json:"buyerName"`
	SellerName      string          `json:"sellerName"`
	PropertyTitle   string          `json:"propertyTitle"`
	PropertyAddress string          `json:"propertyAddress"`
	SaleAmount      decimal.Decimal `json:"saleAmount"`
	ClosedAt        time.Time       `json:"closedAt"`
}

// Gateway renders deal documents and returns opaque document references.
type Gateway interface {
	GenerateReceipt(ctx context.Context, req ReceiptRequest) (string, error)
	GenerateSaleDeed(ctx context.Context, req SaleDeedRequest) (string, error)
}

// Client talks to the document service over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the document service client from configuration.
func NewClient(cfg config.DocumentsConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}

	return client, nil
}

// GenerateReceipt renders a receipt for a token or final payment.
func (c *Client) GenerateReceipt(ctx context.Context, req ReceiptRequest) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDocumentGeneration, "document client not configured")
	}
	if req.OfferID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "offer id is required")
	}
	return c.generate(ctx, "documents/receipts", req)
}

// GenerateSaleDeed renders the closing deed once the balance is settled.
func (c *Client) GenerateSaleDeed(ctx context.Context, req SaleDeedRequest) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDocumentGeneration, "document client not configured")
	}
	if req.OfferID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "offer id is required")
	}
	return c.generate(ctx, "documents/sale-deeds", req)
}

func (c *Client) generate(ctx context.Context, path string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDocumentGeneration, err, "marshal document request")
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, path)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDocumentGeneration, err, "build document request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDocumentGeneration, err, "execute document request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", pkgerrors.Wrap(
			pkgerrors.CodeDocumentGeneration,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"document generation failed",
		)
	}

	var apiResp struct {
		DocumentRef string `json:"documentRef"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDocumentGeneration, err, "decode document response")
	}
	if strings.TrimSpace(apiResp.DocumentRef) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDocumentGeneration, "document service returned empty reference")
	}

	return apiResp.DocumentRef, nil
}
