package documents

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/homevia/homevia-backend/pkg/config"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(
		config.DocumentsConfig{BaseURL: "http://docs.test/v1", APIKey: "doc-key"},
		WithHTTPClient(&http.Client{Transport: rt}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGenerateReceiptRequest(t *testing.T) {
	const expectedURL = "http://docs.test/v1/documents/receipts"
	offerID := uuid.New()

	var capturedURL string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload["offerId"] != offerID.String() {
			t.Fatalf("unexpected offer id %v", payload["offerId"])
		}
		if payload["buyerName"] != "Ada Reyes" {
			t.Fatalf("unexpected buyer name %v", payload["buyerName"])
		}

		return &http.Response{
			StatusCode: http.StatusCreated,
			Body:       io.NopCloser(strings.NewReader(`{"documentRef":"receipts/rcpt_001.pdf"}`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, rt)

	ref, err := client.GenerateReceipt(context.Background(), ReceiptRequest{
		OfferID:         offerID,
		TransactionID:   uuid.New(),
		PaymentType:     "token",
		BuyerName:       "Ada Reyes",
		PropertyTitle:   "Sunset Villa",
		PropertyAddress: "12 Shore Rd",
		Amount:          decimal.NewFromInt(50_000),
		PaidAt:          time.Now(),
	})
	if err != nil {
		t.Fatalf("generate receipt: %v", err)
	}
	if ref != "receipts/rcpt_001.pdf" {
		t.Fatalf("unexpected document ref %q", ref)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("Authorization") != "Bearer doc-key" {
		t.Fatalf("authorization header missing")
	}
}

func TestGenerateSaleDeedServerError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(strings.NewReader(`template render failed`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, rt)

	_, err := client.GenerateSaleDeed(context.Background(), SaleDeedRequest{
		OfferID:    uuid.New(),
		BuyerName:  "Ada Reyes",
		SellerName: "Luis Ortega",
		SaleAmount: decimal.NewFromInt(1_000_000),
	})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDocumentGeneration {
		t.Fatalf("expected document generation code, got %v", err)
	}
	if !strings.Contains(err.Error(), "template render failed") {
		t.Fatalf("expected upstream message in error, got %v", err)
	}
}

func TestGenerateReceiptEmptyReference(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"documentRef":""}`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, rt)

	_, err := client.GenerateReceipt(context.Background(), ReceiptRequest{OfferID: uuid.New()})
	if err == nil {
		t.Fatal("expected error for empty document reference")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDocumentGeneration {
		t.Fatalf("expected document generation code, got %v", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(config.DocumentsConfig{}); err == nil {
		t.Fatal("expected error when base url missing")
	}
}
