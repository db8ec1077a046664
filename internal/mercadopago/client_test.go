package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lupafinanceira/backend/pkg/logger"
)

func newTestClient(server *httptest.Server) *HTTPClient {
	client := NewClient("test-token", logger.NewNop())
	client.BaseURL = server.URL
	return client
}

func TestCreatePaymentSendsAuthAndIdempotency(t *testing.T) {
	var gotAuth, gotIdemKey, gotContentType string
	var gotBody PaymentRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payments" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotIdemKey = r.Header.Get("X-Idempotency-Key")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 123456, "status": "approved", "external_reference": "USER_u1_1"}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	payment, err := client.CreatePayment(context.Background(), &PaymentRequest{
		TransactionAmount: 29.90,
		Token:             "tok_x",
		PaymentMethodID:   "visa",
		ExternalReference: "USER_u1_1",
	}, "u1_1")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotIdemKey != "u1_1" {
		t.Errorf("X-Idempotency-Key = %q", gotIdemKey)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody.TransactionAmount != 29.90 {
		t.Errorf("request amount = %v", gotBody.TransactionAmount)
	}
	if payment.ID.String() != "123456" {
		t.Errorf("payment id = %q", payment.ID.String())
	}
	if payment.Status != "approved" {
		t.Errorf("payment status = %q", payment.Status)
	}
}

func TestCreatePaymentGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "bad_request", "message": "Invalid card token", "status": 400}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.CreatePayment(context.Background(), &PaymentRequest{}, "key")

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Code != "bad_request" || apiErr.Message != "Invalid card token" || apiErr.StatusCode != 400 {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestCreatePaymentErrorBodyWins(t *testing.T) {
	// Some gateway failures come back with 200 but an error field in the
	// body; the body is authoritative.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": "invalid_token", "message": "expired"}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.CreatePayment(context.Background(), &PaymentRequest{}, "key")

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Code != "invalid_token" {
		t.Errorf("code = %q", apiErr.Code)
	}
}

func TestGetPaymentStringID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/987" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "987", "status": "rejected", "status_detail": "cc_rejected_high_risk"}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	payment, err := client.GetPayment(context.Background(), "987")
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}

	if payment.ID.String() != "987" {
		t.Errorf("payment id = %q", payment.ID.String())
	}
	if payment.StatusDetail != "cc_rejected_high_risk" {
		t.Errorf("status detail = %q", payment.StatusDetail)
	}
}

func TestUnexpectedStatusWithoutErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.GetPayment(context.Background(), "1")

	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		t.Fatal("plain HTTP failure must not be a gateway-reported error")
	}
}
