package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lupafinanceira/backend/pkg/logger"
)

const defaultBaseURL = "https://api.mercadopago.com"

// PaymentMethodPix is the gateway's fixed payment-method id for PIX charges.
const PaymentMethodPix = "pix"

// Client defines the gateway operations the service layer depends on.
type Client interface {
	// CreatePayment submits a charge. The idempotency key protects against
	// duplicate charges on client retry; the gateway deduplicates by it.
	CreatePayment(ctx context.Context, req *PaymentRequest, idempotencyKey string) (*Payment, error)

	// GetPayment fetches the authoritative payment object by id. Used by the
	// webhook receiver, which never trusts the webhook payload itself.
	GetPayment(ctx context.Context, id string) (*Payment, error)
}

// HTTPClient talks to the MercadoPago REST API.
type HTTPClient struct {
	AccessToken string
	BaseURL     string
	HTTPClient  *http.Client

	log *logger.Logger
}

// NewClient creates a gateway client with a sane request timeout.
func NewClient(accessToken string, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		AccessToken: accessToken,
		BaseURL:     defaultBaseURL,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		log:         log,
	}
}

func (c *HTTPClient) CreatePayment(ctx context.Context, payReq *PaymentRequest, idempotencyKey string) (*Payment, error) {
	body, err := json.Marshal(payReq)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)
	httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)

	return c.do(httpReq, "CreatePayment")
}

func (c *HTTPClient) GetPayment(ctx context.Context, id string) (*Payment, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/payments/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)

	return c.do(httpReq, "GetPayment")
}

// do executes the request and decodes either a payment object or a
// gateway-reported error. Any body carrying an error field is a hard
// failure regardless of HTTP status.
func (c *HTTPClient) do(req *http.Request, operation string) (*Payment, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.log.Errorw("MercadoPago request failed", "operation", operation, "error", err)
		return nil, fmt.Errorf("mercadopago: %s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to read %s response: %w", operation, err)
	}

	// Error bodies have a different shape than payment objects (their
	// "status" is numeric), so the error envelope is probed first.
	var errEnvelope struct {
		ErrorCode string `json:"error"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(body, &errEnvelope); err != nil {
		c.log.Errorw("Failed to decode MercadoPago response", "operation", operation, "error", err, "statusCode", resp.StatusCode)
		return nil, fmt.Errorf("mercadopago: failed to decode %s response: %w", operation, err)
	}

	if errEnvelope.ErrorCode != "" {
		apiErr := &Error{
			Code:       errEnvelope.ErrorCode,
			Message:    errEnvelope.Message,
			StatusCode: resp.StatusCode,
		}
		c.log.Errorw("MercadoPago API error",
			"operation", operation,
			"code", apiErr.Code,
			"message", apiErr.Message,
			"statusCode", apiErr.StatusCode,
		)
		return nil, apiErr
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Errorw("Unexpected MercadoPago response status", "operation", operation, "statusCode", resp.StatusCode)
		return nil, fmt.Errorf("mercadopago: %s returned status %d", operation, resp.StatusCode)
	}

	var payment Payment
	if err := json.Unmarshal(body, &payment); err != nil {
		c.log.Errorw("Failed to decode MercadoPago payment", "operation", operation, "error", err)
		return nil, fmt.Errorf("mercadopago: failed to decode %s response: %w", operation, err)
	}
	return &payment, nil
}
