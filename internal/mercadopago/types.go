package mercadopago

import "encoding/json"

// PaymentRequest is the charge body sent to POST /v1/payments.
type PaymentRequest struct {
	TransactionAmount   float64 `json:"transaction_amount"`
	Token               string  `json:"token,omitempty"`
	Description         string  `json:"description"`
	Installments        int     `json:"installments,omitempty"`
	PaymentMethodID     string  `json:"payment_method_id"`
	IssuerID            string  `json:"issuer_id,omitempty"`
	Payer               Payer   `json:"payer"`
	StatementDescriptor string  `json:"statement_descriptor,omitempty"`
	ExternalReference   string  `json:"external_reference"`
}

// Payer identifies who is being charged.
type Payer struct {
	Email          string         `json:"email"`
	Identification Identification `json:"identification"`
}

// Identification is the payer's tax document (CPF/CNPJ).
type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// Payment is the gateway's payment object, reduced to the fields this
// service reads.
type Payment struct {
	ID                 json.Number         `json:"id"`
	Status             string              `json:"status"`
	StatusDetail       string              `json:"status_detail"`
	ExternalReference  string              `json:"external_reference"`
	PointOfInteraction *PointOfInteraction `json:"point_of_interaction,omitempty"`
}

// PointOfInteraction carries the PIX interaction data.
type PointOfInteraction struct {
	TransactionData *TransactionData `json:"transaction_data,omitempty"`
}

// TransactionData holds the PIX QR payload.
type TransactionData struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
}

// Error is a gateway-reported failure (a response carrying an error field).
type Error struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return "mercadopago: " + e.Message
	}
	return "mercadopago: " + e.Code
}
