package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lupafinanceira/backend/internal/mercadopago"
	"github.com/lupafinanceira/backend/internal/services"
	"github.com/lupafinanceira/backend/pkg/logger"
	"github.com/lupafinanceira/backend/pkg/req"
	"github.com/lupafinanceira/backend/pkg/res"
)

// PaymentHandler handles checkout payment requests.
type PaymentHandler struct {
	service   *services.PaymentService
	publicKey string
	log       *logger.Logger
}

// NewPaymentHandler creates a new PaymentHandler. The gateway public key is
// served to clients for card tokenization.
func NewPaymentHandler(service *services.PaymentService, publicKey string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:   service,
		publicKey: publicKey,
		log:       log,
	}
}

type createPaymentRequest struct {
	PaymentMethod string          `json:"paymentMethod" validate:"required"`
	FormData      json.RawMessage `json:"formData" validate:"required"`
	UserID        string          `json:"userId" validate:"required"`
}

type cardFormData struct {
	Token                string `json:"token" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	IdentificationNumber string `json:"identificationNumber" validate:"required"`
	IdentificationType   string `json:"identificationType" validate:"required"`
	Installments         int    `json:"installments"`
	PaymentMethodID      string `json:"paymentMethodId" validate:"required"`
	IssuerID             string `json:"issuerId"`
}

type pixFormData struct {
	Email string `json:"email" validate:"required,email"`
	CPF   string `json:"cpf" validate:"required"`
}

type createPaymentResponse struct {
	Success      bool   `json:"success"`
	Status       string `json:"status,omitempty"`
	StatusDetail string `json:"statusDetail,omitempty"`
	PaymentID    string `json:"paymentId,omitempty"`
	Message      string `json:"message,omitempty"`
	QRCode       string `json:"qrCode,omitempty"`
	QRCodeBase64 string `json:"qrCodeBase64,omitempty"`
}

// CreatePayment handles POST /payments.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := req.Decode[createPaymentRequest](c.Request.Body)
	if err != nil {
		h.log.Errorw("Failed to decode payment request body", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Success: false,
			Error:   "invalid request body",
			Message: "Erro ao processar pagamento. Tente novamente.",
		}, http.StatusBadRequest)
		c.Abort()
		return
	}
	if err := req.IsValid(body); err != nil {
		h.log.Errorw("Payment request validation failed", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Erro ao processar pagamento. Tente novamente.",
		}, http.StatusBadRequest)
		c.Abort()
		return
	}

	input, err := h.buildInput(body)
	if err != nil {
		h.log.Warnw("Rejecting payment request", "error", err, "method", body.PaymentMethod, "userID", body.UserID)
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Success: false,
			Message: "Método de pagamento inválido",
		}, http.StatusBadRequest)
		c.Abort()
		return
	}

	output, err := h.service.CreatePayment(ctx, input)
	if err != nil {
		h.respondPaymentError(c, body.PaymentMethod, err)
		return
	}

	res.JsonResponse(c.Writer, createPaymentResponse{
		Success:      output.Success,
		Status:       output.Status,
		StatusDetail: output.StatusDetail,
		PaymentID:    output.PaymentID,
		Message:      output.Message,
		QRCode:       output.QRCode,
		QRCodeBase64: output.QRCodeBase64,
	}, http.StatusOK)
}

// buildInput decodes the method-specific formData branch.
func (h *PaymentHandler) buildInput(body createPaymentRequest) (services.CreatePaymentInput, error) {
	input := services.CreatePaymentInput{
		UserID: body.UserID,
		Method: body.PaymentMethod,
	}

	switch body.PaymentMethod {
	case services.MethodCard:
		var form cardFormData
		if err := json.Unmarshal(body.FormData, &form); err != nil {
			return input, err
		}
		if err := req.IsValid(form); err != nil {
			return input, err
		}
		input.Card = &services.CardData{
			Token:                form.Token,
			Email:                form.Email,
			IdentificationNumber: form.IdentificationNumber,
			IdentificationType:   form.IdentificationType,
			Installments:         form.Installments,
			PaymentMethodID:      form.PaymentMethodID,
			IssuerID:             form.IssuerID,
		}
	case services.MethodPix:
		var form pixFormData
		if err := json.Unmarshal(body.FormData, &form); err != nil {
			return input, err
		}
		if err := req.IsValid(form); err != nil {
			return input, err
		}
		input.Pix = &services.PixData{Email: form.Email, CPF: form.CPF}
	default:
		return input, services.ErrInvalidPaymentMethod
	}

	return input, nil
}

func (h *PaymentHandler) respondPaymentError(c *gin.Context, method string, err error) {
	defer c.Abort()

	if errors.Is(err, services.ErrInvalidPaymentMethod) {
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Success: false,
			Message: "Método de pagamento inválido",
		}, http.StatusBadRequest)
		return
	}

	// Gateway-reported failures relay the gateway's message with a 400;
	// everything else (network failures included) is an internal error.
	var gwErr *mercadopago.Error
	if errors.As(err, &gwErr) {
		errMsg := gwErr.Message
		userMsg := gwErr.Message
		if method == services.MethodPix {
			if errMsg == "" {
				errMsg = "Erro ao gerar PIX"
			}
			if userMsg == "" {
				userMsg = "Erro ao gerar QR Code. Tente novamente."
			}
		} else {
			if errMsg == "" {
				errMsg = "Erro ao processar pagamento"
			}
			if userMsg == "" {
				userMsg = "Erro ao processar pagamento. Tente novamente."
			}
		}
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Success: false,
			Error:   errMsg,
			Message: userMsg,
		}, http.StatusBadRequest)
		return
	}

	h.log.Errorw("Unexpected error processing payment", "error", err, "method", method)
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Success: false,
		Error:   err.Error(),
		Message: "Erro ao processar pagamento. Tente novamente.",
	}, http.StatusInternalServerError)
}

// GetPublicKey handles GET /payments/public-key. Clients need the gateway's
// public key to tokenize card details before calling CreatePayment.
func (h *PaymentHandler) GetPublicKey(c *gin.Context) {
	if h.publicKey == "" {
		res.JsonResponse(c.Writer, gin.H{"error": "MP_PUBLIC_KEY not configured"}, http.StatusInternalServerError)
		c.Abort()
		return
	}
	res.JsonResponse(c.Writer, gin.H{"publicKey": h.publicKey}, http.StatusOK)
}
