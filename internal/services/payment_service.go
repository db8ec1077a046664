package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/lupafinanceira/backend/internal/kafka"
	"github.com/lupafinanceira/backend/internal/mercadopago"
	"github.com/lupafinanceira/backend/internal/metrics"
	"github.com/lupafinanceira/backend/internal/models"
	"github.com/lupafinanceira/backend/internal/repository"
	"github.com/lupafinanceira/backend/pkg/logger"
)

// There is a single subscription plan; the price is fixed per charge.
const (
	PlanAmount          = 29.90
	planDescription     = "Lupa Financeira - Plano Básico Mensal"
	statementDescriptor = "LUPA FINANCEIRA"
	subscriptionPeriod  = 30 * 24 * time.Hour
)

// Payment methods accepted on the checkout request.
const (
	MethodCard = "card"
	MethodPix  = "pix"
)

// Webhook event type handled by ProcessWebhook; everything else is
// acknowledged and ignored.
const webhookTypePayment = "payment"

var (
	// ErrInvalidPaymentMethod means the request carried an unknown
	// paymentMethod discriminator.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// statusMessages maps gateway statuses and rejection sub-codes to the
// user-facing copy shown at checkout. Detail codes take precedence over the
// coarse status.
var statusMessages = map[string]string{
	"approved":                             "Pagamento aprovado!",
	"pending":                              "Pagamento pendente. Aguarde a confirmação.",
	"in_process":                           "Pagamento em processamento.",
	"rejected":                             "Pagamento recusado.",
	"cc_rejected_insufficient_amount":      "Saldo insuficiente no cartão.",
	"cc_rejected_bad_filled_card_number":   "Número do cartão inválido.",
	"cc_rejected_bad_filled_security_code": "Código de segurança inválido.",
	"cc_rejected_call_for_authorize":       "Entre em contato com seu banco para autorizar.",
	"cc_rejected_card_disabled":            "Cartão desabilitado.",
	"cc_rejected_high_risk":                "Pagamento recusado por segurança.",
}

// PaymentStatusMessage resolves the message for a status/sub-code pair,
// falling back to a generic error when neither is known.
func PaymentStatusMessage(status, statusDetail string) string {
	if msg, ok := statusMessages[statusDetail]; ok {
		return msg
	}
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return "Erro no pagamento."
}

// CardData is the card branch of a payment request. The token is pre-minted
// by the client-side tokenization step.
type CardData struct {
	Token                string
	Email                string
	IdentificationNumber string
	IdentificationType   string
	Installments         int
	PaymentMethodID      string
	IssuerID             string
}

// PixData is the PIX branch of a payment request.
type PixData struct {
	Email string
	CPF   string
}

// CreatePaymentInput is a normalized internal payment request.
type CreatePaymentInput struct {
	UserID string
	Method string
	Card   *CardData
	Pix    *PixData
}

// CreatePaymentOutput is the normalized result returned to the checkout
// client.
type CreatePaymentOutput struct {
	Success      bool
	Status       string
	StatusDetail string
	PaymentID    string
	Message      string
	QRCode       string
	QRCodeBase64 string
}

// PaymentService converts payment requests into gateway charges and
// persisted subscription rows, and applies webhook status updates.
type PaymentService struct {
	subRepo  repository.SubscriptionRepository
	gateway  mercadopago.Client
	producer kafka.Producer // may be nil; event publishing is then skipped
	metrics  metrics.PaymentMetrics
	log      *logger.Logger
}

// NewPaymentService wires the payment service.
func NewPaymentService(
	subRepo repository.SubscriptionRepository,
	gateway mercadopago.Client,
	producer kafka.Producer,
	m metrics.PaymentMetrics,
	log *logger.Logger,
) *PaymentService {
	if producer == nil {
		log.Warnw("Kafka producer is nil, payment event publishing will be skipped")
	}
	return &PaymentService{
		subRepo:  subRepo,
		gateway:  gateway,
		producer: producer,
		metrics:  m,
		log:      log,
	}
}

// CreatePayment charges the gateway and persists the resulting subscription.
// Gateway failures (reported or network) return an error and persist
// nothing; persistence failures after a successful charge do NOT fail the
// request — they are logged and dead-lettered instead.
func (s *PaymentService) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentOutput, error) {
	now := time.Now()
	externalReference := fmt.Sprintf("USER_%s_%d", input.UserID, now.UnixMilli())

	var (
		gatewayReq     *mercadopago.PaymentRequest
		idempotencyKey string
		methodTag      string
	)

	switch input.Method {
	case MethodCard:
		if input.Card == nil {
			return nil, ErrInvalidPaymentMethod
		}
		installments := input.Card.Installments
		if installments == 0 {
			installments = 1
		}
		gatewayReq = &mercadopago.PaymentRequest{
			TransactionAmount: PlanAmount,
			Token:             input.Card.Token,
			Description:       planDescription,
			Installments:      installments,
			PaymentMethodID:   input.Card.PaymentMethodID,
			IssuerID:          input.Card.IssuerID,
			Payer: mercadopago.Payer{
				Email: input.Card.Email,
				Identification: mercadopago.Identification{
					Type:   input.Card.IdentificationType,
					Number: stripNonDigits(input.Card.IdentificationNumber),
				},
			},
			StatementDescriptor: statementDescriptor,
			ExternalReference:   externalReference,
		}
		idempotencyKey = fmt.Sprintf("%s_%d", input.UserID, now.UnixMilli())
		methodTag = models.PaymentMethodCreditCard

	case MethodPix:
		if input.Pix == nil {
			return nil, ErrInvalidPaymentMethod
		}
		gatewayReq = &mercadopago.PaymentRequest{
			TransactionAmount: PlanAmount,
			Description:       planDescription,
			PaymentMethodID:   mercadopago.PaymentMethodPix,
			Payer: mercadopago.Payer{
				Email: input.Pix.Email,
				Identification: mercadopago.Identification{
					Type:   "CPF",
					Number: stripNonDigits(input.Pix.CPF),
				},
			},
			ExternalReference: externalReference,
		}
		idempotencyKey = fmt.Sprintf("%s_pix_%d", input.UserID, now.UnixMilli())
		methodTag = models.PaymentMethodPix

	default:
		return nil, ErrInvalidPaymentMethod
	}

	s.log.Infow("Processing payment", "method", input.Method, "userID", input.UserID)
	s.metrics.IncPaymentCreated(methodTag)

	payment, err := s.gateway.CreatePayment(ctx, gatewayReq, idempotencyKey)
	if err != nil {
		s.metrics.IncGatewayError("CreatePayment")
		return nil, err
	}

	paymentID := payment.ID.String()
	s.metrics.IncPaymentStatus(methodTag, payment.Status)
	s.metrics.ObservePaymentAmount(PlanAmount, methodTag, payment.Status)

	// Persist unconditionally after any structurally valid gateway response.
	sub := &models.Subscription{
		UserID:            input.UserID,
		PaymentID:         paymentID,
		ExternalReference: externalReference,
		Status:            models.SubscriptionStatusPending,
		Amount:            PlanAmount,
		PaymentMethod:     methodTag,
	}
	if input.Method == MethodCard {
		if payment.Status == models.SubscriptionStatusApproved {
			sub.Status = models.SubscriptionStatusApproved
		}
		billingDate := now.Add(subscriptionPeriod)
		sub.NextBillingDate = &billingDate
		sub.ExpiresAt = &billingDate
	}

	if err := s.subRepo.Create(ctx, sub); err != nil {
		// The charge already happened; do not fail the request. Emit a
		// durable dead letter so the gap is recoverable.
		s.log.Errorw("Failed to persist subscription after charge",
			"error", err, "paymentID", paymentID, "userID", input.UserID)
		s.publishEvent(ctx, kafka.TopicPaymentPersistenceFailed, sub, err.Error())
	} else {
		go s.publishEvent(context.WithoutCancel(ctx), kafka.TopicPaymentCreated, sub, "")
	}

	return s.buildOutput(input.Method, payment, paymentID), nil
}

func (s *PaymentService) buildOutput(method string, payment *mercadopago.Payment, paymentID string) *CreatePaymentOutput {
	if method == MethodPix {
		// PIX is inherently asynchronous: the charge settles only after the
		// payer scans the QR code, so the response is always a pending
		// success carrying the interaction data.
		out := &CreatePaymentOutput{
			Success:   true,
			Status:    models.SubscriptionStatusPending,
			PaymentID: paymentID,
			Message:   "QR Code gerado! Escaneie para pagar.",
		}
		if payment.PointOfInteraction != nil && payment.PointOfInteraction.TransactionData != nil {
			out.QRCode = payment.PointOfInteraction.TransactionData.QRCode
			out.QRCodeBase64 = payment.PointOfInteraction.TransactionData.QRCodeBase64
		}
		return out
	}

	if payment.Status == models.SubscriptionStatusApproved {
		return &CreatePaymentOutput{
			Success:   true,
			Status:    payment.Status,
			PaymentID: paymentID,
			Message:   "Pagamento aprovado! Redirecionando...",
		}
	}

	return &CreatePaymentOutput{
		Success:      false,
		Status:       payment.Status,
		StatusDetail: payment.StatusDetail,
		Message:      PaymentStatusMessage(payment.Status, payment.StatusDetail),
	}
}

// ProcessWebhook applies a gateway-pushed status change. The webhook payload
// is not trusted: the authoritative payment state is re-fetched from the
// gateway by id. Unknown event types and unknown statuses are no-ops.
func (s *PaymentService) ProcessWebhook(ctx context.Context, eventType, paymentID string) error {
	if eventType != webhookTypePayment {
		s.log.Debugw("Ignoring webhook event of unhandled type", "type", eventType)
		return nil
	}

	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		s.metrics.IncGatewayError("GetPayment")
		return fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}

	switch payment.Status {
	case models.SubscriptionStatusApproved:
		billingDate := time.Now().Add(subscriptionPeriod)
		rows, err := s.subRepo.UpdateStatusByPaymentID(ctx, paymentID, models.SubscriptionStatusApproved, &billingDate, &billingDate)
		if err != nil {
			return fmt.Errorf("failed to approve subscription for payment %s: %w", paymentID, err)
		}
		s.afterWebhookUpdate(ctx, paymentID, models.SubscriptionStatusApproved, rows)

	case models.SubscriptionStatusRejected:
		rows, err := s.subRepo.UpdateStatusByPaymentID(ctx, paymentID, models.SubscriptionStatusRejected, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to reject subscription for payment %s: %w", paymentID, err)
		}
		s.afterWebhookUpdate(ctx, paymentID, models.SubscriptionStatusRejected, rows)

	default:
		s.log.Debugw("Ignoring webhook for non-final payment status", "paymentID", paymentID, "status", payment.Status)
	}

	return nil
}

func (s *PaymentService) afterWebhookUpdate(ctx context.Context, paymentID, status string, rows int64) {
	if rows == 0 {
		// The update matched nothing — most likely the original persist
		// failed. Acknowledged to the gateway regardless, but visible here.
		s.log.Warnw("Webhook update matched no subscription row", "paymentID", paymentID, "status", status)
		return
	}
	s.log.Infow("Subscription updated from webhook", "paymentID", paymentID, "status", status)
	go s.publishEvent(context.WithoutCancel(ctx), kafka.TopicPaymentUpdated, &models.Subscription{
		PaymentID: paymentID,
		Status:    status,
	}, "")
}

func (s *PaymentService) publishEvent(ctx context.Context, topic string, sub *models.Subscription, detail string) {
	if s.producer == nil {
		return
	}

	event := &models.PaymentEvent{
		EventID:       uuid.NewString(),
		Type:          topic,
		OccurredAt:    time.Now(),
		PaymentID:     sub.PaymentID,
		UserID:        sub.UserID,
		Status:        sub.Status,
		PaymentMethod: sub.PaymentMethod,
		Amount:        sub.Amount,
		Detail:        detail,
	}
	if err := s.producer.PublishPaymentEvent(ctx, topic, event); err != nil {
		s.log.Errorw("Failed to publish payment event", "error", err, "topic", topic, "paymentID", sub.PaymentID)
	}
}

func stripNonDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
