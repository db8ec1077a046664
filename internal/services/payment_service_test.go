package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lupafinanceira/backend/internal/kafka"
	"github.com/lupafinanceira/backend/internal/mercadopago"
	"github.com/lupafinanceira/backend/internal/metrics"
	"github.com/lupafinanceira/backend/internal/models"
	"github.com/lupafinanceira/backend/pkg/logger"
)

type statusUpdate struct {
	paymentID       string
	status          string
	nextBillingDate *time.Time
	expiresAt       *time.Time
}

type fakeSubRepo struct {
	mu         sync.Mutex
	created    []*models.Subscription
	createErr  error
	updates    []statusUpdate
	updateRows int64
	updateErr  error
}

func (f *fakeSubRepo) Create(_ context.Context, sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, sub)
	return nil
}

func (f *fakeSubRepo) UpdateStatusByPaymentID(_ context.Context, paymentID, status string, nextBillingDate, expiresAt *time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	f.updates = append(f.updates, statusUpdate{paymentID, status, nextBillingDate, expiresAt})
	return f.updateRows, nil
}

func (f *fakeSubRepo) GetByPaymentID(_ context.Context, paymentID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.created {
		if sub.PaymentID == paymentID {
			return sub, nil
		}
	}
	return nil, errors.New("not found")
}

type fakeGateway struct {
	createCalls   int
	getCalls      int
	lastRequest   *mercadopago.PaymentRequest
	lastIdemKey   string
	createPayment *mercadopago.Payment
	createErr     error
	getPayment    *mercadopago.Payment
	getErr        error
}

func (f *fakeGateway) CreatePayment(_ context.Context, req *mercadopago.PaymentRequest, idempotencyKey string) (*mercadopago.Payment, error) {
	f.createCalls++
	f.lastRequest = req
	f.lastIdemKey = idempotencyKey
	return f.createPayment, f.createErr
}

func (f *fakeGateway) GetPayment(_ context.Context, _ string) (*mercadopago.Payment, error) {
	f.getCalls++
	return f.getPayment, f.getErr
}

type publishedEvent struct {
	topic string
	event *models.PaymentEvent
}

type fakeProducer struct {
	mu        sync.Mutex
	published []publishedEvent
}

func (f *fakeProducer) PublishPaymentEvent(_ context.Context, topic string, event *models.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedEvent{topic, event})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func (f *fakeProducer) events() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedEvent(nil), f.published...)
}

func newTestPaymentService(repo *fakeSubRepo, gw *fakeGateway, producer kafka.Producer) *PaymentService {
	m := metrics.NewPaymentMetrics(prometheus.NewRegistry())
	return NewPaymentService(repo, gw, producer, m, logger.NewNop())
}

func TestCreatePaymentCardApproved(t *testing.T) {
	repo := &fakeSubRepo{}
	gw := &fakeGateway{
		createPayment: &mercadopago.Payment{
			ID:     json.Number("12345"),
			Status: models.SubscriptionStatusApproved,
		},
	}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	out, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		UserID: "user-1",
		Method: MethodCard,
		Card: &CardData{
			Token:                "tok_abc",
			Email:                "user@example.com",
			IdentificationNumber: "123.456.789-00",
			IdentificationType:   "CPF",
			PaymentMethodID:      "visa",
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if !out.Success {
		t.Error("expected success output")
	}
	if out.Message != "Pagamento aprovado! Redirecionando..." {
		t.Errorf("unexpected message: %q", out.Message)
	}
	if out.PaymentID != "12345" {
		t.Errorf("unexpected payment id: %q", out.PaymentID)
	}

	req := gw.lastRequest
	if req.TransactionAmount != PlanAmount {
		t.Errorf("transaction amount = %v, want %v", req.TransactionAmount, PlanAmount)
	}
	if req.StatementDescriptor != "LUPA FINANCEIRA" {
		t.Errorf("unexpected statement descriptor: %q", req.StatementDescriptor)
	}
	if !strings.HasPrefix(req.ExternalReference, "USER_user-1_") {
		t.Errorf("unexpected external reference: %q", req.ExternalReference)
	}
	if req.Payer.Identification.Number != "12345678900" {
		t.Errorf("identification number not normalized: %q", req.Payer.Identification.Number)
	}
	if req.Installments != 1 {
		t.Errorf("installments = %d, want default 1", req.Installments)
	}
	if !strings.HasPrefix(gw.lastIdemKey, "user-1_") || strings.Contains(gw.lastIdemKey, "pix") {
		t.Errorf("unexpected idempotency key: %q", gw.lastIdemKey)
	}

	if len(repo.created) != 1 {
		t.Fatalf("created rows = %d, want 1", len(repo.created))
	}
	sub := repo.created[0]
	if sub.Status != models.SubscriptionStatusApproved {
		t.Errorf("subscription status = %q, want approved", sub.Status)
	}
	if sub.NextBillingDate == nil || sub.ExpiresAt == nil {
		t.Error("card subscription must carry billing dates")
	}
	if sub.ExternalReference != req.ExternalReference {
		t.Errorf("external reference mismatch: %q vs %q", sub.ExternalReference, req.ExternalReference)
	}
}

func TestCreatePaymentCardRejected(t *testing.T) {
	repo := &fakeSubRepo{}
	gw := &fakeGateway{
		createPayment: &mercadopago.Payment{
			ID:           json.Number("777"),
			Status:       "rejected",
			StatusDetail: "cc_rejected_insufficient_amount",
		},
	}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	out, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		UserID: "user-2",
		Method: MethodCard,
		Card: &CardData{
			Token:                "tok_abc",
			Email:                "user@example.com",
			IdentificationNumber: "12345678900",
			IdentificationType:   "CPF",
			PaymentMethodID:      "master",
		},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if out.Success {
		t.Error("rejected charge must not be a success")
	}
	if out.Message != "Saldo insuficiente no cartão." {
		t.Errorf("unexpected message: %q", out.Message)
	}
	if len(repo.created) != 1 || repo.created[0].Status != models.SubscriptionStatusPending {
		t.Error("rejected charge must still persist a pending row")
	}
}

func TestCreatePaymentPix(t *testing.T) {
	repo := &fakeSubRepo{}
	gw := &fakeGateway{
		createPayment: &mercadopago.Payment{
			ID:     json.Number("555"),
			Status: models.SubscriptionStatusPending,
			PointOfInteraction: &mercadopago.PointOfInteraction{
				TransactionData: &mercadopago.TransactionData{
					QRCode:       "qr-payload",
					QRCodeBase64: "cXItcGF5bG9hZA==",
				},
			},
		},
	}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	out, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		UserID: "user-3",
		Method: MethodPix,
		Pix:    &PixData{Email: "pix@example.com", CPF: "987.654.321-00"},
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	if !out.Success || out.Status != models.SubscriptionStatusPending {
		t.Errorf("pix output = success %v status %q, want pending success", out.Success, out.Status)
	}
	if out.QRCode != "qr-payload" || out.QRCodeBase64 != "cXItcGF5bG9hZA==" {
		t.Error("QR code data missing from pix output")
	}
	if out.Message != "QR Code gerado! Escaneie para pagar." {
		t.Errorf("unexpected message: %q", out.Message)
	}

	req := gw.lastRequest
	if req.PaymentMethodID != mercadopago.PaymentMethodPix {
		t.Errorf("payment method id = %q, want pix", req.PaymentMethodID)
	}
	if req.Payer.Identification.Type != "CPF" || req.Payer.Identification.Number != "98765432100" {
		t.Errorf("unexpected identification: %+v", req.Payer.Identification)
	}
	if !strings.Contains(gw.lastIdemKey, "_pix_") {
		t.Errorf("pix idempotency key missing marker: %q", gw.lastIdemKey)
	}

	if len(repo.created) != 1 {
		t.Fatalf("created rows = %d, want 1", len(repo.created))
	}
	sub := repo.created[0]
	if sub.Status != models.SubscriptionStatusPending || sub.NextBillingDate != nil || sub.ExpiresAt != nil {
		t.Error("pix subscription must be pending without billing dates")
	}
}

func TestCreatePaymentPersistFailureDeadLetters(t *testing.T) {
	repo := &fakeSubRepo{createErr: errors.New("connection refused")}
	gw := &fakeGateway{
		createPayment: &mercadopago.Payment{
			ID:     json.Number("999"),
			Status: models.SubscriptionStatusPending,
		},
	}
	producer := &fakeProducer{}
	svc := newTestPaymentService(repo, gw, producer)

	out, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		UserID: "user-4",
		Method: MethodPix,
		Pix:    &PixData{Email: "pix@example.com", CPF: "11122233344"},
	})
	if err != nil {
		t.Fatalf("persist failure must not fail the request: %v", err)
	}
	if !out.Success {
		t.Error("charge succeeded, output must be a success")
	}

	events := producer.events()
	if len(events) != 1 {
		t.Fatalf("published events = %d, want 1 dead letter", len(events))
	}
	if events[0].topic != kafka.TopicPaymentPersistenceFailed {
		t.Errorf("dead letter topic = %q", events[0].topic)
	}
	if !strings.Contains(events[0].event.Detail, "connection refused") {
		t.Errorf("dead letter detail = %q, want persistence error", events[0].event.Detail)
	}
	if events[0].event.PaymentID != "999" {
		t.Errorf("dead letter payment id = %q", events[0].event.PaymentID)
	}
}

func TestCreatePaymentInvalidMethod(t *testing.T) {
	repo := &fakeSubRepo{}
	gw := &fakeGateway{}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	_, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		UserID: "user-5",
		Method: "boleto",
	})
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("err = %v, want ErrInvalidPaymentMethod", err)
	}
	if gw.createCalls != 0 {
		t.Error("gateway must not be called for an invalid method")
	}
}

func TestCreatePaymentGatewayError(t *testing.T) {
	repo := &fakeSubRepo{}
	gwErr := &mercadopago.Error{Code: "cc_rejected_high_risk", Message: "rejected by risk", StatusCode: 400}
	gw := &fakeGateway{createErr: gwErr}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	_, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		UserID: "user-6",
		Method: MethodPix,
		Pix:    &PixData{Email: "pix@example.com", CPF: "11122233344"},
	})

	var got *mercadopago.Error
	if !errors.As(err, &got) {
		t.Fatalf("err = %v, want gateway error", err)
	}
	if len(repo.created) != 0 {
		t.Error("gateway failure must not persist anything")
	}
}

func TestPaymentStatusMessage(t *testing.T) {
	tests := []struct {
		status, detail, want string
	}{
		{"approved", "", "Pagamento aprovado!"},
		{"pending", "", "Pagamento pendente. Aguarde a confirmação."},
		{"in_process", "", "Pagamento em processamento."},
		{"rejected", "", "Pagamento recusado."},
		{"rejected", "cc_rejected_insufficient_amount", "Saldo insuficiente no cartão."},
		{"rejected", "cc_rejected_bad_filled_card_number", "Número do cartão inválido."},
		{"rejected", "cc_rejected_call_for_authorize", "Entre em contato com seu banco para autorizar."},
		{"rejected", "cc_rejected_something_new", "Pagamento recusado."},
		{"charged_back", "", "Erro no pagamento."},
	}

	for _, tt := range tests {
		if got := PaymentStatusMessage(tt.status, tt.detail); got != tt.want {
			t.Errorf("PaymentStatusMessage(%q, %q) = %q, want %q", tt.status, tt.detail, got, tt.want)
		}
	}
}

func TestProcessWebhookApproved(t *testing.T) {
	repo := &fakeSubRepo{updateRows: 1}
	gw := &fakeGateway{
		getPayment: &mercadopago.Payment{ID: json.Number("321"), Status: models.SubscriptionStatusApproved},
	}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	if err := svc.ProcessWebhook(context.Background(), "payment", "321"); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}

	if len(repo.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(repo.updates))
	}
	up := repo.updates[0]
	if up.paymentID != "321" || up.status != models.SubscriptionStatusApproved {
		t.Errorf("unexpected update: %+v", up)
	}
	if up.nextBillingDate == nil || up.expiresAt == nil {
		t.Error("approval must set billing dates")
	}
}

func TestProcessWebhookRejected(t *testing.T) {
	repo := &fakeSubRepo{updateRows: 1}
	gw := &fakeGateway{
		getPayment: &mercadopago.Payment{ID: json.Number("322"), Status: models.SubscriptionStatusRejected},
	}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	if err := svc.ProcessWebhook(context.Background(), "payment", "322"); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}

	if len(repo.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(repo.updates))
	}
	up := repo.updates[0]
	if up.status != models.SubscriptionStatusRejected {
		t.Errorf("status = %q, want rejected", up.status)
	}
	if up.nextBillingDate != nil || up.expiresAt != nil {
		t.Error("rejection must not set billing dates")
	}
}

func TestProcessWebhookNonFinalStatus(t *testing.T) {
	repo := &fakeSubRepo{updateRows: 1}
	gw := &fakeGateway{
		getPayment: &mercadopago.Payment{ID: json.Number("323"), Status: "in_process"},
	}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	if err := svc.ProcessWebhook(context.Background(), "payment", "323"); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if len(repo.updates) != 0 {
		t.Error("non-final status must not touch the repository")
	}
}

func TestProcessWebhookIgnoresOtherEventTypes(t *testing.T) {
	repo := &fakeSubRepo{}
	gw := &fakeGateway{}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	if err := svc.ProcessWebhook(context.Background(), "plan", "1"); err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if gw.getCalls != 0 {
		t.Error("non-payment event must not hit the gateway")
	}
}

func TestProcessWebhookZeroRowsIsNotAnError(t *testing.T) {
	repo := &fakeSubRepo{updateRows: 0}
	gw := &fakeGateway{
		getPayment: &mercadopago.Payment{ID: json.Number("404"), Status: models.SubscriptionStatusApproved},
	}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	if err := svc.ProcessWebhook(context.Background(), "payment", "404"); err != nil {
		t.Fatalf("zero matched rows must still acknowledge: %v", err)
	}
}

func TestProcessWebhookGatewayError(t *testing.T) {
	repo := &fakeSubRepo{}
	gw := &fakeGateway{getErr: errors.New("timeout")}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	err := svc.ProcessWebhook(context.Background(), "payment", "500")
	if err == nil {
		t.Fatal("expected error when the gateway fetch fails")
	}
	if len(repo.updates) != 0 {
		t.Error("failed fetch must not update the repository")
	}
}

func TestProcessWebhookIsRepeatable(t *testing.T) {
	repo := &fakeSubRepo{updateRows: 1}
	gw := &fakeGateway{
		getPayment: &mercadopago.Payment{ID: json.Number("606"), Status: models.SubscriptionStatusApproved},
	}
	svc := newTestPaymentService(repo, gw, &fakeProducer{})

	for i := 0; i < 2; i++ {
		if err := svc.ProcessWebhook(context.Background(), "payment", "606"); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}
	if len(repo.updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(repo.updates))
	}
	if repo.updates[0].status != repo.updates[1].status {
		t.Error("redelivery must apply the same terminal status")
	}
}
