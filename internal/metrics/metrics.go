package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics counts payment attempts and outcomes.
type PaymentMetrics interface {
	IncPaymentCreated(method string)
	IncPaymentStatus(method, status string)
	IncGatewayError(operation string)
	ObservePaymentAmount(amount float64, method, status string)
}

type paymentMetrics struct {
	paymentsCreated *prometheus.CounterVec
	paymentsStatus  *prometheus.CounterVec
	gatewayErrors   *prometheus.CounterVec
	paymentsAmount  *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metric family.
func NewPaymentMetrics(registry *prometheus.Registry) PaymentMetrics {
	return &paymentMetrics{
		paymentsCreated: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_created_total",
				Help: "The total number of payment attempts by method",
			},
			[]string{"method"},
		),
		paymentsStatus: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_status_total",
				Help: "The total number of gateway responses by method and status",
			},
			[]string{"method", "status"},
		),
		gatewayErrors: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_gateway_errors_total",
				Help: "The total number of failed gateway calls by operation",
			},
			[]string{"operation"},
		),
		paymentsAmount: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payments_amount",
				Help:    "Payment amounts distribution",
				Buckets: prometheus.ExponentialBuckets(10, 10, 5),
			},
			[]string{"method", "status"},
		),
	}
}

func (m *paymentMetrics) IncPaymentCreated(method string) {
	m.paymentsCreated.WithLabelValues(method).Inc()
}

func (m *paymentMetrics) IncPaymentStatus(method, status string) {
	m.paymentsStatus.WithLabelValues(method, status).Inc()
}

func (m *paymentMetrics) IncGatewayError(operation string) {
	m.gatewayErrors.WithLabelValues(operation).Inc()
}

func (m *paymentMetrics) ObservePaymentAmount(amount float64, method, status string) {
	m.paymentsAmount.WithLabelValues(method, status).Observe(amount)
}

// NewsMetrics counts cache behavior for the news feed.
type NewsMetrics interface {
	IncCacheHit()
	IncCacheMiss()
	IncCacheFallback()
	IncProviderError()
}

type newsMetrics struct {
	cacheRequests  *prometheus.CounterVec
	providerErrors prometheus.Counter
}

// NewNewsMetrics registers the news cache metric family.
func NewNewsMetrics(registry *prometheus.Registry) NewsMetrics {
	return &newsMetrics{
		cacheRequests: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_cache_requests_total",
				Help: "The total number of news requests by cache outcome",
			},
			[]string{"outcome"},
		),
		providerErrors: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "news_provider_errors_total",
				Help: "The total number of failed news provider calls",
			},
		),
	}
}

func (m *newsMetrics) IncCacheHit()      { m.cacheRequests.WithLabelValues("hit").Inc() }
func (m *newsMetrics) IncCacheMiss()     { m.cacheRequests.WithLabelValues("miss").Inc() }
func (m *newsMetrics) IncCacheFallback() { m.cacheRequests.WithLabelValues("fallback").Inc() }
func (m *newsMetrics) IncProviderError() { m.providerErrors.Inc() }
