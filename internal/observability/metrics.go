package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	salesCreated          *prometheus.CounterVec
	paymentsRegistered    *prometheus.CounterVec
	overpaymentsRejected  prometheus.Counter
	stockShortfalls       prometheus.Counter
	busyRetries           prometheus.Counter
	installmentsMarkedDue prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boutique_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "boutique_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	salesCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boutique_sales_created_total",
		Help: "Sales created, by payment type.",
	}, []string{"payment_type"})
	paymentsRegistered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boutique_payments_registered_total",
		Help: "Payments registered, by method.",
	}, []string{"method"})
	overpayments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boutique_overpayments_rejected_total",
		Help: "Payment attempts rejected by the no-overpayment guard.",
	})
	shortfalls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boutique_stock_shortfalls_total",
		Help: "Sale attempts aborted by insufficient stock.",
	})
	busy := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boutique_lock_busy_total",
		Help: "Transactions aborted by lock-timeout expiry.",
	})
	overdue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boutique_installments_marked_overdue_total",
		Help: "Installments flipped to overdue by the nightly scan.",
	})
	registry.MustRegister(requests, duration, salesCreated, paymentsRegistered, overpayments, shortfalls, busy, overdue)
	return &Metrics{
		registry:              registry,
		handler:               promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:         requests,
		requestDuration:       duration,
		salesCreated:          salesCreated,
		paymentsRegistered:    paymentsRegistered,
		overpaymentsRejected:  overpayments,
		stockShortfalls:       shortfalls,
		busyRetries:           busy,
		installmentsMarkedDue: overdue,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// SaleCreated increments the sale counter.
func (m *Metrics) SaleCreated(paymentType string) {
	if m == nil {
		return
	}
	m.salesCreated.WithLabelValues(paymentType).Inc()
}

// PaymentRegistered increments the payment counter.
func (m *Metrics) PaymentRegistered(method string) {
	if m == nil {
		return
	}
	m.paymentsRegistered.WithLabelValues(method).Inc()
}

// OverpaymentRejected increments the rejected-overpayment counter.
func (m *Metrics) OverpaymentRejected() {
	if m == nil {
		return
	}
	m.overpaymentsRejected.Inc()
}

// StockShortfall increments the insufficient-stock counter.
func (m *Metrics) StockShortfall() {
	if m == nil {
		return
	}
	m.stockShortfalls.Inc()
}

// LockBusy increments the lock-timeout counter.
func (m *Metrics) LockBusy() {
	if m == nil {
		return
	}
	m.busyRetries.Inc()
}

// InstallmentsMarkedOverdue adds to the overdue-scan counter.
func (m *Metrics) InstallmentsMarkedOverdue(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.installmentsMarkedDue.Add(float64(n))
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
