// Package metrics exposes Prometheus instruments for record mutations,
// validation, imports and HTTP traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JonMunkholm/stockroom/internal/core"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics implements core.Observer.
type Metrics struct {
	Mutations        *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	ValidationIssues *prometheus.CounterVec
	Imports          *prometheus.CounterVec
	ImportedRows     *prometheus.CounterVec
	ImportDuration   *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

var _ core.Observer = (*Metrics)(nil)

// New creates every instrument and registers it with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_mutations_total",
			Help: "Record mutations by entity, action and outcome",
		}, []string{"entity", "action", "outcome"}),
		MutationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockroom_mutation_duration_seconds",
			Help:    "Duration of create, update and delete operations",
			Buckets: durationBuckets,
		}, []string{"entity", "action"}),
		ValidationIssues: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_validation_issues_total",
			Help: "Validation issues found, by entity and severity",
		}, []string{"entity", "severity"}),
		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_imports_total",
			Help: "Bulk import calls by entity and outcome",
		}, []string{"entity", "outcome"}),
		ImportedRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_import_rows_total",
			Help: "Import rows by entity and result (imported, skipped, rejected)",
		}, []string{"entity", "result"}),
		ImportDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockroom_import_duration_seconds",
			Help:    "Duration of bulk imports",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}, []string{"entity"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockroom_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: durationBuckets,
		}, []string{"route", "method"}),
	}
}

// ObserveMutation records one create, update or delete.
func (m *Metrics) ObserveMutation(entity string, action core.AuditAction, outcome string, d time.Duration) {
	m.Mutations.WithLabelValues(entity, string(action), outcome).Inc()
	m.MutationDuration.WithLabelValues(entity, string(action)).Observe(d.Seconds())
}

// ObserveValidation records the issues found for one candidate.
func (m *Metrics) ObserveValidation(entity string, errors, warnings int) {
	m.ValidationIssues.WithLabelValues(entity, string(core.SeverityError)).Add(float64(errors))
	m.ValidationIssues.WithLabelValues(entity, string(core.SeverityWarning)).Add(float64(warnings))
}

// ObserveImport records one bulk import.
func (m *Metrics) ObserveImport(entity, outcome string, imported, skipped, rejected int, d time.Duration) {
	m.Imports.WithLabelValues(entity, outcome).Inc()
	m.ImportedRows.WithLabelValues(entity, "imported").Add(float64(imported))
	m.ImportedRows.WithLabelValues(entity, "skipped").Add(float64(skipped))
	m.ImportedRows.WithLabelValues(entity, "rejected").Add(float64(rejected))
	m.ImportDuration.WithLabelValues(entity).Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
