package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	LoginAttemptsTotal     metric.Int64Counter
	LoginFailuresTotal     metric.Int64Counter
	AuthzDenialsTotal      metric.Int64Counter
	TokensIssuedTotal      metric.Int64Counter
	DbQueryDurationSeconds metric.Float64Histogram
	DbQueryErrorsTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("regnify-api")
		var err error
		m := &AppMetrics{}

		m.LoginAttemptsTotal, err = meter.Int64Counter(
			"login_attempts_total",
			metric.WithDescription("Total number of credential exchanges attempted"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_attempts_total: %v", err)
		}

		m.LoginFailuresTotal, err = meter.Int64Counter(
			"login_failures_total",
			metric.WithDescription("Total number of rejected credential exchanges"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_failures_total: %v", err)
		}

		m.AuthzDenialsTotal, err = meter.Int64Counter(
			"authz_denials_total",
			metric.WithDescription("Total number of scope-resolution denials"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create authz_denials_total: %v", err)
		}

		m.TokensIssuedTotal, err = meter.Int64Counter(
			"tokens_issued_total",
			metric.WithDescription("Total number of bearer tokens issued"),
			metric.WithUnit("{token}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create tokens_issued_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics: InitAppMetrics must be called before Get")
	}
	return appMetrics
}
