package telemetry

import (
	"database/sql"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OpenPostgres opens a pool on the registered "pgx" driver whose statements
// become client spans. Row iteration and session resets are not traced.
func OpenPostgres(dsn, database string) (*sql.DB, error) {
	return otelsql.Open("pgx", dsn,
		otelsql.WithAttributes(
			semconv.DBSystemPostgreSQL,
			semconv.DBNamespace(database),
		),
		otelsql.WithSpanOptions(otelsql.SpanOptions{
			OmitRows:             true,
			OmitConnResetSession: true,
			DisableErrSkip:       true,
		}),
	)
}
