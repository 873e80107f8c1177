package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Retryable  bool   `json:"retryable"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
	// PGClass names the SQLSTATE family so alerts can group by cause.
	PGClass string `json:"pg_class,omitempty"`
}

var pgClasses = map[string]string{
	"23505": "unique_violation",
	"23503": "foreign_key_violation",
	"23514": "check_violation",
	"23502": "not_null_violation",
	"22P02": "invalid_text_representation",
	"40001": "serialization_failure",
	"40P01": "deadlock_detected",
	"57014": "query_canceled",
	"53300": "too_many_connections",
}

// transientPGCodes are safe for the gateway to redeliver against.
var transientPGCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"57014": true,
	"53300": true,
}

func classifyPG(code string) string {
	if class, ok := pgClasses[code]; ok {
		return class
	}
	if strings.HasPrefix(code, "08") {
		return "connection_exception"
	}
	return ""
}

// Dump flattens err for structured logging. Postgres errors from either
// driver add SQLSTATE details and mark serialization, deadlock and connection
// failures retryable.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = te.Retryable()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
		d.finishPG()
		return d
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
		d.finishPG()
		return d
	}

	return d
}

func (d *ErrorDump) finishPG() {
	d.PGClass = classifyPG(d.PGCode)
	if transientPGCodes[d.PGCode] || strings.HasPrefix(d.PGCode, "08") {
		d.Retryable = true
	}
}
