package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// DumpInfo flattens an error chain for structured logging, pulling out
// postgres driver details when present.
type DumpInfo struct {
	Message string   `json:"message"`
	Code    Code     `json:"code,omitempty"`
	Chain   []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
}

func Dump(err error) DumpInfo {
	if err == nil {
		return DumpInfo{}
	}

	info := DumpInfo{Message: err.Error()}
	if typed := As(err); typed != nil {
		info.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		info.Chain = append(info.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		info.PGCode = pgxErr.Code
		info.PGConstraint = pgxErr.ConstraintName
		info.PGDetail = pgxErr.Detail
		return info
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		info.PGCode = string(pqErr.Code)
		info.PGConstraint = pqErr.Constraint
		info.PGDetail = pqErr.Detail
	}
	return info
}
