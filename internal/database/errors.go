package database

import (
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassDeadlock:
		return "deadlock"
	case ErrorClassSerialization:
		return "serialization"
	default:
		return "permanent"
	}
}

// ClassifyError buckets an error by its Postgres SQLSTATE. Anything that is
// not a *pq.Error, including ledger rule violations, is permanent.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		}
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsCheckViolation reports a failed CHECK constraint (23514), e.g. a stock
// or received quantity leaving its allowed range.
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23514"
}

// IsOutOfRange reports a value too large for its column (22003), e.g. a
// stock count past the integer limit.
func IsOutOfRange(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22003"
}
