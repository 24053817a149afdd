package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type (
	StatementPSQLError struct {
		Err error
	}
	ExecutionPSQLError struct {
		Err error
	}
	ScanningPSQLError struct {
		Err error
	}
	ContextTimeoutExceededError struct {
		Err error
	}
	NotFoundError struct {
		Err error
	}
	AlreadyExistsError struct {
		Err error
		ID  int64
	}
	AlreadyProcessedError struct {
		ID int64
	}
	InsufficientBalanceError struct {
		UserID   int64
		Required decimal.Decimal
	}
)

func (e *StatementPSQLError) Error() string {
	return fmt.Sprintf("%s: could not compile", e.Err.Error())
}

func (e *ExecutionPSQLError) Error() string {
	return fmt.Sprintf("%s: could not execute", e.Err.Error())
}

func (e *ScanningPSQLError) Error() string {
	return fmt.Sprintf("%s: could not scan", e.Err.Error())
}

func (e *ContextTimeoutExceededError) Error() string {
	return fmt.Sprintf("%s: context timeout exceeded", e.Err.Error())
}

func (e *NotFoundError) Error() string {
	return "requested entity was not found"
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%v: already exists", e.ID)
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%v: already processed", e.ID)
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("user %v: balance below required %s", e.UserID, e.Required.StringFixed(2))
}
