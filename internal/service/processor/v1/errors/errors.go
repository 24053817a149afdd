package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type (
	ServiceFoundNilArgument struct {
		Msg string
	}
	// UnknownServiceError reports a service key absent from the catalog.
	UnknownServiceError struct {
		Key string
	}
	// SubmissionFailedError reports that the provider call failed after the
	// debit was applied. The debit stays in place; RefundID points at the
	// compensating record awaiting administrative approval.
	SubmissionFailedError struct {
		RefundID int64
		Amount   decimal.Decimal
		Reason   string
	}
)

func (e *ServiceFoundNilArgument) Error() string {
	return e.Msg
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("service %q was not found in the catalog", e.Key)
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("submission failed, refund %v for %s queued: %s", e.RefundID, e.Amount.StringFixed(2), e.Reason)
}
