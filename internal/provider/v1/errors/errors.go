package errors

import "fmt"

type (
	// GatewayError reports a provider call that yielded no confirmed result:
	// a transport failure, a non-parseable body, or an explicit error
	// payload. Payload carries the raw provider response when one exists.
	GatewayError struct {
		Err     error
		Payload string
	}
)

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: provider gateway failure", e.Err.Error())
	}
	return fmt.Sprintf("provider gateway failure: %s", e.Payload)
}

// Reason serializes the failure for audit records.
func (e *GatewayError) Reason() string {
	if e.Payload != "" {
		return e.Payload
	}
	return e.Err.Error()
}
