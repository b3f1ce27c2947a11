/**
 * @description
 * Error taxonomy shared by the reconciliation engine and the API layer. Each
 * category maps onto one outcome status code:
 *
 *   ValidationError  -> 422  missing identifier or nested object
 *   NotFoundError    -> 501  target mailbox account does not exist
 *   UpstreamError    -> 500  a gateway call failed for another reason
 *
 * Business refusals and unhandled events are not errors; the engine resolves
 * them directly into informational outcomes.
 */
package domain

import "errors"

// ValidationError reports a payload that is missing a required identifier or
// nested object. It resolves locally into a 422 outcome and never escalates.
type ValidationError struct {
	Reason string
}

// NewValidationError builds a ValidationError with the given reason.
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ErrAccountNotFound is the distinguishable not-found condition the account
// gateway returns when the target mailbox account does not exist.
var ErrAccountNotFound = errors.New("mailbox account does not exist")

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
