package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
	ErrCapacityExceeded       = errors.New("departure capacity exceeded")
	ErrTxContention           = errors.New("transaction contended, retry")
	ErrIllegalTransition      = errors.New("illegal status transition")
	ErrMissingCheckoutContext = errors.New("missing checkout context")
	ErrPaymentInit            = errors.New("payment initiation failed")
	ErrPaymentDeclined        = errors.New("payment processing failed")
	ErrRefundIssued           = errors.New("booking failed, refund issued")
)
