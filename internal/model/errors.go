package model

import "errors"

var (
	ErrFundNotFound     = errors.New("fund not found")
	ErrFundExists       = errors.New("fund already registered")
	ErrRevisionConflict = errors.New("fund revision conflict")
	ErrInvalidAddress   = errors.New("invalid fund address")
	ErrAddressMismatch  = errors.New("fundAddress does not match the request path")

	ErrSignatureRequired = errors.New("fund signature required")
	ErrSignatureInvalid  = errors.New("fund signature invalid")
)
