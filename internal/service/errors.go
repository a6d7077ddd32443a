package service

import "errors"

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrConflict         = errors.New("conflict")
	ErrUpstream         = errors.New("payment processor request failed")
	ErrValidation       = errors.New("validation failed")
)
