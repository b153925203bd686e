package entity

import "errors"

// Domain errors for analytics refresh
var (
	ErrQuotaExceeded   = errors.New("analytics refresh limit exceeded")
	ErrRefreshInFlight = errors.New("a refresh is already in progress")
	ErrNotMounted      = errors.New("analytics page has not been mounted")
	ErrDisposed        = errors.New("analytics page has been unmounted")
	ErrSessionNotFound = errors.New("analytics session not found")
	ErrUpstream        = errors.New("analytics request failed")
	ErrEmptyAccountKey = errors.New("account key is required")
)
