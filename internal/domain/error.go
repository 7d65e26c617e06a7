package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")

	// Persistence
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Payments and fulfillment
	ErrAlreadyProcessed  = errors.New("payment already processed")
	ErrPaymentNotSettled = errors.New("payment is not successful")
	ErrGatewayPending    = errors.New("gateway has no final result yet")
	ErrGateway           = errors.New("payment gateway error")
	ErrUnknownIntent     = errors.New("payment has no resolvable purchase intent")
	ErrTaskNotClaimable  = errors.New("task is not claimable")

	// Images
	ErrUpstream        = errors.New("upstream error")
	ErrStorage         = errors.New("object storage error")
	ErrQRPathNotFound  = errors.New("qr path not found")
	ErrEventMismatch   = errors.New("ticket does not belong to event")
	ErrLockNotAcquired = errors.New("lock not acquired")
)
