package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
// Ledger domain errors carry HTTP 200: the failure is reported in the
// response envelope, not in the status line.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Retryable  bool   `json:"-"` // The same request may succeed if sent again
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// IsDomain reports whether the error is a caller-visible business failure.
func (e *AppError) IsDomain() bool {
	return e.HTTPStatus == http.StatusOK
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func domain(code, message string) *AppError {
	return New(code, message, http.StatusOK)
}

// ---- Wallet Ledger (LED) ----

func ErrInvalidAmount() *AppError {
	return domain("LED_001", "Amount must be greater than zero")
}

func ErrInsufficientBalance() *AppError {
	return domain("LED_002", "Insufficient wallet balance")
}

func ErrInsufficientPayoutBalance() *AppError {
	return domain("LED_003", "Insufficient payout balance")
}

func ErrWalletNotFound() *AppError {
	return domain("LED_004", "Wallet not found")
}

// ErrConflictExhausted is returned when a balance mutation kept hitting
// lock conflicts after every retry.
func ErrConflictExhausted(err error) *AppError {
	e := Wrap("LED_005", "Concurrent update conflict, retry later", http.StatusOK, err)
	e.Retryable = true
	return e
}

// ---- Escrow (ESC) ----

func ErrDuplicateOrder() *AppError {
	return domain("ESC_001", "Escrow already exists for this order")
}

func ErrSplitMismatch() *AppError {
	return domain("ESC_002", "Fulfillment cost, platform fee and store payout must sum to the customer payment amount")
}

func ErrEscrowNotFound() *AppError {
	return domain("ESC_003", "Escrow transaction not found")
}

// ---- Payouts (PAY) ----

func ErrBelowMinimum(minimum string) *AppError {
	return domain("PAY_001", fmt.Sprintf("Minimum payout amount is %s", minimum))
}

func ErrPayoutNotFound() *AppError {
	return domain("PAY_002", "Payout not found")
}

func ErrInvalidTransition(from, to string) *AppError {
	return domain("PAY_003", fmt.Sprintf("Invalid status transition from %s to %s", from, to))
}

func ErrFailureReasonRequired() *AppError {
	return domain("PAY_004", "A failure reason is required")
}

func ErrDestinationMissing(method string) *AppError {
	return domain("PAY_005", fmt.Sprintf("No payout destination configured for %s", method))
}

// ---- Invoices (INV) ----

func ErrInvoiceNotFound() *AppError {
	return domain("INV_001", "Invoice not found")
}

func ErrInvalidInvoice(reason string) *AppError {
	return domain("INV_002", reason)
}

// ---- Request & Authentication ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrActorRequired() *AppError {
	return New("AUTH_002", "An authenticated actor is required", http.StatusUnauthorized)
}

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

func ErrIdempotencyInProgress() *AppError {
	return New("IDEM_001", "A request with this Idempotency-Key is already in progress", http.StatusConflict)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a REQ_001 request validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}
