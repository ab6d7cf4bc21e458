package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("LED_002", "Insufficient wallet balance", http.StatusOK),
			expected: "[LED_002] Insufficient wallet balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("LED_001", "test", http.StatusOK).Unwrap())
}

func TestDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code string
	}{
		{"InvalidAmount", ErrInvalidAmount(), "LED_001"},
		{"InsufficientBalance", ErrInsufficientBalance(), "LED_002"},
		{"InsufficientPayoutBalance", ErrInsufficientPayoutBalance(), "LED_003"},
		{"WalletNotFound", ErrWalletNotFound(), "LED_004"},
		{"ConflictExhausted", ErrConflictExhausted(errors.New("40001")), "LED_005"},
		{"DuplicateOrder", ErrDuplicateOrder(), "ESC_001"},
		{"SplitMismatch", ErrSplitMismatch(), "ESC_002"},
		{"EscrowNotFound", ErrEscrowNotFound(), "ESC_003"},
		{"BelowMinimum", ErrBelowMinimum("25.00"), "PAY_001"},
		{"PayoutNotFound", ErrPayoutNotFound(), "PAY_002"},
		{"InvalidTransition", ErrInvalidTransition("completed", "pending"), "PAY_003"},
		{"FailureReasonRequired", ErrFailureReasonRequired(), "PAY_004"},
		{"DestinationMissing", ErrDestinationMissing("paypal"), "PAY_005"},
		{"InvoiceNotFound", ErrInvoiceNotFound(), "INV_001"},
		{"InvalidInvoice", ErrInvalidInvoice("bad total"), "INV_002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, http.StatusOK, tt.err.HTTPStatus)
			assert.True(t, tt.err.IsDomain())
		})
	}
}

func TestConflictExhaustedIsRetryable(t *testing.T) {
	err := ErrConflictExhausted(errors.New("40P01"))
	assert.True(t, err.Retryable)
	assert.True(t, err.IsDomain())
	assert.False(t, ErrInsufficientBalance().Retryable)
}

func TestInfrastructureErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")

	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.False(t, dbErr.IsDomain())
	assert.True(t, errors.Is(dbErr, inner))

	encErr := ErrEncryptionFailure(inner)
	assert.Equal(t, "SYS_003", encErr.Code)

	assert.Equal(t, 429, ErrRateLimitExceeded().HTTPStatus)
	assert.Equal(t, 409, ErrIdempotencyInProgress().HTTPStatus)
	assert.Equal(t, 401, ErrInvalidToken().HTTPStatus)
	assert.Equal(t, 401, ErrActorRequired().HTTPStatus)
	assert.Equal(t, 400, Validation("bad").HTTPStatus)
}

func TestMessagesCarryContext(t *testing.T) {
	assert.Contains(t, ErrBelowMinimum("25.00").Message, "25.00")
	assert.Contains(t, ErrInvalidTransition("completed", "pending").Message, "completed to pending")
	assert.Contains(t, ErrDestinationMissing("paypal").Message, "paypal")
}
