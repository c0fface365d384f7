package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	AccountNotFound        Kind = "account_not_found"
	AccountInactive        Kind = "account_inactive"
	InvalidAmount          Kind = "invalid_amount"
	InsufficientFunds      Kind = "insufficient_funds"
	RecipientNotFound      Kind = "recipient_not_found"
	SelfTransferNotAllowed Kind = "self_transfer_not_allowed"
	DuplicateAccountNumber Kind = "duplicate_account_number"
	StoreUnavailable       Kind = "store_unavailable"

	InvalidAccountNumber Kind = "invalid_account_number"
	DuplicateEmail       Kind = "duplicate_email"
	InvalidCredentials   Kind = "invalid_credentials"
	InvalidRequest       Kind = "invalid_request"
	Forbidden            Kind = "forbidden"
	InvalidProfile       Kind = "invalid_profile"
	// Internal marks a broken invariant. It is never retried.
	Internal Kind = "internal"
)

// Sentinels for errors.Is. Matching compares kinds only.
var (
	ErrAccountNotFound        = &Error{Kind: AccountNotFound, Message: "account not found"}
	ErrAccountInactive        = &Error{Kind: AccountInactive, Message: "account is inactive"}
	ErrInvalidAmount          = &Error{Kind: InvalidAmount, Message: "amount must be positive"}
	ErrInsufficientFunds      = &Error{Kind: InsufficientFunds, Message: "insufficient funds"}
	ErrRecipientNotFound      = &Error{Kind: RecipientNotFound, Message: "recipient account not found"}
	ErrSelfTransferNotAllowed = &Error{Kind: SelfTransferNotAllowed, Message: "cannot transfer to the same account"}
	ErrDuplicateAccountNumber = &Error{Kind: DuplicateAccountNumber, Message: "account number already exists"}
	ErrStoreUnavailable       = &Error{Kind: StoreUnavailable, Message: "store unavailable"}
	ErrInvalidAccountNumber   = &Error{Kind: InvalidAccountNumber, Message: "account number must be 16 digits"}
	ErrDuplicateEmail         = &Error{Kind: DuplicateEmail, Message: "email already registered"}
	ErrInvalidCredentials     = &Error{Kind: InvalidCredentials, Message: "invalid credentials"}
	ErrForbidden              = &Error{Kind: Forbidden, Message: "admin privileges required"}
	ErrInvalidProfile         = &Error{Kind: InvalidProfile, Message: "invalid profile"}
)

type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Unavailable wraps a storage failure. Errors that already carry a kind pass through.
func Unavailable(cause error, message string) error {
	if cause == nil {
		return nil
	}
	var appErr *Error
	if errors.As(cause, &appErr) {
		return cause
	}
	return Wrap(StoreUnavailable, cause, message)
}

func (e *Error) WithDetails(details map[string]any) *Error {
	clone := *e
	clone.Details = make(map[string]any, len(e.Details)+len(details))
	for key, value := range e.Details {
		clone.Details[key] = value
	}
	for key, value := range details {
		clone.Details[key] = value
	}
	return &clone
}

// KindOf returns the kind carried by err, or StoreUnavailable for untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return StoreUnavailable
}

func Retryable(err error) bool {
	return err != nil && KindOf(err) == StoreUnavailable
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case AccountNotFound, RecipientNotFound:
		return http.StatusNotFound
	case AccountInactive, Forbidden:
		return http.StatusForbidden
	case InvalidCredentials:
		return http.StatusUnauthorized
	case DuplicateAccountNumber, DuplicateEmail:
		return http.StatusConflict
	case InsufficientFunds:
		return http.StatusUnprocessableEntity
	case StoreUnavailable:
		return http.StatusServiceUnavailable
	case InvalidAmount, SelfTransferNotAllowed, InvalidAccountNumber, InvalidRequest, InvalidProfile:
		return http.StatusBadRequest
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
