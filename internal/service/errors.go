package service

import "errors"

// Kind classifies an AuthError.
type Kind int

const (
	InvalidInput Kind = iota + 1
	InvalidCredentials
	AccountInactive
	NotFound
	StoreError
	Internal
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")
	ErrNotFound           = errors.New("not found")
	ErrStore              = errors.New("store error")
	ErrInternal           = errors.New("internal error")
)

var kindSentinels = map[Kind]error{
	InvalidInput:       ErrInvalidInput,
	InvalidCredentials: ErrInvalidCredentials,
	AccountInactive:    ErrAccountInactive,
	NotFound:           ErrNotFound,
	StoreError:         ErrStore,
	Internal:           ErrInternal,
}

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case InvalidCredentials:
		return "invalid_credentials"
	case AccountInactive:
		return "account_inactive"
	case NotFound:
		return "not_found"
	case StoreError:
		return "store_error"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// MarshalText makes Kind serialize as its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AuthError is the failure half of a Result. errors.Is matches it against
// the Err* sentinel for its Kind.
type AuthError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	err     error
}

func (e *AuthError) Error() string { return e.Message }

// Unwrap returns the underlying cause, if any.
func (e *AuthError) Unwrap() error { return e.err }

func (e *AuthError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// User-facing messages. The invalid-credentials message is shared by the
// unknown-email, failed-lookup and wrong-password paths.
const (
	msgInvalidEmail       = "invalid email address"
	msgPasswordTooShort   = "password must be at least 8 characters"
	msgInvalidCredentials = "invalid email or password"
	msgAccountInactive    = "account is inactive"
	msgAdminNotFound      = "admin not found"
	msgInternal           = "an unexpected error occurred"
)

func newError(kind Kind, msg string) *AuthError {
	return &AuthError{Kind: kind, Message: msg}
}

func storeError(err error) *AuthError {
	return &AuthError{Kind: StoreError, Message: err.Error(), err: err}
}
