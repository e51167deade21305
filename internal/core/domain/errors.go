package domain

import "errors"

// Common domain errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Credential and session errors
var (
	ErrPolicyViolation     = errors.New("password does not meet policy")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTooManyAttempts     = errors.New("too many failed login attempts")
	ErrNoToken             = errors.New("no access token presented")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidSession      = errors.New("session identity no longer exists")
	ErrSessionExpired      = errors.New("session expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired or already used")
)

// Authorization errors
var (
	ErrNotAssigned   = errors.New("principal is not assigned to this resource owner")
	ErrAdminOnly     = errors.New("operation requires an administrator")
	ErrForbiddenRole = errors.New("role does not permit this operation")
)

// UserErrors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrInvalidRole        = errors.New("invalid role")
	ErrSelfModification   = errors.New("administrators cannot change their own role or status")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// Machine-readable codes returned to clients
const (
	CodePolicyViolation     = "PASSWORD_POLICY"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeTooManyAttempts     = "TOO_MANY_ATTEMPTS"
	CodeNoToken             = "NO_TOKEN"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeInvalidSession      = "INVALID_SESSION"
	CodeSessionExpired      = "SESSION_EXPIRED"
	CodeRefreshTokenExpired = "REFRESH_TOKEN_EXPIRED"
	CodeNotAssigned         = "NOT_ASSIGNED"
	CodeAdminOnly           = "ADMIN_ONLY"
	CodeForbiddenRole       = "FORBIDDEN_ROLE"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeSelfModification    = "SELF_MODIFICATION"
	CodeWrongPassword       = "WRONG_PASSWORD"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrPolicyViolation, CodePolicyViolation},
	{ErrInvalidCredentials, CodeInvalidCredentials},
	{ErrTooManyAttempts, CodeTooManyAttempts},
	{ErrNoToken, CodeNoToken},
	{ErrInvalidToken, CodeInvalidToken},
	{ErrInvalidSession, CodeInvalidSession},
	{ErrSessionExpired, CodeSessionExpired},
	{ErrRefreshTokenExpired, CodeRefreshTokenExpired},
	{ErrNotAssigned, CodeNotAssigned},
	{ErrAdminOnly, CodeAdminOnly},
	{ErrForbiddenRole, CodeForbiddenRole},
	{ErrEmailAlreadyExists, CodeEmailTaken},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrInvalidRole, CodeInvalidInput},
	{ErrSelfModification, CodeSelfModification},
	{ErrWrongPassword, CodeWrongPassword},
	{ErrUserNotFound, CodeNotFound},
	{ErrNotFound, CodeNotFound},
}

// CodeOf returns the stable machine code for err, CodeInternal if unknown
func CodeOf(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// IsSessionFailure reports whether err is a token/session rejection (HTTP 401)
func IsSessionFailure(err error) bool {
	return errors.Is(err, ErrNoToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrRefreshTokenExpired)
}

// IsAuthorizationFailure reports whether err is a role denial (HTTP 403)
func IsAuthorizationFailure(err error) bool {
	return errors.Is(err, ErrNotAssigned) ||
		errors.Is(err, ErrAdminOnly) ||
		errors.Is(err, ErrForbiddenRole)
}
