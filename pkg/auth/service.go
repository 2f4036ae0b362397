package auth

import "errors"

var (
	ErrMissingServiceToken = errors.New("service token not provided")
	ErrInvalidServiceToken = errors.New("invalid service token")
)

// ValidateServiceToken checks a presented bearer token against the
// configured ADMIN_TOKEN, grounded on _verify_admin_token in admin.py.
func ValidateServiceToken(token string, expectedToken string) error {
	if token == "" {
		return ErrMissingServiceToken
	}
	if token != expectedToken {
		return ErrInvalidServiceToken
	}
	return nil
}
