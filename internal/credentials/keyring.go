package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

var keyringGet = keyring.Get

// ResolvePassword returns the password stored in the OS keyring under service/user.
// With an empty service, or when the keyring has no entry, fallback is returned.
func ResolvePassword(service, user, fallback string) (string, error) {
	if service == "" {
		return fallback, nil
	}
	pw, err := keyringGet(service, user)
	switch {
	case err == nil && pw != "":
		return pw, nil
	case err == nil, errors.Is(err, keyring.ErrNotFound):
		return fallback, nil
	default:
		return "", fmt.Errorf("keyring lookup %s/%s: %w", service, user, err)
	}
}
