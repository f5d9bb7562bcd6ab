// Package secrets resolves credentials from the OS keyring.
package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

// Password returns the keyring entry for service and account, or fallback
// when the keyring has none or cannot be reached.
func Password(service, account, fallback string, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}
	if service == "" || account == "" {
		return fallback
	}
	secret, err := keyring.Get(service, account)
	switch {
	case err == nil:
		return secret
	case errors.Is(err, keyring.ErrNotFound):
		logger.Debug("no keyring entry, using configured password", zap.String("service", service))
	default:
		logger.Warn("keyring unavailable, using configured password", zap.String("service", service), zap.Error(err))
	}
	return fallback
}
