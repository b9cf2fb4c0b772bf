package config

import (
	"github.com/cockroachdb/errors"
)

// Sentinel error kinds for this package. These allow errors.Is from callers.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

func invalid(msg string) error {
	return errors.Wrap(ErrInvalidConfig, msg)
}

func loadFailed(err error, what string) error {
	return errors.Mark(errors.Wrap(err, what), ErrLoadConfig)
}
