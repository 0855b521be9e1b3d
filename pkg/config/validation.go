package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
)

var validate = validator.New()

// Validate checks cfg after ApplyDefaults.
//
// Struct tags are checked first and only the first tag failure is reported.
// The cross-field rules below run afterwards and all of their failures are
// reported together.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// crossFieldRule returns a non-nil error when cfg violates it.
type crossFieldRule func(cfg *Config) error

var crossFieldRules = []crossFieldRule{
	// A badger directory is locked by the process that opens it.
	func(cfg *Config) error {
		if cfg.Store.Type == "badger" && cfg.Adapter.Discipline == filecmd.DisciplineProcess {
			return fmt.Errorf("store: badger cannot be used with the %q discipline (the database is locked by a single process)", filecmd.DisciplineProcess)
		}
		return nil
	},
	// Each worker process would get a private, empty namespace.
	func(cfg *Config) error {
		if cfg.Store.Type == "memory" && cfg.Adapter.Discipline == filecmd.DisciplineProcess {
			return fmt.Errorf("store: memory cannot be used with the %q discipline (workers would not share files)", filecmd.DisciplineProcess)
		}
		return nil
	},
	func(cfg *Config) error {
		if cfg.Adapter.Port == 0 {
			return errors.New("adapter.port: must be set")
		}
		return nil
	},
	func(cfg *Config) error {
		if cfg.Adapter.PoolSize <= 0 {
			return errors.New("adapter.pool_size: must be > 0")
		}
		return nil
	},
	func(cfg *Config) error {
		if cfg.Adapter.ReadBufferSize <= 0 {
			return errors.New("adapter.read_buffer_size: must be > 0")
		}
		return nil
	},
	func(cfg *Config) error {
		if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Adapter.Port {
			return fmt.Errorf("server.metrics.port: %d is already used by the adapter", cfg.Server.Metrics.Port)
		}
		return nil
	},
}

func validateCustomRules(cfg *Config) error {
	var errs []error
	for _, rule := range crossFieldRules {
		if err := rule(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// formatValidationError reports the first failing field as
// "<namespace>: validation failed on '<tag>' tag (value: <v>)".
func formatValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		e := fieldErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
