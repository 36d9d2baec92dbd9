package config

import (
	"errors"

	"github.com/leapstack-labs/skuhub/internal/cli/output"
	"github.com/leapstack-labs/skuhub/pkg/core"
)

// Validate checks the CLI fields and the shared settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment == "" {
		errs = append(errs, core.NewConfigError("environment", "must not be empty"))
	}
	if c.StatePath == "" {
		errs = append(errs, core.NewConfigError("state_path", "must not be empty"))
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		errs = append(errs, core.NewConfigError("output", "%v", err))
	}
	if err := c.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
