package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// Validate checks every `validate`-tagged field on c and returns the first
// failing field wrapped as a *ValidationError, or nil if all pass. Load and
// Defaults both return already-valid configs; Validate exists for callers
// that build or mutate an OrchestratorConfig directly (e.g. from a parsed
// YAML file) before handing it to New.
func (c *OrchestratorConfig) Validate() error {
	snap := c.Snapshot()
	if err := structValidator.Struct(&snap); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return NewValidationError(fe.Field(), fmt.Errorf("%w: failed %q (value %v)", ErrInvalidValue, fe.Tag(), fe.Value()))
		}
		return err
	}
	return nil
}
