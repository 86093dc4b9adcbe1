package store

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/mrz1836/cadence/internal/errors"
)

//nolint:gochecknoglobals // shared validator, built once
var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// validatorInstance returns the validator shared by every definition load.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(yamlFieldName)
		validateInst = v
	})
	return validateInst
}

// validateDefinition checks the struct tags of a decoded definition.
func validateDefinition(path string, v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if stderrors.As(err, &ves) && len(ves) > 0 {
		problems := make([]string, len(ves))
		for i, fe := range ves {
			problems[i] = fmt.Sprintf("%s failed validation for tag '%s'", fieldPath(fe), fe.Tag())
		}
		return fmt.Errorf("%w: %s: %s", errors.ErrDefinitionInvalid, path, strings.Join(problems, "; "))
	}
	return fmt.Errorf("%w: %s: %w", errors.ErrDefinitionInvalid, path, err)
}

// fieldPath drops the root type name from the namespace: Scenario.steps[0].name
// becomes steps[0].name.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
