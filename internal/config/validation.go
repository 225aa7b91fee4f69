package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/climbratings/internal/domain/whr"
)

// NewValidator returns a validator with the config's custom rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("initialization", validateInitialization)
	_ = v.RegisterValidation("finite", validateFinite)
	_ = v.RegisterValidation("metricname", validateMetricName)
	_ = v.RegisterValidation("metriclabels", validateMetricLabels)
	return v
}

// Validate checks field rules and cross-field constraints.
func Validate(cfg *Config) error {
	if err := NewValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	// A tolerance this coarse stops after the first iteration regardless of data.
	if cfg.Tolerance >= 1 {
		return fmt.Errorf("%w: tolerance %g must be below 1", ErrInvalidConfig, cfg.Tolerance)
	}
	return nil
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateInitialization(fl validator.FieldLevel) bool {
	_, ok := whr.ParseInitialization(fl.Field().String())
	return ok
}

func validateFinite(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateMetricName(fl validator.FieldLevel) bool {
	return metricNameRE.MatchString(fl.Field().String())
}

func validateMetricLabels(fl validator.FieldLevel) bool {
	_, err := parseLabels(fl.Field().String())
	return err == nil
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
