package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags, then cross-field rules the tags cannot express
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperrors.NewConfigurationError("invalid configuration", err)
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Namespace())] = fmt.Sprintf("failed on %q %s", fe.Tag(), fe.Param())
		}
		return apperrors.NewValidationErrorWithMap(fields)
	}

	if _, err := c.Location(); err != nil {
		return apperrors.NewConfigurationError(fmt.Sprintf("unknown timezone %q", c.Scheduler.Timezone), err)
	}

	if c.Fairness.SmallVendorSevere > c.Fairness.SmallVendorMinimum {
		return apperrors.NewConfigurationError("fairness.small_vendor_severe must not exceed small_vendor_minimum", nil)
	}

	return nil
}
