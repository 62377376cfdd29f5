package contracts

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// Range selects a history window: either a trailing day count or an
// explicit [StartDate, EndDate] pair. The zero Range means "default".
type Range struct {
	Days      int    `json:"days,omitempty" validate:"gte=0"`
	StartDate string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Days returns a trailing-window range
func Days(n int) Range {
	return Range{Days: n}
}

// Between returns an explicit date range
func Between(start, end string) Range {
	return Range{StartDate: start, EndDate: end}
}

// IsZero reports whether no form was chosen
func (r Range) IsZero() bool {
	return r == Range{}
}

// IsExplicit reports whether r uses the start/end form
func (r Range) IsExplicit() bool {
	return r.StartDate != "" || r.EndDate != ""
}

// String renders the canonical key used for change detection
func (r Range) String() string {
	if r.IsExplicit() {
		return fmt.Sprintf("%s..%s", r.StartDate, r.EndDate)
	}
	return fmt.Sprintf("%dd", r.Days)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func rangeValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks r without applying defaults
func (r Range) Validate() error {
	if err := rangeValidator().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &InvalidRangeError{Field: fe.Field(), Message: describeTag(fe)}
		}
		return &InvalidRangeError{Field: "range", Message: err.Error()}
	}

	if r.Days != 0 && r.IsExplicit() {
		return &InvalidRangeError{Field: "days", Message: "days and start_date/end_date are mutually exclusive"}
	}

	if r.IsExplicit() {
		if r.StartDate == "" {
			return &InvalidRangeError{Field: "start_date", Message: "required with end_date"}
		}
		if r.EndDate == "" {
			return &InvalidRangeError{Field: "end_date", Message: "required with start_date"}
		}
		start, _ := time.Parse(dateLayout, r.StartDate)
		end, _ := time.Parse(dateLayout, r.EndDate)
		if end.Before(start) {
			return &InvalidRangeError{Field: "end_date", Message: "must not be before start_date"}
		}
	}

	return nil
}

// Canonical validates r and fills in the default trailing window
func (r Range) Canonical(defaultDays int) (Range, error) {
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	if r.IsZero() {
		return Days(defaultDays), nil
	}
	return r, nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be positive"
	case "datetime":
		return "must be a YYYY-MM-DD date"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
