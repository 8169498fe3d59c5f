package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their query parameter name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// ParamError is a rejected job query parameter.
type ParamError struct {
	Err error
}

func (e *ParamError) Error() string { return "invalid parameters: " + e.Err.Error() }
func (e *ParamError) Unwrap() error { return e.Err }

// Validate checks the validate tags of p.
func Validate(p any) error {
	err := validate.Struct(p)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return err
}

// IntParam reads key as an integer, or def when absent.
func IntParam(q url.Values, key string, def int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, s)
	}
	return n, nil
}

// DateParam reads key as YYYY-MM-DD, or def when absent.
func DateParam(q url.Values, key string, def time.Time) (time.Time, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %q is not a YYYY-MM-DD date", key, s)
	}
	return d, nil
}

// dailyParams selects the days [Date - BackfillDays, Date].
type dailyParams struct {
	Date         time.Time `query:"date"`
	BackfillDays int       `query:"backfill_days" validate:"gte=0,lte=366"`
}

func (p dailyParams) From() time.Time { return p.Date.AddDate(0, 0, -p.BackfillDays) }

func parseDaily(q url.Values, today time.Time) (dailyParams, error) {
	var p dailyParams
	var err error
	if p.Date, err = DateParam(q, "date", today.AddDate(0, 0, -1)); err != nil {
		return p, err
	}
	if p.BackfillDays, err = IntParam(q, "backfill_days", 0); err != nil {
		return p, err
	}
	return p, Validate(p)
}
