package validator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	playground "github.com/go-playground/validator/v10"

	"github.com/eddielth/signal-monitor/telemetry"
)

// Validator checks one decoded message
type Validator interface {
	Validate(data interface{}) error
}

var (
	structValidator     *playground.Validate
	structValidatorOnce sync.Once
)

func structs() *playground.Validate {
	structValidatorOnce.Do(func() {
		v := playground.New(playground.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonName)
		structValidator = v
	})
	return structValidator
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// TagValidator applies the `validate` struct tags.
type TagValidator struct{}

// Validate runs the struct tag rules on data.
func (TagValidator) Validate(data interface{}) error {
	if err := structs().Struct(data); err != nil {
		if verrs, ok := err.(playground.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("field %s failed %s(%s) with value %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// RangeValidator checks that a numeric field lies in [Min, Max]. Field is
// matched against the Go field name or its json name. Nil pointer fields
// are skipped.
type RangeValidator struct {
	Field string
	Min   float64
	Max   float64
}

// Validate checks the field of data against the range
func (rv *RangeValidator) Validate(data interface{}) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return fmt.Errorf("data must be a struct, got %s", v.Kind())
	}

	field, ok := lookupField(v, rv.Field)
	if !ok {
		return fmt.Errorf("field %s does not exist", rv.Field)
	}

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil
		}
		field = field.Elem()
	}

	var value float64
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		value = field.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value = float64(field.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value = float64(field.Uint())
	default:
		return fmt.Errorf("field %s is not numeric", rv.Field)
	}

	if value < rv.Min || value > rv.Max {
		return fmt.Errorf("field %s value %g out of range [%g, %g]", rv.Field, value, rv.Min, rv.Max)
	}

	return nil
}

func lookupField(v reflect.Value, name string) (reflect.Value, bool) {
	if f := v.FieldByName(name); f.IsValid() {
		return f, true
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if jsonName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Chain runs validators in order and stops at the first error.
type Chain []Validator

func (c Chain) Validate(data interface{}) error {
	for _, v := range c {
		if err := v.Validate(data); err != nil {
			return err
		}
	}
	return nil
}

// Range is a configured bound, keyed by field name in NewSampleValidator.
type Range struct {
	Min float64
	Max float64
}

// NewSampleValidator builds the ingest validator for device samples: the
// struct tags first, then the configured ranges in field name order.
func NewSampleValidator(ranges map[string]Range) Validator {
	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	sort.Strings(names)

	chain := Chain{TagValidator{}}
	for _, name := range names {
		r := ranges[name]
		chain = append(chain, &RangeValidator{Field: name, Min: r.Min, Max: r.Max})
	}
	return chain
}

// ValidateSample is a convenience for a single sample with tag rules only.
func ValidateSample(s telemetry.DeviceSample) error {
	return TagValidator{}.Validate(s)
}
