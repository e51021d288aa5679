package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

var durationType = reflect.TypeOf(time.Duration(0))

// LoadFromEnv overrides fields of cfg from the environment variables named
// by their `env` struct tags, descending into nested structs. Empty
// variables are ignored. Every malformed variable is reported, not just the
// first one.
func LoadFromEnv(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	var errs error
	walkEnv(v, func(field reflect.Value, name string) {
		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			return
		}
		multierr.AppendInto(&errs, setFromEnv(field, name, raw))
	})
	return errs
}

// walkEnv calls fn for every settable field carrying an env tag.
func walkEnv(v reflect.Value, fn func(reflect.Value, string)) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			walkEnv(field, fn)
			continue
		}
		if name := t.Field(i).Tag.Get("env"); name != "" {
			fn(field, name)
		}
	}
}

func setFromEnv(field reflect.Value, name, raw string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration in %s: %w", name, err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid integer in %s: %w", name, err)
		}
		field.SetInt(int64(n))

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean in %s: %w", name, err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.String:
		field.SetString(raw)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		// Search paths and extensions are comma separated.
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported type %s for %s", field.Type(), name)
	}
	return nil
}
