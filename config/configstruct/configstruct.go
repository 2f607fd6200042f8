// Package configstruct populates a typed Options struct from a configmap.Mapper
// using `config` and `default` struct tags, mirrored from rclone's
// fs/config/configstruct.
package configstruct

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Set populates the exported fields of opt (a pointer to a struct) from m,
// using each field's `config` tag as the lookup key and its `default` tag
// as the fallback when the key is absent. Supported field kinds: string,
// bool, int, int64, uint32, float64.
func Set(m interface {
	Get(key string) (string, bool)
}, opt any) error {
	v := reflect.ValueOf(opt)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("configstruct: opt must be a pointer to a struct, got %T", opt)
	}
	elem := v.Elem()
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key, ok := field.Tag.Lookup("config")
		if !ok || key == "" {
			continue
		}
		raw, found := m.Get(key)
		if !found {
			raw, found = field.Tag.Lookup("default")
			if !found {
				continue
			}
		}
		fv := elem.Field(i)
		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("configstruct: field %s (config key %q): %w", field.Name, key, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int64, reflect.Int32:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint64, reflect.Uint32:
		n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(n)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}
