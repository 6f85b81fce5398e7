// Package config loads KissVDB's configuration surface from YAML/JSON with
// environment variable overrides, adapted from fluxor's pkg/config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator validates a loaded configuration.
type Validator interface {
	Validate(cfg interface{}) error
}

// ValidatorFunc adapts a function to a Validator.
type ValidatorFunc func(cfg interface{}) error

func (f ValidatorFunc) Validate(cfg interface{}) error { return f(cfg) }

// Load loads configuration from path into target, auto-detecting YAML vs
// JSON by file extension (defaulting to YAML).
func Load(path string, target interface{}) error {
	if strings.HasSuffix(path, ".json") {
		return LoadJSON(path, target)
	}
	return LoadYAML(path, target)
}

// LoadWithEnv loads from path and then applies FLUXOR_-style environment
// variable overrides under prefix (e.g. prefix "KISSVDB" overrides
// `Config.Port` via env var KISSVDB_PORT).
func LoadWithEnv(path string, prefix string, target interface{}) error {
	if path != "" {
		if err := Load(path, target); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}
	if err := ApplyEnvOverrides(prefix, target); err != nil {
		return fmt.Errorf("apply env overrides: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read JSON config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal JSON config: %w", err)
	}
	return nil
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read YAML config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides walks target's exported fields and overrides any field
// whose PREFIX_FIELDNAME environment variable is set.
func ApplyEnvOverrides(prefix string, target interface{}) error {
	if prefix == "" {
		prefix = "KISSVDB"
	}
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to a struct")
	}
	return applyEnvToStruct(prefix, val.Elem())
}

func applyEnvToStruct(prefix string, val reflect.Value) error {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !field.CanSet() {
			continue
		}
		envKey := strings.ToUpper(prefix + "_" + fieldType.Name)
		envKey = strings.ReplaceAll(envKey, "-", "_")

		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(envKey, field); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}
		if err := setFieldFromEnv(field, envValue); err != nil {
			return fmt.Errorf("set field %s from env %s: %w", fieldType.Name, envKey, err)
		}
	}
	return nil
}

func setFieldFromEnv(field reflect.Value, envValue string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var v int64
		if _, err := fmt.Sscanf(envValue, "%d", &v); err != nil {
			return fmt.Errorf("invalid integer value %q", envValue)
		}
		field.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var v uint64
		if _, err := fmt.Sscanf(envValue, "%d", &v); err != nil {
			return fmt.Errorf("invalid unsigned integer value %q", envValue)
		}
		field.SetUint(v)
	case reflect.Float32, reflect.Float64:
		var v float64
		if _, err := fmt.Sscanf(envValue, "%f", &v); err != nil {
			return fmt.Errorf("invalid float value %q", envValue)
		}
		field.SetFloat(v)
	case reflect.Bool:
		field.SetBool(strings.EqualFold(envValue, "true") || envValue == "1")
	default:
		return fmt.Errorf("unsupported field kind %s for env override", field.Kind())
	}
	return nil
}

// Validate runs every validator against cfg, returning the first error.
func Validate(cfg interface{}, validators ...Validator) error {
	for _, v := range validators {
		if err := v.Validate(cfg); err != nil {
			return err
		}
	}
	return nil
}
