// Package config loads daemon options from a TOML file and the environment,
// and watches files for changes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/videomixer/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "VIDEOMIXER_"

// LoadConfig fills the exported fields of opts, a pointer to a flat struct.
//
// Precedence is CLI flags > environment > TOML file > struct defaults.
// A field named Config holds the TOML path. Fields map to the file through
// a dotted `toml` tag and to the environment through an `env` tag. Flags
// changed on cmd are left alone; cmd may be nil.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: expected pointer to struct, got %T", opts)
	}
	v = v.Elem()

	changed := changedFlags(cmd)
	skip := func(f reflect.StructField) bool { return changed[fieldNameToFlag(f.Name)] }

	if path := configPath(v); path != "" {
		values, err := readTOML(path)
		if err != nil {
			return err
		}
		eachField(v, func(field reflect.Value, f reflect.StructField) {
			tag := f.Tag.Get("toml")
			if tag == "" || skip(f) {
				return
			}
			if value := getNestedValue(values, tag); value != nil {
				setFieldValue(field, value)
			}
		})
	}

	eachField(v, func(field reflect.Value, f reflect.StructField) {
		tag := f.Tag.Get("env")
		if tag == "" || skip(f) {
			return
		}
		if value, ok := os.LookupEnv(EnvPrefix + tag); ok && value != "" {
			setFieldValueFromString(field, value)
		}
	})

	return nil
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = true
	})
	return changed
}

func configPath(v reflect.Value) string {
	field := v.FieldByName("Config")
	if !field.IsValid() || field.Kind() != reflect.String {
		return ""
	}
	return field.String()
}

// readTOML returns nil values when the file does not exist.
func readTOML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var values map[string]any
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return values, nil
}

func eachField(v reflect.Value, fn func(reflect.Value, reflect.StructField)) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).IsExported() {
			fn(v.Field(i), t.Field(i))
		}
	}
}

// fieldNameToFlag converts a field name to the flag humacli derives from it,
// e.g. "LoggingLevel" -> "logging-level".
func fieldNameToFlag(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// getNestedValue resolves a dotted path such as "server.port".
func getNestedValue(data map[string]any, path string) any {
	current := data
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current[parts[len(parts)-1]]
}

// setFieldValue assigns a decoded TOML value. Mismatched types are ignored.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Float64:
		switch n := value.(type) {
		case float64:
			field.SetFloat(n)
		case int64:
			field.SetFloat(float64(n))
		}
	case reflect.Slice:
		items, ok := value.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
}

// setFieldValueFromString assigns an environment value. Slices are comma separated.
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if n, err := strconv.ParseInt(value, 0, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
}

// LoadLoggingConfig reads only the [logging] table. Subcommands use it to
// set up logging without the full daemon options. Missing or broken files
// yield the defaults.
func LoadLoggingConfig(path string) logging.Config {
	cfg := logging.Config{Level: "info", Format: "text", Modules: make(map[string]string)}

	values, err := readTOML(path)
	if err != nil || values == nil {
		return cfg
	}
	table, ok := values["logging"].(map[string]any)
	if !ok {
		return cfg
	}

	for key, raw := range table {
		value, ok := raw.(string)
		if !ok {
			continue
		}
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
