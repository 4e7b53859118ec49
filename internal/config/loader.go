package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// LookupFunc returns the value of a configuration variable and whether it is set.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an explicit variable source.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from the lookup source.
func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := lookupFirst(lookup, envName, field.Tag.Get("envAlt"))
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// lookupFirst returns the first non-blank value among names.
func lookupFirst(lookup LookupFunc, names ...string) string {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string
	errs = append(errs, c.Database.problems()...)
	errs = append(errs, c.Server.problems()...)
	errs = append(errs, c.Upload.problems()...)
	errs = append(errs, c.Import.problems()...)
	errs = append(errs, c.Security.problems()...)
	errs = append(errs, c.Logging.problems()...)

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (d DatabaseConfig) problems() []string {
	var errs []string
	if d.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if d.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if d.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if d.MaxConns < d.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", d.MaxConns, d.MinConns))
	}
	return errs
}

func (s ServerConfig) problems() []string {
	var errs []string
	if s.Port <= 0 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", s.Port))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	return errs
}

func (u UploadConfig) problems() []string {
	positive := []struct {
		name string
		ok   bool
	}{
		{"UPLOAD_MAX_FILE_SIZE", u.MaxFileSize > 0},
		{"UPLOAD_MAX_CONCURRENT", u.MaxConcurrent > 0},
		{"UPLOAD_MAX_WAIT_TIME", u.MaxWaitTime > 0},
		{"UPLOAD_TIMEOUT", u.Timeout > 0},
	}

	var errs []string
	for _, p := range positive {
		if !p.ok {
			errs = append(errs, p.name+" must be positive")
		}
	}
	return errs
}

func (i ImportConfig) problems() []string {
	var errs []string
	if !currencyCode.MatchString(i.DefaultCurrency) {
		errs = append(errs, fmt.Sprintf("IMPORT_DEFAULT_CURRENCY (%q) must be a 3-letter uppercase code", i.DefaultCurrency))
	}
	if i.HistoryLimit <= 0 {
		errs = append(errs, "IMPORT_HISTORY_LIMIT must be positive")
	}
	return errs
}

func (s SecurityConfig) problems() []string {
	var errs []string
	if s.RequireAPIKey && len(s.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}
	if s.RateLimitPerMinute < 0 {
		errs = append(errs, "RATE_LIMIT_PER_MINUTE must be non-negative")
	}
	return errs
}

func (l LoggingConfig) problems() []string {
	var errs []string
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", l.Format))
	}
	return errs
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d, MigrateOnStart: %v}, ",
		c.Database.MaxConns, c.Database.MinConns, c.Database.MigrateOnStart)
	fmt.Fprintf(&b, "Upload: {MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s}, ",
		c.Upload.MaxFileSize, c.Upload.MaxConcurrent, c.Upload.Timeout)
	fmt.Fprintf(&b, "Import: {DefaultCurrency: %q}, ", c.Import.DefaultCurrency)
	fmt.Fprintf(&b, "Security: {APIKeys: [%d MASKED], RequireAPIKey: %v, AllowedOrigins: %v, RateLimitPerMinute: %d}, ",
		len(c.Security.APIKeys), c.Security.RequireAPIKey, c.Security.AllowedOrigins, c.Security.RateLimitPerMinute)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
