package server

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/influxdata/opsgenie-notify/services/diagnostic"
	"github.com/influxdata/opsgenie-notify/services/opsgenie"
	"github.com/influxdata/opsgenie-notify/services/storage"
	"github.com/pkg/errors"
)

// EnvPrefix prefixes the environment variables overriding the configuration.
const EnvPrefix = "OPSGENIE_NOTIFY"

// Config represents the configuration format for the opsgenie-notify binary.
type Config struct {
	Logging  diagnostic.Config `toml:"logging"`
	Storage  storage.Config    `toml:"storage"`
	OpsGenie opsgenie.Config   `toml:"opsgenie"`
}

// NewConfig returns an instance of Config with reasonable defaults.
func NewConfig() *Config {
	return &Config{
		Logging:  diagnostic.NewConfig(),
		Storage:  storage.NewConfig(),
		OpsGenie: opsgenie.NewConfig(),
	}
}

// ParseConfig reads the configuration file at path on top of the defaults.
// An empty path returns the defaults.
func ParseConfig(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %q", path)
	}
	return c, nil
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return errors.Wrap(err, "invalid logging config")
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.OpsGenie.Validate(); err != nil {
		return errors.Wrap(err, "invalid opsgenie config")
	}
	return nil
}

func (c *Config) ApplyEnvOverrides() error {
	return c.applyEnvOverrides(EnvPrefix, "", reflect.ValueOf(c))
}

func (c *Config) applyEnvOverrides(prefix string, fieldDesc string, spec reflect.Value) error {
	// If we have a pointer, dereference it
	s := spec
	if spec.Kind() == reflect.Ptr {
		s = spec.Elem()
	}

	var value string

	if s.Kind() != reflect.Struct {
		value = os.Getenv(prefix)
		// Skip any fields we don't have a value to set
		if value == "" {
			return nil
		}

		if fieldDesc != "" {
			fieldDesc = " to " + fieldDesc
		}
	}

	switch s.Kind() {
	case reflect.String:
		s.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var intValue int64

		// Handle toml.Duration
		if s.Type().Name() == "Duration" {
			dur, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)
			}
			intValue = dur.Nanoseconds()
		} else {
			var err error
			intValue, err = strconv.ParseInt(value, 0, s.Type().Bits())
			if err != nil {
				return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)
			}
		}
		s.SetInt(intValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)
		}
		s.SetBool(boolValue)
	case reflect.Struct:
		if err := c.applyEnvOverridesToStruct(prefix, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyEnvOverridesToStruct(prefix string, s reflect.Value) error {
	typeOfSpec := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		// Get the toml tag to determine what env var name to use
		configName := typeOfSpec.Field(i).Tag.Get("toml")
		// Replace hyphens with underscores to avoid issues with shells
		configName = strings.Replace(configName, "-", "_", -1)
		fieldName := typeOfSpec.Field(i).Name

		// Skip any fields that we cannot set
		if !f.CanSet() {
			continue
		}
		key := strings.ToUpper(fmt.Sprintf("%s_%s", prefix, configName))

		// Slices are indexed by position, e.g. OPSGENIE_NOTIFY_OPSGENIE_ACCOUNT_0_API_KEY
		if f.Kind() == reflect.Slice {
			for i := 0; i < f.Len(); i++ {
				if err := c.applyEnvOverrides(fmt.Sprintf("%s_%d", key, i), fieldName, f.Index(i)); err != nil {
					return err
				}
			}
		} else if err := c.applyEnvOverrides(key, fieldName, f); err != nil {
			return err
		}
	}
	return nil
}
