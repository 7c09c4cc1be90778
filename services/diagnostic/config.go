package diagnostic

import (
	"fmt"
	"strings"
)

type Config struct {
	// File is STDERR, STDOUT or the path of a log file.
	File  string `toml:"file"`
	Level string `toml:"level"`
	// Encoding is either logfmt or json.
	Encoding string `toml:"encoding"`
}

func NewConfig() Config {
	return Config{
		File:     "STDERR",
		Level:    "INFO",
		Encoding: "logfmt",
	}
}

func (c Config) Validate() error {
	if c.File == "" {
		return fmt.Errorf("file cannot be empty")
	}
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Encoding) {
	case "logfmt", "json":
	default:
		return fmt.Errorf("unknown log encoding %s", c.Encoding)
	}
	return nil
}
