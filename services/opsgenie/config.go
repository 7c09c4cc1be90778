package opsgenie

import (
	"net/url"
	"time"

	"github.com/influxdata/influxdb/toml"
	"github.com/pkg/errors"
)

const (
	DefaultOpsGenieAPIURL = "https://api.opsgenie.com"
	DefaultTimeout        = 10 * time.Second
)

type Config struct {
	// Whether to enable OpsGenie integration.
	Enabled bool `toml:"enabled"`
	// The OpsGenie API URL used by accounts that do not set their own.
	URL string `toml:"url"`
	// Timeout of every request made to the OpsGenie API.
	Timeout toml.Duration `toml:"timeout"`
	// Accounts seeded into the account store when the service opens.
	Accounts []AccountConfig `toml:"account"`
}

// AccountConfig is an OpsGenie integration owned by an organization.
type AccountConfig struct {
	ID           string `toml:"id"`
	Name         string `toml:"name"`
	Organization string `toml:"organization"`
	// The OpsGenie API key.
	APIKey string `toml:"api-key"`
	URL    string `toml:"url"`
}

func NewConfig() Config {
	return Config{
		URL:     DefaultOpsGenieAPIURL,
		Timeout: toml.Duration(DefaultTimeout),
	}
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("url cannot be empty")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return errors.Wrapf(err, "invalid URL %q", c.URL)
	}
	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	ids := make(map[string]bool, len(c.Accounts))
	for _, a := range c.Accounts {
		if err := a.Validate(); err != nil {
			return errors.Wrapf(err, "invalid account %q", a.ID)
		}
		if ids[a.ID] {
			return errors.Errorf("duplicate account id %q", a.ID)
		}
		ids[a.ID] = true
	}
	return nil
}

func (a AccountConfig) Validate() error {
	if a.ID == "" {
		return errors.New("id cannot be empty")
	}
	if a.Organization == "" {
		return errors.New("organization cannot be empty")
	}
	if a.APIKey == "" {
		return errors.New("api-key cannot be empty")
	}
	if a.URL != "" {
		if _, err := url.Parse(a.URL); err != nil {
			return errors.Wrapf(err, "invalid URL %q", a.URL)
		}
	}
	return nil
}

// Account converts the config into a stored account.
func (a AccountConfig) Account() Account {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	return Account{
		ID:           a.ID,
		Name:         name,
		Organization: a.Organization,
		APIKey:       a.APIKey,
		URL:          a.URL,
	}
}
