package opsgenie_test

import (
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	itoml "github.com/influxdata/influxdb/toml"
	"github.com/influxdata/opsgenie-notify/services/opsgenie"
	"github.com/stretchr/testify/require"
)

func TestConfig_Decode(t *testing.T) {
	c := opsgenie.NewConfig()
	_, err := toml.Decode(`
enabled = true
timeout = "3s"

[[account]]
  id = "acct-1"
  name = "Acme Production"
  organization = "acme"
  api-key = "secret"

[[account]]
  id = "acct-2"
  organization = "initech"
  api-key = "other"
  url = "https://api.eu.opsgenie.com"
`, &c)
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	require.True(t, c.Enabled)
	require.Equal(t, opsgenie.DefaultOpsGenieAPIURL, c.URL)
	require.Equal(t, itoml.Duration(3*time.Second), c.Timeout)
	require.Len(t, c.Accounts, 2)
	require.Equal(t, "acct-2", c.Accounts[1].Account().Name)
	require.Equal(t, "https://api.eu.opsgenie.com", c.Accounts[1].Account().URL)
}

func TestConfig_Validate(t *testing.T) {
	account := opsgenie.AccountConfig{ID: "a", Organization: "o", APIKey: "k"}
	testCases := []struct {
		name string
		c    func(c *opsgenie.Config)
		err  string
	}{
		{name: "defaults", c: func(c *opsgenie.Config) {}},
		{name: "empty url", c: func(c *opsgenie.Config) { c.URL = "" }, err: "url cannot be empty"},
		{name: "bad url", c: func(c *opsgenie.Config) { c.URL = "http://[::1" }, err: "invalid URL"},
		{name: "negative timeout", c: func(c *opsgenie.Config) { c.Timeout = -1 }, err: "timeout cannot be negative"},
		{
			name: "missing api key",
			c: func(c *opsgenie.Config) {
				c.Accounts = []opsgenie.AccountConfig{{ID: "a", Organization: "o"}}
			},
			err: `invalid account "a": api-key cannot be empty`,
		},
		{
			name: "missing organization",
			c: func(c *opsgenie.Config) {
				c.Accounts = []opsgenie.AccountConfig{{ID: "a", APIKey: "k"}}
			},
			err: `invalid account "a": organization cannot be empty`,
		},
		{
			name: "duplicate id",
			c: func(c *opsgenie.Config) {
				c.Accounts = []opsgenie.AccountConfig{account, account}
			},
			err: `duplicate account id "a"`,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c := opsgenie.NewConfig()
			tc.c(&c)
			err := c.Validate()
			if tc.err == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}
