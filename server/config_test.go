package server_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	itoml "github.com/influxdata/influxdb/toml"
	"github.com/influxdata/opsgenie-notify/server"
	"github.com/influxdata/opsgenie-notify/services/opsgenie"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[logging]
  level = "debug"
  encoding = "json"

[storage]
  boltdb = "/var/lib/opsgenie-notify/notify.db"

[opsgenie]
  enabled = true
  timeout = "5s"

  [[opsgenie.account]]
    id = "acct-1"
    name = "Acme Production"
    organization = "acme"
    api-key = "secret"
`

func TestParseConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsgenie-notify.conf")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0600))

	c, err := server.ParseConfig(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	require.Equal(t, "debug", c.Logging.Level)
	require.Equal(t, "STDERR", c.Logging.File)
	require.Equal(t, "/var/lib/opsgenie-notify/notify.db", c.Storage.BoltDBPath)
	require.True(t, c.OpsGenie.Enabled)
	require.Equal(t, itoml.Duration(5*time.Second), c.OpsGenie.Timeout)
	require.Equal(t, opsgenie.DefaultOpsGenieAPIURL, c.OpsGenie.URL)
	require.Len(t, c.OpsGenie.Accounts, 1)
	require.Equal(t, "secret", c.OpsGenie.Accounts[0].APIKey)

	_, err = server.ParseConfig(filepath.Join(t.TempDir(), "missing.conf"))
	require.Error(t, err)
}

func TestConfig_Encode(t *testing.T) {
	c := server.NewConfig()
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	require.Contains(t, buf.String(), `timeout = "10s"`)

	path := filepath.Join(t.TempDir(), "generated.conf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	parsed, err := server.ParseConfig(path)
	require.NoError(t, err)
	require.Equal(t, c.Logging, parsed.Logging)
	require.Equal(t, c.Storage, parsed.Storage)
	require.Equal(t, c.OpsGenie.URL, parsed.OpsGenie.URL)
	require.Equal(t, c.OpsGenie.Timeout, parsed.OpsGenie.Timeout)
	require.Empty(t, parsed.OpsGenie.Accounts)
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsgenie-notify.conf")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0600))
	c, err := server.ParseConfig(path)
	require.NoError(t, err)

	t.Setenv("OPSGENIE_NOTIFY_LOGGING_LEVEL", "error")
	t.Setenv("OPSGENIE_NOTIFY_OPSGENIE_ENABLED", "false")
	t.Setenv("OPSGENIE_NOTIFY_OPSGENIE_TIMEOUT", "1m")
	t.Setenv("OPSGENIE_NOTIFY_OPSGENIE_ACCOUNT_0_API_KEY", "from-env")
	require.NoError(t, c.ApplyEnvOverrides())

	require.Equal(t, "error", c.Logging.Level)
	require.False(t, c.OpsGenie.Enabled)
	require.Equal(t, itoml.Duration(time.Minute), c.OpsGenie.Timeout)
	require.Equal(t, "from-env", c.OpsGenie.Accounts[0].APIKey)

	t.Setenv("OPSGENIE_NOTIFY_OPSGENIE_ENABLED", "maybe")
	require.Error(t, c.ApplyEnvOverrides())
}

func TestConfig_Validate(t *testing.T) {
	c := server.NewConfig()
	require.NoError(t, c.Validate())

	c.Storage.BoltDBPath = ""
	require.Error(t, c.Validate())

	c = server.NewConfig()
	c.OpsGenie.Accounts = []opsgenie.AccountConfig{{ID: "acct-1"}}
	require.Error(t, c.Validate())
}
