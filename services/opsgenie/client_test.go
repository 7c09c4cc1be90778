package opsgenie_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/influxdata/opsgenie-notify/services/opsgenie"
	"github.com/influxdata/opsgenie-notify/services/opsgenie/opsgenietest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	ts := opsgenietest.NewServer(
		map[string]string{"Platform/Infra": "team-infra"},
		map[string]string{"jane": "user-jane"},
	)
	defer ts.Close()
	c, err := opsgenie.NewClient(ts.URL, "key", time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	team, err := c.GetTeam(ctx, "Platform/Infra", opsgenie.IdentifierName)
	require.NoError(t, err)
	require.Equal(t, opsgenie.Team{ID: "team-infra", Name: "Platform/Infra"}, team)

	user, err := c.GetUser(ctx, "jane")
	require.NoError(t, err)
	require.Equal(t, "user-jane", user.ID)

	_, err = c.GetUser(ctx, "bob")
	require.Equal(t, opsgenie.ErrNotFound, err)

	resp, err := c.CreateAlert(ctx, opsgenie.AlertPayload{Message: "m", Alias: "sentry: 1", Source: opsgenie.Source})
	require.NoError(t, err)
	require.Equal(t, "request-sentry: 1", resp.RequestID)

	reqs := ts.Requests()
	require.Len(t, reqs, 4)
	require.Equal(t, "/v2/teams/Platform/Infra", reqs[0].Path)
	require.Equal(t, "/v2/alerts", reqs[3].Path)
	require.JSONEq(t, `{"message":"m","alias":"sentry: 1","details":{},"source":"Sentry"}`, string(reqs[3].Body))
	for _, r := range reqs {
		require.Equal(t, "GenieKey key", r.Authorization)
	}
}

func TestClient_APIError(t *testing.T) {
	ts := opsgenietest.NewServer(nil, nil)
	defer ts.Close()
	ts.SetStatus(http.StatusUnprocessableEntity)
	c, err := opsgenie.NewClient(ts.URL, "key", time.Second)
	require.NoError(t, err)

	_, err = c.CreateAlert(context.Background(), opsgenie.AlertPayload{})
	var apiErr *opsgenie.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "Unprocessable Entity", apiErr.Message)
}

func TestClient_Timeout(t *testing.T) {
	c, err := opsgenie.NewClient("http://127.0.0.1:1", "key", 100*time.Millisecond)
	require.NoError(t, err)
	_, err = c.GetUser(context.Background(), "jane")
	require.Error(t, err)
}
