package opsgenie_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/opsgenie-notify/alert"
	"github.com/influxdata/opsgenie-notify/models"
	"github.com/influxdata/opsgenie-notify/rules"
	"github.com/influxdata/opsgenie-notify/services/opsgenie"
	"github.com/influxdata/opsgenie-notify/services/tagstore"
	"github.com/stretchr/testify/require"
)

var (
	lastSeen  = time.Date(2019, 3, 4, 10, 0, 0, 0, time.UTC)
	eventTime = time.Date(2019, 3, 4, 10, 5, 0, 0, time.UTC)
)

func testGroup() *models.Group {
	return &models.Group{
		ID:               42,
		QualifiedShortID: "BACKEND-1A",
		Title:            "ValueError: invalid literal for int()",
		Message:          "invalid literal for int()\nTraceback",
		Culprit:          "app.views.index",
		Checksum:         "a1b2c3",
		Logger:           "django",
		Level:            alert.Error,
		Status:           models.Unresolved,
		Type:             models.EventTypeError,
		Metadata: map[string]string{
			"type":  "ValueError",
			"value": "invalid literal for int() with base 10: 'x'",
		},
		LastSeen: lastSeen,
		Project: models.Project{
			ID:           1,
			Slug:         "backend",
			Name:         "Backend",
			Organization: "acme",
		},
		Permalink: "https://sentry.example.com/acme/backend/issues/42/",
	}
}

func testEvent(g *models.Group) models.Event {
	return models.Event{
		ID:       "ev1",
		Group:    g,
		Datetime: eventTime,
		Tags: []models.Tag{
			{Key: "level", Value: "error"},
			{Key: "environment", Value: "production"},
			{Key: "sentry:user", Value: "email:jane@example.com"},
			{Key: "browser", Value: "Chrome 72"},
		},
	}
}

func newBuilder() opsgenie.Builder {
	return opsgenie.Builder{Tags: tagstore.New()}
}

func TestBuilder_Build(t *testing.T) {
	g := testGroup()
	p := newBuilder().Build(g, testEvent(g), "team-1", "user-1", "", map[string]bool{"environment": true, "user": true}, []rules.Rule{{ID: "r1", Label: "Page backend"}})

	exp := opsgenie.AlertPayload{
		Message:     "ValueError - app.views.index",
		Alias:       "sentry: 42",
		Description: "invalid literal for int() with base 10: 'x'",
		Responders: []opsgenie.Responder{
			{ID: "team-1", Type: opsgenie.ResponderTeam},
			{ID: "user-1", Type: opsgenie.ResponderUser},
		},
		Tags: []string{"environment:production", "user:jane@example.com"},
		Details: opsgenie.Details{
			{Key: "Sentry ID", Value: "42"},
			{Key: "Sentry Group", Value: "invalid literal for int()"},
			{Key: "Checksum", Value: "a1b2c3"},
			{Key: "Project ID", Value: "backend"},
			{Key: "Project Name", Value: "Backend"},
			{Key: "Logger", Value: "django"},
			{Key: "Level", Value: "error"},
			{Key: "URL", Value: "https://sentry.example.com/acme/backend/issues/42/?referrer=opsgenie"},
			{Key: "Timestamp", Value: "2019-03-04T10:05:00Z"},
			{Key: "Triggering Rules", Value: "BACKEND-1A via Page backend"},
		},
		Entity:   "app.views.index",
		Source:   "Sentry",
		Priority: alert.P2,
	}
	if !cmp.Equal(exp, p) {
		t.Errorf("unexpected payload -exp/+got:\n%s", cmp.Diff(exp, p))
	}
}

func TestBuilder_Build_Pure(t *testing.T) {
	g := testGroup()
	e := testEvent(g)
	tags := map[string]bool{"browser": true}
	b := newBuilder()
	p1 := b.Build(g, e, "team-1", "", alert.P4, tags, nil)
	p2 := b.Build(g, e, "team-1", "", alert.P4, tags, nil)
	if !cmp.Equal(p1, p2) {
		t.Errorf("payloads differ:\n%s", cmp.Diff(p1, p2))
	}
	require.Equal(t, "sentry: 42", p1.Alias)
	require.Equal(t, opsgenie.Alias(g), p2.Alias)
}

func TestBuilder_Build_Message(t *testing.T) {
	longType := strings.Repeat("E", 50)
	testCases := []struct {
		name     string
		typ      string
		culprit  string
		title    string
		metadata map[string]string
		exp      string
	}{
		{
			name:     "error with type",
			typ:      models.EventTypeError,
			culprit:  "main.go in run",
			metadata: map[string]string{"type": "KeyError"},
			exp:      "KeyError - main.go in run",
		},
		{
			name:     "error type shortened",
			typ:      models.EventTypeError,
			culprit:  "c",
			metadata: map[string]string{"type": longType},
			exp:      strings.Repeat("E", 40) + " - c",
		},
		{
			name:     "error type without culprit",
			typ:      models.EventTypeError,
			metadata: map[string]string{"type": longType},
			exp:      longType,
		},
		{
			name:    "error without type",
			typ:     models.EventTypeError,
			title:   "Something broke",
			culprit: "worker",
			exp:     "Something broke - worker",
		},
		{
			name:     "csp",
			typ:      models.EventTypeCSP,
			culprit:  "ignored",
			metadata: map[string]string{"directive": "script-src", "uri": "https://evil.example.com"},
			exp:      "script-src - https://evil.example.com",
		},
		{
			name:    "default shortens title",
			typ:     models.EventTypeDefault,
			title:   strings.Repeat("t", 45),
			culprit: "c",
			exp:     strings.Repeat("t", 40) + " - c",
		},
		{
			name:  "default without culprit",
			title: "Plain message",
			exp:   "Plain message",
		},
		{
			name:  "truncated",
			title: strings.Repeat("m", 200),
			exp:   strings.Repeat("m", opsgenie.MaxMessageLength-3) + "...",
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			g := testGroup()
			g.Type = tc.typ
			g.Culprit = tc.culprit
			g.Title = tc.title
			g.Metadata = tc.metadata
			p := newBuilder().Build(g, models.Event{Group: g}, "", "", "", nil, nil)
			require.Equal(t, tc.exp, p.Message)
			require.LessOrEqual(t, len([]rune(p.Message)), opsgenie.MaxMessageLength)
		})
	}
}

func TestBuilder_Build_Description(t *testing.T) {
	g := testGroup()
	e := testEvent(g)

	e.Metadata = map[string]string{"function": "handler"}
	p := newBuilder().Build(g, e, "", "", "", nil, nil)
	require.Equal(t, "handler", p.Description)

	e.Type = models.EventTypeDefault
	p = newBuilder().Build(g, e, "", "", "", nil, nil)
	require.Empty(t, p.Description)

	e = testEvent(g)
	e.Metadata = map[string]string{"value": strings.Repeat("v", 20000)}
	p = newBuilder().Build(g, e, "", "", "", nil, nil)
	require.Len(t, p.Description, opsgenie.MaxDescriptionLength)
}

func TestBuilder_Build_Priority(t *testing.T) {
	testCases := []struct {
		name     string
		level    string
		explicit alert.Priority
		exp      alert.Priority
	}{
		{name: "debug", level: "debug", exp: alert.P5},
		{name: "info", level: "info", exp: alert.P4},
		{name: "warning", level: "warning", exp: alert.P3},
		{name: "error", level: "error", exp: alert.P2},
		{name: "fatal", level: "fatal", exp: alert.P1},
		{name: "explicit wins", level: "fatal", explicit: alert.P5, exp: alert.P5},
		{name: "unknown level", level: "critical", exp: ""},
		{name: "no level"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			g := testGroup()
			e := models.Event{Group: g}
			if tc.level != "" {
				e.Tags = []models.Tag{{Key: "level", Value: tc.level}}
			}
			p := newBuilder().Build(g, e, "", "", tc.explicit, nil, nil)
			require.Equal(t, tc.exp, p.Priority)
		})
	}
}

func TestBuilder_Build_Tags(t *testing.T) {
	g := testGroup()
	e := testEvent(g)
	e.Tags = append(e.Tags, models.Tag{Key: "sentry:release", Value: "0123456789abcdef0123456789abcdef01234567"})

	p := newBuilder().Build(g, e, "", "", "", map[string]bool{"release": true, "browser": true, "missing": true}, nil)
	require.Equal(t, []string{"browser:Chrome 72", "release:0123456789ab"}, p.Tags)

	p = newBuilder().Build(g, e, "", "", "", nil, nil)
	require.Empty(t, p.Tags)
}

func TestBuilder_Build_Responders(t *testing.T) {
	g := testGroup()
	p := newBuilder().Build(g, testEvent(g), "", "user-1", "", nil, nil)
	require.Equal(t, []opsgenie.Responder{{ID: "user-1", Type: opsgenie.ResponderUser}}, p.Responders)

	p = newBuilder().Build(g, testEvent(g), "", "", "", nil, nil)
	require.Empty(t, p.Responders)
}

func TestBuilder_Build_TriggeringRules(t *testing.T) {
	g := testGroup()
	testCases := []struct {
		rules []rules.Rule
		exp   string
	}{
		{exp: "BACKEND-1A"},
		{rules: []rules.Rule{{Label: "first"}}, exp: "BACKEND-1A via first"},
		{rules: []rules.Rule{{Label: "first"}, {Label: "second"}}, exp: "BACKEND-1A via first (+1 other)"},
		{rules: []rules.Rule{{Label: "first"}, {Label: "second"}, {Label: "third"}}, exp: "BACKEND-1A via first (+2 other)"},
	}
	for _, tc := range testCases {
		p := newBuilder().Build(g, testEvent(g), "", "", "", nil, tc.rules)
		got, ok := p.Details.Get("Triggering Rules")
		require.True(t, ok)
		require.Equal(t, tc.exp, got)
	}
}

func TestBuilder_Build_Timestamp(t *testing.T) {
	g := testGroup()
	e := testEvent(g)
	e.Datetime = lastSeen.Add(-time.Hour)
	p := newBuilder().Build(g, e, "", "", "", nil, nil)
	got, _ := p.Details.Get("Timestamp")
	require.Equal(t, "2019-03-04T10:00:00Z", got)
}

func TestDetails_MarshalJSON(t *testing.T) {
	d := opsgenie.Details{
		{Key: "Zeta", Value: "1"},
		{Key: "Alpha", Value: "\"quoted\""},
	}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `{"Zeta":"1","Alpha":"\"quoted\""}`, string(b))

	b, err = json.Marshal(opsgenie.Details{})
	require.NoError(t, err)
	require.Equal(t, `{}`, string(b))
}

func TestAlertPayload_OmitsEmptyPriority(t *testing.T) {
	b, err := json.Marshal(opsgenie.AlertPayload{Message: "m", Alias: "sentry: 1", Source: opsgenie.Source})
	require.NoError(t, err)
	require.NotContains(t, string(b), "priority")
	require.NotContains(t, string(b), "responders")
}
