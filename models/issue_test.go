package models_test

import (
	"net/url"
	"testing"

	"github.com/influxdata/opsgenie-notify/models"
)

func TestGroup_AbsoluteURL(t *testing.T) {
	testCases := []struct {
		permalink string
		params    url.Values
		exp       string
	}{
		{
			permalink: "https://sentry.example.com/acme/web/issues/42/",
			params:    url.Values{"referrer": []string{"opsgenie"}},
			exp:       "https://sentry.example.com/acme/web/issues/42/?referrer=opsgenie",
		},
		{
			permalink: "https://sentry.example.com/acme/web/issues/42/?environment=prod",
			params:    url.Values{"referrer": []string{"opsgenie"}},
			exp:       "https://sentry.example.com/acme/web/issues/42/?environment=prod&referrer=opsgenie",
		},
		{
			permalink: "https://sentry.example.com/acme/web/issues/42/",
			exp:       "https://sentry.example.com/acme/web/issues/42/",
		},
	}
	for _, tc := range testCases {
		g := &models.Group{Permalink: tc.permalink}
		if got := g.AbsoluteURL(tc.params); got != tc.exp {
			t.Errorf("unexpected url: got %q exp %q", got, tc.exp)
		}
	}
}

func TestEvent_Fallbacks(t *testing.T) {
	g := &models.Group{
		Type:     models.EventTypeError,
		Metadata: map[string]string{"type": "ValueError"},
	}
	e := models.Event{Group: g}
	if got := e.EventType(); got != models.EventTypeError {
		t.Errorf("unexpected event type %q", got)
	}
	if got := e.EventMetadata()["type"]; got != "ValueError" {
		t.Errorf("unexpected metadata type %q", got)
	}

	e.Type = models.EventTypeCSP
	e.Metadata = map[string]string{"directive": "script-src"}
	if got := e.EventType(); got != models.EventTypeCSP {
		t.Errorf("unexpected event type %q", got)
	}
	if _, ok := e.EventMetadata()["type"]; ok {
		t.Error("event metadata should take precedence over group metadata")
	}
}

func TestEvent_Tag(t *testing.T) {
	e := models.Event{Tags: []models.Tag{
		{Key: "level", Value: "error"},
		{Key: "environment", Value: "prod"},
		{Key: "level", Value: "fatal"},
	}}
	if v, ok := e.Tag("level"); !ok || v != "error" {
		t.Errorf("unexpected level tag %q %v", v, ok)
	}
	if _, ok := e.Tag("browser"); ok {
		t.Error("unexpected browser tag")
	}
}

func TestGroup_ShortMessage(t *testing.T) {
	g := &models.Group{Title: "fallback", Message: "  first line\nsecond line"}
	if got := g.ShortMessage(); got != "first line" {
		t.Errorf("unexpected short message %q", got)
	}
	g.Message = ""
	if got := g.ShortMessage(); got != "fallback" {
		t.Errorf("unexpected short message %q", got)
	}
}
