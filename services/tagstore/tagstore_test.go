package tagstore_test

import (
	"testing"

	"github.com/influxdata/opsgenie-notify/services/tagstore"
)

func TestLabeler_StandardizedKey(t *testing.T) {
	l := tagstore.New()
	testCases := map[string]string{
		"sentry:user":    "user",
		"sentry:release": "release",
		"environment":    "environment",
		"browser":        "browser",
	}
	for in, exp := range testCases {
		if got := l.StandardizedKey(in); got != exp {
			t.Errorf("StandardizedKey(%q) = %q, exp %q", in, got, exp)
		}
	}
}

func TestLabeler_ValueLabel(t *testing.T) {
	l := tagstore.New()
	testCases := []struct {
		key, value, exp string
	}{
		{key: "sentry:user", value: "email:jane@example.com", exp: "jane@example.com"},
		{key: "sentry:user", value: "id:1234", exp: "1234"},
		{key: "sentry:user", value: "someone", exp: "someone"},
		{key: "sentry:release", value: "0123456789abcdef0123456789abcdef01234567", exp: "0123456789ab"},
		{key: "sentry:release", value: "web@0123456789abcdef0123456789abcdef01234567", exp: "web@0123456789ab"},
		{key: "sentry:release", value: "web@1.2.3", exp: "web@1.2.3"},
		{key: "environment", value: "id:prod", exp: "id:prod"},
	}
	for _, tc := range testCases {
		if got := l.ValueLabel(tc.key, tc.value); got != tc.exp {
			t.Errorf("ValueLabel(%q, %q) = %q, exp %q", tc.key, tc.value, got, tc.exp)
		}
	}
}
