package rules_test

import (
	"context"
	"testing"

	"github.com/influxdata/opsgenie-notify/keyvalue"
	"github.com/influxdata/opsgenie-notify/models"
	"github.com/influxdata/opsgenie-notify/rules"
	"github.com/stretchr/testify/require"
)

type nopDiag struct{}

func (nopDiag) Fired(string, int, ...keyvalue.T) {}

type call struct {
	key   string
	rules []string
}

type keyedAction struct {
	key   string
	calls *[]call
}

func (a keyedAction) After(event models.Event) []rules.Future {
	if a.key == "" {
		return nil
	}
	return []rules.Future{{
		Key: a.key,
		Callback: func(ctx context.Context, event models.Event, futures []rules.Future) {
			c := call{key: futures[0].Key}
			for _, f := range futures {
				c.rules = append(c.rules, f.Rule.ID)
			}
			*a.calls = append(*a.calls, c)
		},
	}}
}

func TestProcessor_Apply(t *testing.T) {
	testCases := []struct {
		name string
		keys []string
		exp  []call
	}{
		{
			name: "no rules",
		},
		{
			name: "single rule",
			keys: []string{"a"},
			exp:  []call{{key: "a", rules: []string{"r0"}}},
		},
		{
			name: "shared key",
			keys: []string{"a", "a"},
			exp:  []call{{key: "a", rules: []string{"r0", "r1"}}},
		},
		{
			name: "distinct keys keep order",
			keys: []string{"b", "a", "b"},
			exp: []call{
				{key: "b", rules: []string{"r0", "r2"}},
				{key: "a", rules: []string{"r1"}},
			},
		},
		{
			name: "action without futures",
			keys: []string{"", "a"},
			exp:  []call{{key: "a", rules: []string{"r1"}}},
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var calls []call
			var rs []rules.Rule
			for i, k := range tc.keys {
				rs = append(rs, rules.Rule{
					ID:      "r" + string(rune('0'+i)),
					Actions: []rules.Action{keyedAction{key: k, calls: &calls}},
				})
			}
			p := rules.NewProcessor(nopDiag{})
			n := p.Apply(context.Background(), models.Event{ID: "e"}, rs)
			require.Equal(t, len(tc.exp), n)
			require.Equal(t, tc.exp, calls)
		})
	}
}
