// Package rules evaluates the actions of rules that fired for an event.
//
// Actions do not deliver anything while they are evaluated. Each returns
// futures, and futures that share a key are handed to a single callback
// together with every rule that produced them. This lets an action send one
// notification for a batch of rules.
package rules

import (
	"context"

	"github.com/influxdata/opsgenie-notify/keyvalue"
	"github.com/influxdata/opsgenie-notify/models"
)

// Callback delivers the work for a group of futures sharing a key.
type Callback func(ctx context.Context, event models.Event, futures []Future)

// Future is deferred work registered by an action.
type Future struct {
	Key      string
	Callback Callback
	// Rule is the rule whose action registered the future, set by the Processor.
	Rule Rule
}

// Action is invoked for every event matching its rule.
type Action interface {
	After(event models.Event) []Future
}

type Rule struct {
	ID      string
	Label   string
	Actions []Action
}

type Diagnostic interface {
	Fired(key string, rules int, ctx ...keyvalue.T)
}

// Processor applies rules to events.
type Processor struct {
	diag Diagnostic
}

func NewProcessor(d Diagnostic) *Processor {
	return &Processor{diag: d}
}

// Apply collects the futures of every rule's actions and invokes one callback
// per distinct key, in the order the keys were first registered.
// It returns the number of callbacks invoked.
func (p *Processor) Apply(ctx context.Context, event models.Event, rules []Rule) int {
	var keys []string
	grouped := make(map[string][]Future)
	for _, r := range rules {
		for _, a := range r.Actions {
			for _, f := range a.After(event) {
				f.Rule = r
				if _, ok := grouped[f.Key]; !ok {
					keys = append(keys, f.Key)
				}
				grouped[f.Key] = append(grouped[f.Key], f)
			}
		}
	}
	for _, k := range keys {
		futures := grouped[k]
		p.diag.Fired(k, len(futures), keyvalue.KV("event", event.ID))
		futures[0].Callback(ctx, event, futures)
	}
	return len(keys)
}
