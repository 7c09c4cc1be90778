package opsgenie

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/influxdata/opsgenie-notify/alert"
	"github.com/influxdata/opsgenie-notify/models"
	"github.com/influxdata/opsgenie-notify/rules"
)

const (
	// Source reported on every alert.
	Source = "Sentry"
	// AliasPrefix prefixes the issue ID to form the OpsGenie deduplication alias.
	AliasPrefix = "sentry: "
	// Referrer is added to issue URLs linked from alerts.
	Referrer = "opsgenie"

	MaxMessageLength     = 130
	MaxDescriptionLength = 15000

	// Exception types are shortened to leave room for the culprit.
	typeTitleLength = 40
)

type ResponderType string

const (
	ResponderTeam ResponderType = "team"
	ResponderUser ResponderType = "user"
)

// Responder is a team or user the alert is routed to.
type Responder struct {
	ID   string        `json:"id"`
	Type ResponderType `json:"type"`
}

// Detail is a single key/value pair shown in the alert's extra properties.
type Detail struct {
	Key   string
	Value string
}

// Details keeps its entries in insertion order when encoded as a JSON object.
type Details []Detail

func (d Details) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value of the first detail with the given key.
func (d Details) Get(key string) (string, bool) {
	for _, kv := range d {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// AlertPayload is the body of a create alert request.
type AlertPayload struct {
	Message     string         `json:"message"`
	Alias       string         `json:"alias"`
	Description string         `json:"description,omitempty"`
	Responders  []Responder    `json:"responders,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Details     Details        `json:"details"`
	Entity      string         `json:"entity,omitempty"`
	Source      string         `json:"source"`
	Priority    alert.Priority `json:"priority,omitempty"`
}

// TagLabeler renders stored tag keys and values for display.
type TagLabeler interface {
	StandardizedKey(key string) string
	ValueLabel(key, value string) string
}

// Builder assembles alert payloads. It performs no I/O.
type Builder struct {
	Tags TagLabeler
}

// Alias returns the deduplication alias of an issue.
func Alias(group *models.Group) string {
	return AliasPrefix + group.IDString()
}

// Build assembles the alert for an event of group.
// tags is the set of standardized tag keys to include, rules are the rules that fired.
func (b Builder) Build(
	group *models.Group,
	event models.Event,
	teamID, userID string,
	priority alert.Priority,
	tags map[string]bool,
	firing []rules.Rule,
) AlertPayload {
	if priority == "" {
		if level, ok := event.Tag("level"); ok {
			if s, err := alert.ParseSeverity(level); err == nil {
				priority = alert.PriorityFor(s)
			}
		}
	}

	var responders []Responder
	if teamID != "" {
		responders = append(responders, Responder{ID: teamID, Type: ResponderTeam})
	}
	if userID != "" {
		responders = append(responders, Responder{ID: userID, Type: ResponderUser})
	}

	return AlertPayload{
		Message:     truncate(title(group), MaxMessageLength),
		Alias:       Alias(group),
		Description: truncate(description(event), MaxDescriptionLength),
		Responders:  responders,
		Tags:        b.tags(event, tags),
		Details:     details(group, event, firing),
		Entity:      group.Culprit,
		Source:      Source,
		Priority:    priority,
	}
}

func (b Builder) tags(event models.Event, allowed map[string]bool) []string {
	if len(allowed) == 0 {
		return nil
	}
	var fields []string
	for _, t := range event.Tags {
		key := b.Tags.StandardizedKey(t.Key)
		if !allowed[key] {
			continue
		}
		fields = append(fields, key+":"+b.Tags.ValueLabel(t.Key, t.Value))
	}
	return fields
}

func title(group *models.Group) string {
	md := group.Metadata
	switch group.EventType() {
	case models.EventTypeError:
		if typ, ok := md["type"]; ok {
			if group.Culprit != "" {
				return fmt.Sprintf("%s - %s", prefix(typ, typeTitleLength), group.Culprit)
			}
			return typ
		}
		if group.Culprit != "" {
			return fmt.Sprintf("%s - %s", group.Title, group.Culprit)
		}
		return group.Title
	case models.EventTypeCSP:
		return fmt.Sprintf("%s - %s", md["directive"], md["uri"])
	default:
		if group.Culprit != "" {
			return fmt.Sprintf("%s - %s", prefix(group.Title, typeTitleLength), group.Culprit)
		}
		return group.Title
	}
}

func description(event models.Event) string {
	if event.EventType() != models.EventTypeError {
		return ""
	}
	md := event.EventMetadata()
	if v := md["value"]; v != "" {
		return v
	}
	return md["function"]
}

func details(group *models.Group, event models.Event, firing []rules.Rule) Details {
	ts := group.LastSeen
	if event.Datetime.After(ts) {
		ts = event.Datetime
	}

	footer := group.QualifiedShortID
	if len(firing) > 0 {
		footer += " via " + firing[0].Label
		if len(firing) > 1 {
			footer += fmt.Sprintf(" (+%d other)", len(firing)-1)
		}
	}

	return Details{
		{Key: "Sentry ID", Value: group.IDString()},
		{Key: "Sentry Group", Value: group.ShortMessage()},
		{Key: "Checksum", Value: group.Checksum},
		{Key: "Project ID", Value: group.Project.Slug},
		{Key: "Project Name", Value: group.Project.Name},
		{Key: "Logger", Value: group.Logger},
		{Key: "Level", Value: group.Level.String()},
		{Key: "URL", Value: group.AbsoluteURL(url.Values{"referrer": []string{Referrer}})},
		{Key: "Timestamp", Value: ts.UTC().Format(time.RFC3339)},
		{Key: "Triggering Rules", Value: footer},
	}
}

// prefix returns at most n runes of s.
func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// truncate limits s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
