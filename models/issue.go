package models

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/opsgenie-notify/alert"
)

// Status is the resolution state of an issue.
type Status string

const (
	Unresolved Status = "unresolved"
	Resolved   Status = "resolved"
	Ignored    Status = "ignored"
)

// Event types with their own title composition rules.
const (
	EventTypeError   = "error"
	EventTypeCSP     = "csp"
	EventTypeDefault = "default"
)

type Project struct {
	ID           int64  `json:"id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
}

// Group is an issue: the deduplicated cluster of events sharing a root cause.
type Group struct {
	ID int64 `json:"id"`
	// QualifiedShortID is the human readable identifier, i.e. PROJ-1A.
	QualifiedShortID string            `json:"qualified_short_id"`
	Title            string            `json:"title"`
	Message          string            `json:"message"`
	Culprit          string            `json:"culprit"`
	Checksum         string            `json:"checksum"`
	Logger           string            `json:"logger"`
	Level            alert.Severity    `json:"level"`
	Status           Status            `json:"status"`
	Type             string            `json:"type"`
	Metadata         map[string]string `json:"metadata"`
	LastSeen         time.Time         `json:"last_seen"`
	Project          Project           `json:"project"`
	// Permalink is the absolute URL of the issue page.
	Permalink string `json:"permalink"`
}

func (g *Group) IsIgnored() bool {
	return g.Status == Ignored
}

// AbsoluteURL returns the issue permalink with params merged into its query.
func (g *Group) AbsoluteURL(params url.Values) string {
	u, err := url.Parse(g.Permalink)
	if err != nil {
		return g.Permalink
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// EventType returns the type of the group's events, defaulting to "default".
func (g *Group) EventType() string {
	if g.Type == "" {
		return EventTypeDefault
	}
	return g.Type
}

// ShortMessage returns the first line of the group message, falling back to the title.
func (g *Group) ShortMessage() string {
	m := g.Message
	if m == "" {
		m = g.Title
	}
	if i := strings.IndexByte(m, '\n'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}

func (g *Group) IDString() string {
	return strconv.FormatInt(g.ID, 10)
}

type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is a single occurrence belonging to a Group.
type Event struct {
	ID       string            `json:"id"`
	Group    *Group            `json:"group"`
	Datetime time.Time         `json:"datetime"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata"`
	// Tags are kept in the order they were reported.
	Tags []Tag `json:"tags"`
}

// Tag returns the value of the first tag with the given key.
func (e Event) Tag(key string) (string, bool) {
	for _, t := range e.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// EventType returns the event's type, falling back to its group's.
func (e Event) EventType() string {
	if e.Type != "" {
		return e.Type
	}
	if e.Group != nil {
		return e.Group.EventType()
	}
	return EventTypeDefault
}

// EventMetadata returns the event's metadata, falling back to its group's.
func (e Event) EventMetadata() map[string]string {
	if e.Metadata != nil {
		return e.Metadata
	}
	if e.Group != nil {
		return e.Group.Metadata
	}
	return nil
}
