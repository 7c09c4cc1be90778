package alert

import (
	"bytes"
	"fmt"
	"strings"
)

// Severity is the level reported by an error tracking event.
// Severities are totally ordered from least to most severe.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
	Fatal
	maxSeverity
)

const severityStrings = "debuginfowarningerrorfatal"

var severityBytes = []byte(severityStrings)

var severityOffsets = []int{0, 5, 9, 16, 21, 26}

func (s Severity) String() string {
	if s >= 0 && s < maxSeverity {
		return severityStrings[severityOffsets[s]:severityOffsets[s+1]]
	}
	return "unknown"
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	idx := bytes.Index(severityBytes, text)
	if idx >= 0 && len(text) > 0 {
		for i := 0; i < int(maxSeverity); i++ {
			if idx == severityOffsets[i] && len(text) == severityOffsets[i+1]-severityOffsets[i] {
				*s = Severity(i)
				return nil
			}
		}
	}
	return fmt.Errorf("unknown severity '%s'", text)
}

// ParseSeverity parses a severity name, ignoring case.
func ParseSeverity(s string) (sev Severity, err error) {
	err = sev.UnmarshalText([]byte(strings.ToLower(s)))
	return
}

// Priority is an OpsGenie alert priority, P1 being the most urgent.
type Priority string

const (
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
	P4 Priority = "P4"
	P5 Priority = "P5"
)

// DefaultPriority is the priority OpsGenie applies when none is sent.
const DefaultPriority = P3

// priorities is indexed by Severity and never written after init.
var priorities = [maxSeverity]Priority{
	Debug:   P5,
	Info:    P4,
	Warning: P3,
	Error:   P2,
	Fatal:   P1,
}

// PriorityFor returns the priority tier of a severity.
// Values outside of the enumeration are treated as the closest bound.
func PriorityFor(s Severity) Priority {
	switch {
	case s < Debug:
		s = Debug
	case s >= maxSeverity:
		s = Fatal
	}
	return priorities[s]
}

// Priorities returns all priorities from most to least urgent.
func Priorities() []Priority {
	return []Priority{P1, P2, P3, P4, P5}
}

// Validate accepts the empty priority, which defers to the event level.
func (p Priority) Validate() error {
	if p == "" {
		return nil
	}
	for _, v := range Priorities() {
		if p == v {
			return nil
		}
	}
	return fmt.Errorf("unknown priority %q, must be one of %v", string(p), Priorities())
}

func (p *Priority) UnmarshalText(text []byte) error {
	v := Priority(strings.ToUpper(string(text)))
	if err := v.Validate(); err != nil {
		return err
	}
	*p = v
	return nil
}
