// Package tagstore translates raw event tags into the keys and labels shown to users.
package tagstore

import (
	"regexp"
	"strings"
)

// Keys reserved by the error tracker are stored with a "sentry:" prefix.
const reservedPrefix = "sentry:"

var userPrefixes = []string{"id:", "email:", "username:", "ip:"}

// Release versions that are commit hashes are shortened to this many characters.
const shortVersionLength = 12

var hashVersion = regexp.MustCompile(`^[a-fA-F0-9]{32,40}$`)

// Labeler implements the tag labelling rules of the error tracker.
type Labeler struct{}

func New() Labeler {
	return Labeler{}
}

// StandardizedKey strips the reserved prefix from a stored tag key.
func (Labeler) StandardizedKey(key string) string {
	if strings.HasPrefix(key, reservedPrefix) {
		return strings.TrimPrefix(key, reservedPrefix)
	}
	return key
}

// ValueLabel returns the human readable label of a tag value.
func (l Labeler) ValueLabel(key, value string) string {
	switch l.StandardizedKey(key) {
	case "user":
		for _, p := range userPrefixes {
			if strings.HasPrefix(value, p) {
				return strings.TrimPrefix(value, p)
			}
		}
	case "release":
		return shortVersion(value)
	}
	return value
}

func shortVersion(v string) string {
	// Releases are often of the form package@version.
	if i := strings.LastIndexByte(v, '@'); i >= 0 && i < len(v)-1 {
		pkg, ver := v[:i+1], v[i+1:]
		if hashVersion.MatchString(ver) {
			return pkg + ver[:shortVersionLength]
		}
		return v
	}
	if hashVersion.MatchString(v) {
		return v[:shortVersionLength]
	}
	return v
}
