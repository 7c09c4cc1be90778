package opsgenie

import (
	"context"

	"github.com/influxdata/opsgenie-notify/keyvalue"
)

// Lookup is the outcome of resolving one identifier.
// An empty Identifier means nothing was configured and nothing was looked up.
type Lookup struct {
	Identifier string
	ID         string
	Err        error
}

// Resolved reports whether the lookup produced an OpsGenie ID.
func (l Lookup) Resolved() bool {
	return l.ID != ""
}

// Resolution holds the team and user lookups of a rule.
type Resolution struct {
	Team Lookup
	User Lookup
}

// Resolve looks up the OpsGenie IDs of a team name and a username.
// The lookups are independent; failures are logged and recorded on the Lookup.
func Resolve(ctx context.Context, api API, diag Diagnostic, team, username string) Resolution {
	var r Resolution
	if team != "" {
		r.Team.Identifier = team
		t, err := api.GetTeam(ctx, team, IdentifierName)
		if err != nil {
			diag.LookupFailed("team", team, err)
			r.Team.Err = err
		} else {
			r.Team.ID = t.ID
		}
	}
	if username != "" {
		r.User.Identifier = username
		u, err := api.GetUser(ctx, username)
		if err != nil {
			diag.LookupFailed("user", username, err)
			r.User.Err = err
		} else {
			r.User.ID = u.ID
		}
	}
	return r
}

// Resolve resolves team and username with the client of an account.
func (s *Service) Resolve(ctx context.Context, accountID, team, username string) (Resolution, error) {
	a, err := s.accounts.Get(accountID)
	if err != nil {
		return Resolution{}, err
	}
	api, err := s.client(a)
	if err != nil {
		return Resolution{}, err
	}
	return Resolve(ctx, api, s.diag.WithContext(keyvalue.KV("account", a.ID)), team, username), nil
}
