package opsgenie

import (
	"context"
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/influxdata/opsgenie-notify/keyvalue"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

var (
	ErrNoAccount   = errors.New("an account to send alerts to must be selected")
	ErrNoResponder = errors.New("either username or team must be present to configure the alert")
)

// UnresolvedError is returned when a configured team or user does not exist in the account.
type UnresolvedError struct {
	Kind       string
	Identifier string
	Account    string
	Err        error
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("the opsgenie resource %q does not exist or has not been granted access in the %s Opsgenie account", e.Identifier, e.Account)
}

func (e *UnresolvedError) Unwrap() error {
	return e.Err
}

// ValidateRule checks that the rule can be routed and pins the resolved team and user IDs.
// The returned options carry the resolved IDs.
func (s *Service) ValidateRule(ctx context.Context, opts RuleOptions) (RuleOptions, error) {
	opts.Team = strings.TrimSpace(opts.Team)
	opts.Username = strings.TrimSpace(opts.Username)
	if opts.Account == "" {
		return opts, ErrNoAccount
	}
	if opts.Team == "" && opts.Username == "" {
		return opts, ErrNoResponder
	}
	if err := opts.Priority.Validate(); err != nil {
		return opts, err
	}

	a, err := s.account(opts.Account, opts.Organization)
	if err != nil {
		return opts, errors.Wrapf(err, "invalid account %q", opts.Account)
	}
	api, err := s.client(a)
	if err != nil {
		return opts, err
	}

	r := Resolve(ctx, api, s.diag.WithContext(keyvalue.KV("account", a.ID)), opts.Team, opts.Username)
	if opts.Team != "" && !r.Team.Resolved() {
		return opts, &UnresolvedError{Kind: "team", Identifier: opts.Team, Account: a.Name, Err: r.Team.Err}
	}
	if opts.Username != "" && !r.User.Resolved() {
		return opts, &UnresolvedError{Kind: "user", Identifier: opts.Username, Account: a.Name, Err: r.User.Err}
	}
	opts.TeamID = r.Team.ID
	opts.UserID = r.User.ID
	return opts, nil
}

// SaveRule validates and stores a rule, replacing any rule with the same ID.
func (s *Service) SaveRule(ctx context.Context, opts RuleOptions) (RuleOptions, error) {
	if opts.ID == "" {
		return opts, errors.New("rule ID must not be empty")
	}
	opts, err := s.ValidateRule(ctx, opts)
	if err != nil {
		return opts, err
	}
	err = s.rules.Create(opts)
	if err == ErrRuleExists {
		err = s.rules.Replace(opts)
	}
	return opts, errors.Wrapf(err, "failed to save rule %q", opts.ID)
}

func (s *Service) Rule(id string) (RuleOptions, error) {
	return s.rules.Get(id)
}

// Rules lists the rules of an organization, all rules if org is empty.
func (s *Service) Rules(org string) ([]RuleOptions, error) {
	return s.rules.List(org)
}

func (s *Service) DeleteRule(id string) error {
	return s.rules.Delete(id)
}

// TagsList splits a comma separated list of tag keys.
func TagsList(tags string) []string {
	var list []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			list = append(list, t)
		}
	}
	return list
}

// DecodeRuleOptions decodes the raw options of a rule.
// Tags may be given as a comma separated string or as a list.
func DecodeRuleOptions(options map[string]interface{}) (RuleOptions, error) {
	var opts RuleOptions
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &opts,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			decodeStringToTextUnmarshaler,
			decodeStringToTagsList,
		),
	})
	if err != nil {
		return opts, errors.Wrap(err, "failed to initialize mapstructure decoder")
	}
	if err := dec.Decode(options); err != nil {
		return opts, errors.Wrapf(err, "failed to decode options into %T", opts)
	}
	return opts, nil
}

var (
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	stringSliceType     = reflect.TypeOf([]string(nil))
)

// decodeStringToTextUnmarshaler will decode a string value into any type
// that implements the encoding.TextUnmarshaler interface.
func decodeStringToTextUnmarshaler(f, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String {
		return data, nil
	}
	isPtr := true
	if t.Kind() != reflect.Ptr {
		isPtr = false
		t = reflect.PtrTo(t)
	}
	if !t.Implements(textUnmarshalerType) {
		return data, nil
	}
	value := reflect.New(t.Elem())
	tum := value.Interface().(encoding.TextUnmarshaler)
	if err := tum.UnmarshalText([]byte(reflect.ValueOf(data).String())); err != nil {
		return nil, err
	}
	if isPtr {
		return value.Interface(), nil
	}
	return reflect.Indirect(value).Interface(), nil
}

func decodeStringToTagsList(f, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != stringSliceType {
		return data, nil
	}
	return TagsList(reflect.ValueOf(data).String()), nil
}
