package opsgenie

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/influxdata/opsgenie-notify/alert"
	"github.com/influxdata/opsgenie-notify/keyvalue"
	"github.com/influxdata/opsgenie-notify/models"
	"github.com/influxdata/opsgenie-notify/rules"
	"github.com/influxdata/opsgenie-notify/services/storage"
	"github.com/pkg/errors"
)

const (
	// Namespace of the service in the storage service.
	storeNamespace = "opsgenie"

	removedAccount = "[removed]"
	labelFormat    = "Send an alert to the Opsgenie account %s routed via %s team and %s user and show %s tags in alert with %s priority"
)

type Diagnostic interface {
	WithContext(ctx ...keyvalue.T) Diagnostic

	LookupFailed(kind, identifier string, err error)
	AccountMissing(accountID string)
	AlertSent(key, requestID string)

	Error(msg string, err error, ctx ...keyvalue.T)
}

type Service struct {
	configValue atomic.Value
	diag        Diagnostic

	StorageService interface {
		Store(namespace string) storage.Interface
	}
	TagLabeler TagLabeler
	Clock      clock.Clock

	accounts AccountDAO
	rules    RuleDAO
	builder  Builder

	mu      sync.Mutex
	clients map[string]cachedClient
}

// cachedClient remembers the settings a client was built with.
type cachedClient struct {
	url    string
	apiKey string
	api    API
}

func NewService(c Config, d Diagnostic) *Service {
	s := &Service{
		diag:    d,
		Clock:   clock.New(),
		clients: make(map[string]cachedClient),
	}
	s.configValue.Store(c)
	return s
}

func (s *Service) Open() error {
	store := s.StorageService.Store(storeNamespace)
	accounts, err := newAccountKV(store)
	if err != nil {
		return errors.Wrap(err, "failed to create account DAO")
	}
	ruleStore, err := newRuleKV(store)
	if err != nil {
		return errors.Wrap(err, "failed to create rule DAO")
	}
	s.accounts = accounts
	s.rules = ruleStore
	s.builder = Builder{Tags: s.TagLabeler}

	for _, ac := range s.config().Accounts {
		if err := s.accounts.Put(ac.Account()); err != nil {
			return errors.Wrapf(err, "failed to store account %q", ac.ID)
		}
	}
	return nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = make(map[string]cachedClient)
	return nil
}

func (s *Service) config() Config {
	return s.configValue.Load().(Config)
}

// client returns the cached client of an account, creating it when the
// account's URL or API key changed since it was built.
func (s *Service) client(a Account) (API, error) {
	c := s.config()
	u := a.URL
	if u == "" {
		u = c.URL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cc, ok := s.clients[a.ID]; ok && cc.url == u && cc.apiKey == a.APIKey {
		return cc.api, nil
	}
	api, err := NewClient(u, a.APIKey, time.Duration(c.Timeout))
	if err != nil {
		return nil, err
	}
	s.clients[a.ID] = cachedClient{url: u, apiKey: a.APIKey, api: api}
	return api, nil
}

// DedupKey identifies the routing target of an alert.
// Rules firing together with the same key produce a single alert.
func DedupKey(accountID, teamID, userID string) string {
	return fmt.Sprintf("opsgenie:%s:%s:%s", accountID, teamID, userID)
}

// account loads an account owned by org. An account of another organization is reported as missing.
// An empty org matches any account.
func (s *Service) account(id, org string) (Account, error) {
	a, err := s.accounts.Get(id)
	if err != nil {
		return Account{}, err
	}
	if org != "" && a.Organization != org {
		return Account{}, ErrNoAccountExists
	}
	return a, nil
}

// Dispatch sends an alert with the client of an account owned by org.
// Failures are logged and counted, never returned. It reports whether OpsGenie accepted the alert.
func (s *Service) Dispatch(ctx context.Context, org, accountID string, p AlertPayload, key string) bool {
	diag := s.diag.WithContext(keyvalue.KV("account", accountID), keyvalue.KV("key", key))
	if !s.config().Enabled {
		diag.Error("failed to send alert", errors.New("service is not enabled"))
		return false
	}
	a, err := s.account(accountID, org)
	if err == ErrNoAccountExists {
		diag.AccountMissing(accountID)
		return false
	} else if err != nil {
		diag.Error("failed to load account", err)
		AlertsFailed.WithLabelValues(Instance).Inc()
		return false
	}
	api, err := s.client(a)
	if err != nil {
		diag.Error("failed to create client", err)
		AlertsFailed.WithLabelValues(Instance).Inc()
		return false
	}
	resp, err := api.CreateAlert(ctx, p)
	if err != nil {
		diag.Error("failed to send alert to OpsGenie", err)
		AlertsFailed.WithLabelValues(Instance).Inc()
		return false
	}
	AlertsSent.WithLabelValues(Instance).Inc()
	diag.AlertSent(key, resp.RequestID)
	return true
}

type handler struct {
	s    *Service
	opts RuleOptions
	diag Diagnostic
}

// Handler returns the rule action that alerts OpsGenie as configured by opts.
func (s *Service) Handler(opts RuleOptions, ctx ...keyvalue.T) rules.Action {
	return &handler{
		s:    s,
		opts: opts,
		diag: s.diag.WithContext(ctx...),
	}
}

// After registers a single future keyed by the routing target.
// Ignored issues are not alerted.
func (h *handler) After(event models.Event) []rules.Future {
	if event.Group == nil || event.Group.IsIgnored() {
		return nil
	}
	return []rules.Future{{
		Key:      DedupKey(h.opts.Account, h.opts.TeamID, h.opts.UserID),
		Callback: h.send,
	}}
}

func (h *handler) send(ctx context.Context, event models.Event, futures []rules.Future) {
	firing := make([]rules.Rule, len(futures))
	for i, f := range futures {
		firing[i] = f.Rule
	}
	p := h.s.builder.Build(
		event.Group,
		event,
		h.opts.TeamID,
		h.opts.UserID,
		h.opts.Priority,
		h.opts.TagSet(),
		firing,
	)
	org := h.opts.Organization
	if org == "" {
		org = event.Group.Project.Organization
	}
	h.s.Dispatch(ctx, org, h.opts.Account, p, futures[0].Key)
}

// AsRule returns a rule whose only action alerts OpsGenie.
func (s *Service) AsRule(opts RuleOptions) rules.Rule {
	return rules.Rule{
		ID:      opts.ID,
		Label:   s.RenderLabel(opts),
		Actions: []rules.Action{s.Handler(opts, keyvalue.KV("rule", opts.ID))},
	}
}

// RenderLabel describes a rule for display.
func (s *Service) RenderLabel(opts RuleOptions) string {
	account := removedAccount
	if a, err := s.account(opts.Account, opts.Organization); err == nil {
		account = a.Name
	}
	tags := "no"
	if len(opts.Tags) > 0 {
		tags = "[" + strings.Join(opts.Tags, ", ") + "]"
	}
	priority := opts.Priority
	if priority == "" {
		priority = alert.DefaultPriority
	}
	return fmt.Sprintf(labelFormat, account, orNo(opts.Team), orNo(opts.Username), tags, priority)
}

func orNo(s string) string {
	if s == "" {
		return "no"
	}
	return s
}

// Accounts lists the accounts of an organization, all accounts if org is empty.
func (s *Service) Accounts(org string) ([]Account, error) {
	return s.accounts.List(org)
}

func (s *Service) PutAccount(a Account) error {
	ac := AccountConfig{ID: a.ID, Name: a.Name, Organization: a.Organization, APIKey: a.APIKey, URL: a.URL}
	if err := ac.Validate(); err != nil {
		return err
	}
	return s.accounts.Put(ac.Account())
}

func (s *Service) DeleteAccount(id string) error {
	return s.accounts.Delete(id)
}

type testOptions struct {
	Account  string         `json:"account"`
	Team     string         `json:"team"`
	Username string         `json:"username"`
	Message  string         `json:"message"`
	Priority alert.Priority `json:"priority"`
}

func (s *Service) TestOptions() interface{} {
	return &testOptions{
		Message:  "test opsgenie message",
		Priority: alert.DefaultPriority,
	}
}

// Test resolves the responders and sends a test alert, returning any error.
func (s *Service) Test(options interface{}) error {
	o, ok := options.(*testOptions)
	if !ok {
		return fmt.Errorf("unexpected options type %T", options)
	}
	c := s.config()
	if !c.Enabled {
		return errors.New("service is not enabled")
	}
	ctx := context.Background()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Duration(c.Timeout))
		defer cancel()
	}
	opts, err := s.ValidateRule(ctx, RuleOptions{
		Account:  o.Account,
		Team:     o.Team,
		Username: o.Username,
		Priority: o.Priority,
	})
	if err != nil {
		return err
	}
	a, err := s.accounts.Get(opts.Account)
	if err != nil {
		return err
	}
	api, err := s.client(a)
	if err != nil {
		return err
	}
	now := s.Clock.Now()
	p := AlertPayload{
		Message:  truncate(o.Message, MaxMessageLength),
		Alias:    AliasPrefix + "test-" + now.UTC().Format("20060102T150405"),
		Source:   Source,
		Priority: opts.Priority,
		Details: Details{
			{Key: "Timestamp", Value: now.UTC().Format(time.RFC3339)},
		},
	}
	if opts.TeamID != "" {
		p.Responders = append(p.Responders, Responder{ID: opts.TeamID, Type: ResponderTeam})
	}
	if opts.UserID != "" {
		p.Responders = append(p.Responders, Responder{ID: opts.UserID, Type: ResponderUser})
	}
	_, err = api.CreateAlert(ctx, p)
	return err
}
