package opsgenie

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/influxdata/opsgenie-notify/alert"
	"github.com/influxdata/opsgenie-notify/services/storage"
	"github.com/pkg/errors"
)

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrNoAccountExists = errors.New("no account exists")
	ErrRuleExists      = errors.New("rule already exists")
	ErrNoRuleExists    = errors.New("no rule exists")
)

// Data access object for Account data.
type AccountDAO interface {
	// Retrieve an account.
	Get(id string) (Account, error)
	// Create or replace an account.
	Put(a Account) error
	// Delete an account.
	// It is not an error to delete a non-existent account.
	Delete(id string) error
	// List the accounts of an organization, all accounts if org is empty.
	List(org string) ([]Account, error)
}

// Data access object for RuleOptions data.
type RuleDAO interface {
	Get(id string) (RuleOptions, error)
	// Create a rule.
	// ErrRuleExists is returned if a rule already exists with the same ID.
	Create(r RuleOptions) error
	// Replace an existing rule.
	// ErrNoRuleExists is returned if the rule does not exist.
	Replace(r RuleOptions) error
	Delete(id string) error
	List(org string) ([]RuleOptions, error)
}

//--------------------------------------------------------------------
// The following structures are stored in the database as versioned JSON.
// Changes to the structures could break existing data.

const (
	accountVersion1 = 1
	ruleVersion1    = 1
)

// Account is an OpsGenie integration and the API key used to reach it.
type Account struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	APIKey       string `json:"api-key"`
	// URL overrides the configured OpsGenie API URL.
	URL string `json:"url,omitempty"`
}

func (a Account) ObjectID() string {
	return a.ID
}

func (a Account) MarshalBinary() ([]byte, error) {
	if a.ID == "" {
		return nil, errors.New("account ID must not be empty")
	}
	return storage.VersionJSONEncode(accountVersion1, a)
}

func (a *Account) UnmarshalBinary(data []byte) error {
	return storage.VersionJSONDecode(data, func(version int, dec *json.Decoder) error {
		if version != accountVersion1 {
			return fmt.Errorf("unknown account version %d: cannot decode", version)
		}
		return dec.Decode(a)
	})
}

// RuleOptions are the options of a rule notifying OpsGenie.
// TeamID and UserID are resolved when the rule is saved.
type RuleOptions struct {
	ID           string         `json:"id" mapstructure:"id"`
	Organization string         `json:"organization" mapstructure:"organization"`
	Project      string         `json:"project" mapstructure:"project"`
	Account      string         `json:"account" mapstructure:"account"`
	Team         string         `json:"team,omitempty" mapstructure:"team"`
	Username     string         `json:"username,omitempty" mapstructure:"username"`
	TeamID       string         `json:"team-id,omitempty" mapstructure:"team-id"`
	UserID       string         `json:"user-id,omitempty" mapstructure:"user-id"`
	Priority     alert.Priority `json:"priority,omitempty" mapstructure:"priority"`
	Tags         []string       `json:"tags,omitempty" mapstructure:"tags"`
}

// TagSet returns the allowed tag keys.
func (r RuleOptions) TagSet() map[string]bool {
	if len(r.Tags) == 0 {
		return nil
	}
	set := make(map[string]bool, len(r.Tags))
	for _, t := range r.Tags {
		set[t] = true
	}
	return set
}

func (r RuleOptions) ObjectID() string {
	return r.ID
}

func (r RuleOptions) MarshalBinary() ([]byte, error) {
	if r.ID == "" {
		return nil, errors.New("rule ID must not be empty")
	}
	return storage.VersionJSONEncode(ruleVersion1, r)
}

func (r *RuleOptions) UnmarshalBinary(data []byte) error {
	return storage.VersionJSONDecode(data, func(version int, dec *json.Decoder) error {
		if version != ruleVersion1 {
			return fmt.Errorf("unknown rule version %d: cannot decode", version)
		}
		return dec.Decode(r)
	})
}

const (
	accountsPrefix = "accounts"
	rulesPrefix    = "rules"

	organizationIndex = "organization"
)

func indexedStoreConfig(prefix string, newObject storage.NewObjectF, org func(storage.BinaryObject) (string, error)) storage.IndexedStoreConfig {
	c := storage.DefaultIndexedStoreConfig(prefix, newObject)
	c.Indexes = append(c.Indexes, storage.Index{
		Name:      organizationIndex,
		ValueFunc: org,
	})
	return c
}

// list returns the objects of an organization, or all objects when org is empty.
func list(store *storage.IndexedStore, org string) ([]storage.BinaryObject, error) {
	if org == "" {
		return store.List(storage.DefaultIDIndex, "")
	}
	if strings.Contains(org, "/") {
		return nil, fmt.Errorf("invalid organization %q", org)
	}
	return store.List(organizationIndex, org+"/")
}

// Key/Value store based implementation of the AccountDAO
type accountKV struct {
	store *storage.IndexedStore
}

func newAccountKV(store storage.Interface) (*accountKV, error) {
	c := indexedStoreConfig(accountsPrefix, func() storage.BinaryObject {
		return new(Account)
	}, func(o storage.BinaryObject) (string, error) {
		a, ok := o.(*Account)
		if !ok {
			return "", storage.ImpossibleTypeErr(a, o)
		}
		return a.Organization, nil
	})
	istore, err := storage.NewIndexedStore(store, c)
	if err != nil {
		return nil, err
	}
	return &accountKV{store: istore}, nil
}

func (kv *accountKV) Get(id string) (Account, error) {
	o, err := kv.store.Get(id)
	if err == storage.ErrNoObjectExists {
		return Account{}, ErrNoAccountExists
	} else if err != nil {
		return Account{}, err
	}
	a, ok := o.(*Account)
	if !ok {
		return Account{}, storage.ImpossibleTypeErr(a, o)
	}
	return *a, nil
}

func (kv *accountKV) Put(a Account) error {
	return kv.store.Put(&a)
}

func (kv *accountKV) Delete(id string) error {
	return kv.store.Delete(id)
}

func (kv *accountKV) List(org string) ([]Account, error) {
	objects, err := list(kv.store, org)
	if err != nil {
		return nil, err
	}
	accounts := make([]Account, len(objects))
	for i, o := range objects {
		a, ok := o.(*Account)
		if !ok {
			return nil, storage.ImpossibleTypeErr(a, o)
		}
		accounts[i] = *a
	}
	return accounts, nil
}

// Key/Value store based implementation of the RuleDAO
type ruleKV struct {
	store *storage.IndexedStore
}

func newRuleKV(store storage.Interface) (*ruleKV, error) {
	c := indexedStoreConfig(rulesPrefix, func() storage.BinaryObject {
		return new(RuleOptions)
	}, func(o storage.BinaryObject) (string, error) {
		r, ok := o.(*RuleOptions)
		if !ok {
			return "", storage.ImpossibleTypeErr(r, o)
		}
		return r.Organization, nil
	})
	istore, err := storage.NewIndexedStore(store, c)
	if err != nil {
		return nil, err
	}
	return &ruleKV{store: istore}, nil
}

func (kv *ruleKV) error(err error) error {
	if err == storage.ErrObjectExists {
		return ErrRuleExists
	} else if err == storage.ErrNoObjectExists {
		return ErrNoRuleExists
	}
	return err
}

func (kv *ruleKV) Get(id string) (RuleOptions, error) {
	o, err := kv.store.Get(id)
	if err != nil {
		return RuleOptions{}, kv.error(err)
	}
	r, ok := o.(*RuleOptions)
	if !ok {
		return RuleOptions{}, storage.ImpossibleTypeErr(r, o)
	}
	return *r, nil
}

func (kv *ruleKV) Create(r RuleOptions) error {
	return kv.error(kv.store.Create(&r))
}

func (kv *ruleKV) Replace(r RuleOptions) error {
	return kv.error(kv.store.Replace(&r))
}

func (kv *ruleKV) Delete(id string) error {
	return kv.store.Delete(id)
}

func (kv *ruleKV) List(org string) ([]RuleOptions, error) {
	objects, err := list(kv.store, org)
	if err != nil {
		return nil, err
	}
	rules := make([]RuleOptions, len(objects))
	for i, o := range objects {
		r, ok := o.(*RuleOptions)
		if !ok {
			return nil, storage.ImpossibleTypeErr(r, o)
		}
		rules[i] = *r
	}
	return rules, nil
}
