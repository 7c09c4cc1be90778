package storage

import (
	"encoding"
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
)

const (
	dataPrefix    = "data"
	indexesPrefix = "indexes"

	DefaultIDIndex = "id"
)

var (
	ErrObjectExists   = errors.New("object already exists")
	ErrNoObjectExists = errors.New("no object exists")
)

type BinaryObject interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	ObjectID() string
}

type NewObjectF func() BinaryObject
type ValueFunc func(BinaryObject) (string, error)

// Index maps objects to a secondary key.
// Non unique index values are suffixed with the object ID.
type Index struct {
	Name      string
	ValueFunc ValueFunc
	Unique    bool
}

func (idx Index) ValueOf(o BinaryObject) (string, error) {
	value, err := idx.ValueFunc(o)
	if err != nil {
		return "", err
	}
	if !idx.Unique {
		value = value + "/" + o.ObjectID()
	}
	return value, nil
}

// IndexedStore provides CRUD operations over objects and maintains their indexes.
//
// Keys are laid out like a directory tree:
//
//	/<prefix>/data/<ID>             -- encoded object
//	/<prefix>/indexes/<index>/<value> -- object ID
type IndexedStore struct {
	store     Interface
	dataKeys  string
	indexKeys string
	indexes   []Index
	newObject NewObjectF
}

type IndexedStoreConfig struct {
	Prefix    string
	NewObject NewObjectF
	Indexes   []Index
}

// DefaultIndexedStoreConfig returns a config with a unique index on the object ID.
func DefaultIndexedStoreConfig(prefix string, newObject NewObjectF) IndexedStoreConfig {
	return IndexedStoreConfig{
		Prefix:    prefix,
		NewObject: newObject,
		Indexes: []Index{{
			Name:   DefaultIDIndex,
			Unique: true,
			ValueFunc: func(o BinaryObject) (string, error) {
				return o.ObjectID(), nil
			},
		}},
	}
}

func validPath(p string) bool {
	return p != "" && !strings.Contains(p, "/")
}

func (c IndexedStoreConfig) Validate() error {
	if !validPath(c.Prefix) {
		return fmt.Errorf("invalid prefix %q", c.Prefix)
	}
	if c.NewObject == nil {
		return errors.New("must provide a NewObject function")
	}
	for _, idx := range c.Indexes {
		if !validPath(idx.Name) {
			return fmt.Errorf("invalid index name %q", idx.Name)
		}
		if idx.ValueFunc == nil {
			return fmt.Errorf("index %q does not have a ValueFunc", idx.Name)
		}
	}
	return nil
}

func NewIndexedStore(store Interface, c IndexedStoreConfig) (*IndexedStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &IndexedStore{
		store:     store,
		dataKeys:  path.Join("/", c.Prefix, dataPrefix) + "/",
		indexKeys: path.Join("/", c.Prefix, indexesPrefix),
		indexes:   c.Indexes,
		newObject: c.NewObject,
	}, nil
}

func (s *IndexedStore) dataKey(id string) string {
	return s.dataKeys + id
}

func (s *IndexedStore) indexKey(index, value string) string {
	return path.Join(s.indexKeys, index, value)
}

func (s *IndexedStore) Get(id string) (o BinaryObject, err error) {
	err = s.store.View(func(tx ReadOnlyTx) error {
		o, err = s.GetTx(tx, id)
		return err
	})
	return
}

func (s *IndexedStore) GetTx(tx ReadOnlyTx, id string) (BinaryObject, error) {
	kv, err := tx.Get(s.dataKey(id))
	if err == ErrNoKeyExists {
		return nil, ErrNoObjectExists
	} else if err != nil {
		return nil, err
	}
	o := s.newObject()
	if err := o.UnmarshalBinary(kv.Value); err != nil {
		return nil, err
	}
	return o, nil
}

// Create stores a new object, ErrObjectExists is returned if the ID is taken.
func (s *IndexedStore) Create(o BinaryObject) error {
	return s.store.Update(func(tx Tx) error {
		return s.putTx(tx, o, false, false)
	})
}

// Put creates or replaces an object.
func (s *IndexedStore) Put(o BinaryObject) error {
	return s.store.Update(func(tx Tx) error {
		return s.putTx(tx, o, true, false)
	})
}

// Replace replaces an existing object, ErrNoObjectExists is returned if there is none.
func (s *IndexedStore) Replace(o BinaryObject) error {
	return s.store.Update(func(tx Tx) error {
		return s.putTx(tx, o, true, true)
	})
}

func (s *IndexedStore) putTx(tx Tx, o BinaryObject, allowReplace, requireReplace bool) error {
	old, err := s.GetTx(tx, o.ObjectID())
	replacing := err == nil
	switch {
	case err != nil && err != ErrNoObjectExists:
		return err
	case !replacing && requireReplace:
		return ErrNoObjectExists
	case replacing && !allowReplace:
		return ErrObjectExists
	}

	data, err := o.MarshalBinary()
	if err != nil {
		return err
	}
	if err := tx.Put(s.dataKey(o.ObjectID()), data); err != nil {
		return err
	}
	for _, idx := range s.indexes {
		newValue, err := idx.ValueOf(o)
		if err != nil {
			return err
		}
		if replacing {
			oldValue, err := idx.ValueOf(old)
			if err != nil {
				return err
			}
			if oldValue == newValue {
				continue
			}
			if err := tx.Delete(s.indexKey(idx.Name, oldValue)); err != nil {
				return err
			}
		}
		if err := tx.Put(s.indexKey(idx.Name, newValue), []byte(o.ObjectID())); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an object and its index entries.
// Deleting a non-existent object is not an error.
func (s *IndexedStore) Delete(id string) error {
	return s.store.Update(func(tx Tx) error {
		o, err := s.GetTx(tx, id)
		if err == ErrNoObjectExists {
			return nil
		} else if err != nil {
			return err
		}
		if err := tx.Delete(s.dataKey(id)); err != nil {
			return err
		}
		for _, idx := range s.indexes {
			value, err := idx.ValueOf(o)
			if err != nil {
				return err
			}
			if err := tx.Delete(s.indexKey(idx.Name, value)); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns the objects whose index value starts with prefix, sorted by index value.
func (s *IndexedStore) List(index, prefix string) (objects []BinaryObject, err error) {
	err = s.store.View(func(tx ReadOnlyTx) error {
		ids, err := tx.List(s.indexKey(index, "") + "/" + prefix)
		if err != nil {
			return err
		}
		objects = make([]BinaryObject, 0, len(ids))
		for _, id := range ids {
			o, err := s.GetTx(tx, string(id.Value))
			if err != nil {
				return errors.Wrapf(err, "index %s references %q", index, string(id.Value))
			}
			objects = append(objects, o)
		}
		return nil
	})
	return
}

func ImpossibleTypeErr(exp interface{}, got interface{}) error {
	return fmt.Errorf("impossible error, object not of type %T, got %T", exp, got)
}
