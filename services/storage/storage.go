package storage

import "errors"

var (
	ErrNoKeyExists = errors.New("no key exists")
)

// ReadOperator provides an interface for performing read operations.
type ReadOperator interface {
	// Get retrieves a value.
	Get(key string) (*KeyValue, error)
	// Exists reports whether a key exists.
	Exists(key string) (bool, error)
	// List returns all values whose key starts with prefix, sorted by key.
	List(prefix string) ([]*KeyValue, error)
}

// WriteOperator provides an interface for performing write operations.
type WriteOperator interface {
	Put(key string, value []byte) error
	// Delete removes a key.
	// Deleting a non-existent key is not an error.
	Delete(key string) error
}

// ReadOnlyTx is a read transaction. Rollback must always be called.
type ReadOnlyTx interface {
	ReadOperator
	Rollback() error
}

// Tx is a read-write transaction.
// Once a transaction is committed, rolling it back has no effect.
type Tx interface {
	ReadOnlyTx
	WriteOperator
	Commit() error
}

type TxOperator interface {
	// BeginReadOnlyTx starts a read only transaction. The transaction must be rolled back.
	BeginReadOnlyTx() (ReadOnlyTx, error)
	// BeginTx starts a read-write transaction. The transaction must be committed or rolled back.
	// A single goroutine should only have one transaction open at a time.
	BeginTx() (Tx, error)
}

// Interface is a simple transactional key/value store.
type Interface interface {
	// View runs f in a read only transaction.
	View(f func(ReadOnlyTx) error) error
	// Update runs f in a read-write transaction.
	// The transaction is committed if f returns nil, otherwise it is rolled back and the error returned.
	Update(f func(Tx) error) error
}

// DoView implements Interface.View for a TxOperator.
func DoView(o TxOperator, f func(ReadOnlyTx) error) error {
	tx, err := o.BeginReadOnlyTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

// DoUpdate implements Interface.Update for a TxOperator.
func DoUpdate(o TxOperator, f func(Tx) error) error {
	tx, err := o.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type KeyValue struct {
	Key   string
	Value []byte
}
