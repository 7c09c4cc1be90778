package storage

import (
	"bytes"

	bolt "go.etcd.io/bbolt"
)

// Bolt is a store backed by a single bucket of a bolt database.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

func NewBolt(db *bolt.DB, bucket string) *Bolt {
	return &Bolt{
		db:     db,
		bucket: []byte(bucket),
	}
}

func (b *Bolt) View(f func(tx ReadOnlyTx) error) error {
	return DoView(b, f)
}

func (b *Bolt) Update(f func(tx Tx) error) error {
	return DoUpdate(b, f)
}

func (b *Bolt) BeginTx() (Tx, error) {
	tx, err := b.db.Begin(true)
	if err != nil {
		return nil, err
	}
	return &boltTx{bucket: b.bucket, tx: tx}, nil
}

func (b *Bolt) BeginReadOnlyTx() (ReadOnlyTx, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &boltTx{bucket: b.bucket, tx: tx}, nil
}

// boltTx wraps a bolt.Tx scoped to a bucket.
// The bucket is created lazily on the first write.
type boltTx struct {
	bucket []byte
	tx     *bolt.Tx
}

func (t *boltTx) Get(key string) (*KeyValue, error) {
	b := t.tx.Bucket(t.bucket)
	if b == nil {
		return nil, ErrNoKeyExists
	}
	val := b.Get([]byte(key))
	if val == nil {
		return nil, ErrNoKeyExists
	}
	// Values are only valid for the life of the transaction.
	return &KeyValue{
		Key:   key,
		Value: append([]byte(nil), val...),
	}, nil
}

func (t *boltTx) Exists(key string) (bool, error) {
	b := t.tx.Bucket(t.bucket)
	if b == nil {
		return false, nil
	}
	return b.Get([]byte(key)) != nil, nil
}

func (t *boltTx) List(prefix string) ([]*KeyValue, error) {
	b := t.tx.Bucket(t.bucket)
	if b == nil {
		return nil, nil
	}
	var kvs []*KeyValue
	p := []byte(prefix)
	c := b.Cursor()
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		kvs = append(kvs, &KeyValue{
			Key:   string(k),
			Value: append([]byte(nil), v...),
		})
	}
	return kvs, nil
}

func (t *boltTx) Put(key string, value []byte) error {
	b, err := t.tx.CreateBucketIfNotExists(t.bucket)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), value)
}

func (t *boltTx) Delete(key string) error {
	b := t.tx.Bucket(t.bucket)
	if b == nil {
		return nil
	}
	return b.Delete([]byte(key))
}

func (t *boltTx) Commit() error {
	return t.tx.Commit()
}

func (t *boltTx) Rollback() error {
	err := t.tx.Rollback()
	if err == bolt.ErrTxClosed {
		return nil
	}
	return err
}
