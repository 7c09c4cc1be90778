package storagetest

import (
	"os"
	"path/filepath"

	"github.com/influxdata/opsgenie-notify/services/storage"
	bolt "go.etcd.io/bbolt"
)

type CleanedTest interface {
	TempDir() string
	Cleanup(func())
}

// TestStore is a bolt backed store that lives in a test temp dir.
type TestStore struct {
	db *bolt.DB
}

// New opens a bolt database that is closed and removed when the test finishes.
func New(t CleanedTest) *TestStore {
	dir := t.TempDir()
	db, err := bolt.Open(filepath.Join(dir, "bolt.db"), 0600, nil)
	if err != nil {
		panic(err)
	}
	t.Cleanup(func() {
		db.Close()
		os.RemoveAll(dir)
	})
	return &TestStore{db: db}
}

func (s *TestStore) Store(name string) storage.Interface {
	return storage.NewBolt(s.db, name)
}
