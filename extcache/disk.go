package extcache

import (
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("blocks")

// diskBackend is a Backend that survives process restart, for a read cache
// an embedder wants warm across runs. Every operation is a single bbolt
// transaction; bbolt serializes writers internally so no extra locking is
// needed here.
type diskBackend struct {
	db *bolt.DB
}

// NewDisk opens (creating if needed) a bbolt-backed cache at path.
func NewDisk(path string) (Backend, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("extcache: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &diskBackend{db: db}, nil
}

func (d *diskBackend) Insert(key string, value []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
}

func (d *diskBackend) Get(key string) (value []byte, ok bool) {
	_ = d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
			ok = true
		}
		return nil
	})
	return value, ok
}

func (d *diskBackend) Contains(key string) bool {
	_, ok := d.Get(key)
	return ok
}

func (d *diskBackend) Remove(key string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

func (d *diskBackend) Count() int {
	count := 0
	_ = d.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketName).Stats().KeyN
		return nil
	})
	return count
}

func (d *diskBackend) Destroy() error {
	path := d.db.Path()
	if err := d.db.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
