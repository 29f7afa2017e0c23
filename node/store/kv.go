package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// The chain database requires a transactional ordered key-value store with
// at least four named sub-databases (meta/coin/index/tip), serialized
// writers, and snapshot reads — bbolt's single-file B+tree, already the
// teacher's choice of embedded store, provides exactly that contract
// through named buckets and its Update/View transaction pair, so the KV
// layer here is a thin naming wrapper rather than a new abstraction.
var (
	bucketMeta  = []byte("meta")
	bucketCoin  = []byte("coin")
	bucketIndex = []byte("index")
	bucketTip   = []byte("tip")

	allBuckets = [][]byte{bucketMeta, bucketCoin, bucketIndex, bucketTip}
)

// metaKeyFileInfo and metaKeyTipHash are the two keys the chain database
// keeps in the meta sub-database: the active flat-file pointer and the
// current main-chain tip hash.
var (
	metaKeyFileInfo = []byte("F")
	metaKeyTipHash  = []byte("R")
)

// KV opens and owns the bbolt file backing a chain database instance.
type KV struct {
	db *bolt.DB
}

// OpenKV opens (creating if absent) the bbolt file at path and ensures all
// four named sub-databases exist.
func OpenKV(path string) (*KV, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	if err := bdb.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return &KV{db: bdb}, nil
}

func (kv *KV) Close() error {
	if kv == nil || kv.db == nil {
		return nil
	}
	return kv.db.Close()
}

// Update runs fn inside a single read-write transaction, committed
// atomically on success and rolled back on any returned error.
func (kv *KV) Update(fn func(*bolt.Tx) error) error {
	return kv.db.Update(fn)
}

// View runs fn inside a read-only snapshot transaction.
func (kv *KV) View(fn func(*bolt.Tx) error) error {
	return kv.db.View(fn)
}
