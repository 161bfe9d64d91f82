package adapters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

var (
	stateBucket = []byte("orchestrator_state")
	latestKey   = []byte("latest")
)

// BoltStateCache is a MemoryStateCache whose snapshots are also written to a
// bbolt file, so the last result survives restarts. Reads never touch disk.
type BoltStateCache struct {
	*MemoryStateCache

	db  *bolt.DB
	log logging.Logger

	// wmu keeps the memory swap and the disk write in the same order.
	wmu sync.Mutex
}

// OpenBoltStateCache opens (or creates) the state file at path and loads the
// last persisted snapshot, if any.
func OpenBoltStateCache(path string, log logging.Logger) (*BoltStateCache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("state cache: create dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("state cache: open %s: %w", path, err)
	}
	c := &BoltStateCache{MemoryStateCache: NewMemoryStateCache(), db: db, log: log}

	var raw []byte
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(stateBucket)
		if err != nil {
			return err
		}
		if v := b.Get(latestKey); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state cache: init bucket: %w", err)
	}
	if raw != nil {
		var snap contractorch.SnapshotV1
		if err := json.Unmarshal(raw, &snap); err != nil {
			log.WithError(err).Warn("ignoring unreadable orchestrator state")
		} else {
			c.restore(snap)
		}
	}
	return c, nil
}

func (c *BoltStateCache) Write(result contractorch.ResultV1) contractorch.SnapshotV1 {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	snap := c.MemoryStateCache.Write(result)
	b, err := json.Marshal(snap)
	if err == nil {
		err = c.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(stateBucket).Put(latestKey, b)
		})
	}
	if err != nil {
		c.log.WithError(err).Error("failed to persist orchestrator state")
	}
	return snap
}

func (c *BoltStateCache) Close() error {
	return c.db.Close()
}
