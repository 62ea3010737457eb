package oplog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/golem-project/golem-core/pkg/ids"
	bolt "go.etcd.io/bbolt"
)

// rootBucket is the single top-level bucket; each worker gets its own
// nested bucket inside it, named after the worker id. Keeping all worker
// buckets under one root (rather than one bolt.DB file per worker) keeps
// file-descriptor usage bounded by active process count, not worker count.
var rootBucket = []byte("oplog")

// BoltStore implements Service over a single BoltDB file shared by every
// worker resident on this executor. Entries are stored as JSON values keyed
// by the entry's big-endian-encoded OplogIndex, which keeps bolt's
// lexicographic key ordering equal to index ordering, so ForEach and
// range-scans over Cursor.Seek visit entries in order.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a BoltDB file under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "oplog.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, &FileSystemError{Path: dbPath, Op: "open", Err: err}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, &FileSystemError{Path: dbPath, Op: "create root bucket", Err: err}
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func workerBucketName(workerID ids.WorkerId) []byte {
	return []byte(workerID.String())
}

func indexKey(idx OplogIndex) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(idx))
	return buf
}

func (s *BoltStore) Append(_ context.Context, workerID ids.WorkerId, entries ...OplogEntry) (OplogIndex, error) {
	if len(entries) == 0 {
		return 0, fmt.Errorf("oplog: append called with no entries")
	}

	var first OplogIndex
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		wb, err := root.CreateBucketIfNotExists(workerBucketName(workerID))
		if err != nil {
			return err
		}

		next := OplogIndex(wb.Sequence() + 1)
		first = next

		for i := range entries {
			entries[i].Index = next
			data, err := json.Marshal(entries[i])
			if err != nil {
				return fmt.Errorf("marshal oplog entry: %w", err)
			}
			if err := wb.Put(indexKey(next), data); err != nil {
				return err
			}
			next++
		}

		return wb.SetSequence(uint64(next - 1))
	})
	if err != nil {
		return 0, &FileSystemError{Path: workerID.String(), Op: "append", Err: err}
	}
	return first, nil
}

func (s *BoltStore) Length(_ context.Context, workerID ids.WorkerId) (uint64, error) {
	var length uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		wb := root.Bucket(workerBucketName(workerID))
		if wb == nil {
			length = 0
			return nil
		}
		length = wb.Sequence()
		return nil
	})
	return length, err
}

func (s *BoltStore) Read(_ context.Context, workerID ids.WorkerId, idx OplogIndex, n int) ([]OplogEntry, error) {
	var entries []OplogEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		wb := root.Bucket(workerBucketName(workerID))
		if wb == nil {
			return nil
		}

		c := wb.Cursor()
		count := 0
		for k, v := c.Seek(indexKey(idx)); k != nil && count < n; k, v = c.Next() {
			var entry OplogEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshal oplog entry: %w", err)
			}
			entries = append(entries, entry)
			count++
		}
		return nil
	})
	if err != nil {
		return nil, &FileSystemError{Path: workerID.String(), Op: "read", Err: err}
	}
	return entries, nil
}

func (s *BoltStore) ReadPrefixEndingAt(ctx context.Context, workerID ids.WorkerId, idx OplogIndex) ([]OplogEntry, error) {
	return s.Read(ctx, workerID, 1, int(idx))
}

func (s *BoltStore) Delete(_ context.Context, workerID ids.WorkerId) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		name := workerBucketName(workerID)
		if root.Bucket(name) == nil {
			return nil
		}
		return root.DeleteBucket(name)
	})
	if err != nil {
		return &FileSystemError{Path: workerID.String(), Op: "delete", Err: err}
	}
	return nil
}

var _ Service = (*BoltStore)(nil)
