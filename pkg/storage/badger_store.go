package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"img-scraper/pkg/log"
	"img-scraper/pkg/utils"
)

const (
	pageKeyPrefix  = "page:"
	imageKeyPrefix = "img:"
	crawlDBDir     = "crawl_db" // subdirectory within stateDir for Badger files
)

// BadgerStore is a disk-backed CrawlStore. It lets an interrupted session be
// restarted without re-emitting URLs that were already handled.
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // cached for O(1) VisitedCount
}

// NewBadgerStore opens (or creates) the crawl database for siteDomain under
// stateDir. Existing keys are counted once at startup.
func NewBadgerStore(stateDir, siteDomain string, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(siteDomain)+"_"+crawlDBDir)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}
	logger.Infof("Opening crawl state database at: %s", dbPath)

	badgerLogger := log.NewBadgerAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	store := &BadgerStore{db: db, log: logger}
	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing keys: %v", err)
	} else {
		store.keyCount.Store(int64(count))
		if count > 0 {
			logger.Infof("Resuming with %d previously seen URLs", count)
		}
	}
	return store, nil
}

func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return
// badger.ErrConflict; these resolve in microseconds.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// markKey inserts key if absent. Returns true when the key was newly added.
func (s *BadgerStore) markKey(key []byte) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("%w: store not initialized", utils.ErrDatabase)
	}
	added := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			errSet := txn.SetEntry(badger.NewEntry(key, []byte{}))
			if errSet == nil {
				added = true
			}
			return errSet
		}
		return errGet
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB update error: %v", err)
		return false, fmt.Errorf("%w: marking key %q: %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

func (s *BadgerStore) MarkPageVisited(normalizedURL string) (bool, error) {
	return s.markKey([]byte(pageKeyPrefix + normalizedURL))
}

func (s *BadgerStore) MarkImageSeen(normalizedURL string) (bool, error) {
	return s.markKey([]byte(imageKeyPrefix + normalizedURL))
}

func (s *BadgerStore) VisitedCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	s.log.Debug("Closing crawl state database")
	return s.db.Close()
}
