// Package archive stores report documents in an embedded BadgerDB so a node
// can keep its report history without the SQL store.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

const (
	reportKeyPrefix = "report:"
	latestDocID     = "latest"
)

type envelope struct {
	CalculatedAt time.Time       `json:"calculated_at"`
	Payload      json.RawMessage `json:"payload"`
}

// Store is a BadgerDB-backed report store
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the archive at dir
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperrors.NewConfigurationError("failed to open report archive", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already open BadgerDB
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the archive is usable
func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return apperrors.NewUnavailableError("report archive", errors.New("archive is closed"))
	}
	return nil
}

func collectionPrefix(collection string) string {
	return reportKeyPrefix + collection + ":"
}

func reportKey(collection, docID string) []byte {
	return []byte(collectionPrefix(collection) + docID)
}

// SaveReport writes payload as both the latest and the history document in one transaction
func (s *Store) SaveReport(ctx context.Context, collection, historyID string, calculatedAt time.Time, payload []byte) error {
	data, err := json.Marshal(envelope{CalculatedAt: calculatedAt.UTC(), Payload: payload})
	if err != nil {
		return apperrors.NewPersistenceError(collection, fmt.Errorf("marshal report: %w", err))
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(reportKey(collection, latestDocID), data); err != nil {
			return fmt.Errorf("set latest: %w", err)
		}
		if err := txn.Set(reportKey(collection, historyID), data); err != nil {
			return fmt.Errorf("set history: %w", err)
		}
		return nil
	})
	if err != nil {
		return apperrors.NewPersistenceError(collection, err)
	}
	return nil
}

// GetReport returns one stored document
func (s *Store) GetReport(ctx context.Context, collection, docID string) (*types.StoredReport, error) {
	var env envelope
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(reportKey(collection, docID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperrors.NewNotFoundError("report", collection+"/"+docID)
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s/%s: %w", collection, docID, err)
	}

	return &types.StoredReport{
		Collection:   collection,
		DocID:        docID,
		CalculatedAt: env.CalculatedAt.UTC(),
		Payload:      []byte(env.Payload),
	}, nil
}

// scan visits every document of a collection except latest
func (s *Store) scan(txn *badger.Txn, collection string, fn func(key []byte, ref types.ReportRef) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := []byte(collectionPrefix(collection))
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		docID := strings.TrimPrefix(string(item.Key()), string(prefix))
		if docID == latestDocID {
			continue
		}

		var env envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return fmt.Errorf("decode %s: %w", docID, err)
		}
		if err := fn(item.KeyCopy(nil), types.ReportRef{DocID: docID, CalculatedAt: env.CalculatedAt.UTC()}); err != nil {
			return err
		}
	}
	return nil
}

// ListReports returns history documents newest first, excluding latest
func (s *Store) ListReports(ctx context.Context, collection string, limit int) ([]types.ReportRef, error) {
	refs := make([]types.ReportRef, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		return s.scan(txn, collection, func(_ []byte, ref types.ReportRef) error {
			refs = append(refs, ref)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if !refs[i].CalculatedAt.Equal(refs[j].CalculatedAt) {
			return refs[i].CalculatedAt.After(refs[j].CalculatedAt)
		}
		return refs[i].DocID > refs[j].DocID
	})
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// PruneReports deletes history documents calculated before olderThan.
// The latest document is never removed.
func (s *Store) PruneReports(ctx context.Context, collection string, olderThan time.Time) (int, error) {
	var expired [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		return s.scan(txn, collection, func(key []byte, ref types.ReportRef) error {
			if ref.CalculatedAt.Before(olderThan) {
				expired = append(expired, key)
			}
			return nil
		})
	})
	if err != nil {
		return 0, apperrors.NewPersistenceError(collection, err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range expired {
		if err := wb.Delete(key); err != nil {
			return 0, apperrors.NewPersistenceError(collection, fmt.Errorf("delete report: %w", err))
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, apperrors.NewPersistenceError(collection, fmt.Errorf("flush deletes: %w", err))
	}
	return len(expired), nil
}
