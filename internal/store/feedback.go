package store

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/notegraph/notegraph/internal/model"
)

const feedbackKeyPrefix = "feedback:"

// FeedbackLog is the append-only record of user feedback. Entries are keyed
// by creation time plus id so iteration order matches submission order, and
// nothing ever rewrites a prior entry.
type FeedbackLog struct {
	backend *Backend
}

func NewFeedbackLog(backend *Backend) *FeedbackLog {
	return &FeedbackLog{backend: backend}
}

func feedbackKey(e *model.FeedbackEntry) []byte {
	return fmt.Appendf(nil, "%s%020d:%s", feedbackKeyPrefix, e.CreatedAt.UnixNano(), e.ID)
}

// Append writes one entry. Duplicate submissions become separate entries;
// aggregation is a statistical rollup, so that is acceptable.
func (l *FeedbackLog) Append(entry *model.FeedbackEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback entry: %w", err)
	}
	return l.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(feedbackKey(entry), data)
	})
}

// ForEach scans the whole log in append order. fn returning false stops the
// scan early.
func (l *FeedbackLog) ForEach(fn func(entry *model.FeedbackEntry) bool) error {
	return l.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(feedbackKeyPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var entry model.FeedbackEntry
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			if !fn(&entry) {
				return nil
			}
		}
		return nil
	})
}
