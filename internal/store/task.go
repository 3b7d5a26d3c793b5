package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

const (
	taskKeyPrefix   = "task:id:"
	activeKeyPrefix = "task:active:"
)

// TaskStore persists task records with a retention TTL and maintains the
// per-document in-flight index that backs the at-most-one-task-per-document
// invariant.
type TaskStore struct {
	backend   *Backend
	retention time.Duration
}

func NewTaskStore(backend *Backend, retention time.Duration) *TaskStore {
	return &TaskStore{backend: backend, retention: retention}
}

func taskKey(id string) []byte   { return []byte(taskKeyPrefix + id) }
func activeKey(id string) []byte { return []byte(activeKeyPrefix + id) }

// Create atomically stores a new task and claims the in-flight slot for its
// document. Returns a conflict error if another non-terminal task already
// holds the slot.
func (s *TaskStore) Create(task *model.Task) error {
	return s.backend.Update(func(tx *badger.Txn) error {
		_, err := tx.Get(activeKey(task.DocumentID))
		if err == nil {
			return taskerr.Conflict("document %s already has a task in flight", task.DocumentID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := s.putTask(tx, task); err != nil {
			return err
		}
		entry := badger.NewEntry(activeKey(task.DocumentID), []byte(task.ID)).WithTTL(s.retention)
		return tx.SetEntry(entry)
	})
}

// Update persists a task mutation, releasing the document's in-flight slot
// when the task reaches a terminal state.
func (s *TaskStore) Update(task *model.Task) error {
	return s.backend.Update(func(tx *badger.Txn) error {
		if err := s.putTask(tx, task); err != nil {
			return err
		}
		if task.State.Terminal() {
			err := tx.Delete(activeKey(task.DocumentID))
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

func (s *TaskStore) putTask(tx *badger.Txn, task *model.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	entry := badger.NewEntry(taskKey(task.ID), data).WithTTL(s.retention)
	return tx.SetEntry(entry)
}

// Get fetches a task by id. Expired or unknown ids return ErrTaskNotFound.
func (s *TaskStore) Get(id string) (*model.Task, error) {
	var task model.Task
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(taskKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return taskerr.ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &task)
		})
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListUnfinished returns every persisted task that has not reached a
// terminal state, used to redeliver work after a crash.
func (s *TaskStore) ListUnfinished() ([]*model.Task, error) {
	var tasks []*model.Task
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(taskKeyPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var task model.Task
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &task)
			})
			if err != nil {
				return err
			}
			if !task.State.Terminal() {
				t := task
				tasks = append(tasks, &t)
			}
		}
		return nil
	})
	return tasks, err
}

// ActiveTaskID returns the id of the in-flight task for a document, or ""
// when the document has none.
func (s *TaskStore) ActiveTaskID(documentID string) (string, error) {
	var id string
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(activeKey(documentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	return id, err
}
