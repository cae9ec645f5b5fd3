// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package context

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when an entity or conversation has no matching row.
var ErrNotFound = errors.New("entity not found")

// ErrPendingActionExists is returned when SetPendingAction would overwrite
// a pending action that has not been consumed yet. The slot is one-shot:
// the caller must confirm, cancel, or clear before setting a new one.
var ErrPendingActionExists = errors.New("pending action already set")

// Store is the durable, per-conversation entity store. One logical writer
// per conversation id is enforced with a per-conversation mutex; readers
// and writers on different conversations never block each other.
type Store struct {
	db *badger.DB

	mu        sync.Mutex
	convLocks map[string]*sync.Mutex
}

// Open opens (or creates) a badger-backed Store rooted at dir. Pass ""
// for an in-memory store, used by tests.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening entity store: %w", err)
	}
	return &Store{db: db, convLocks: make(map[string]*sync.Mutex)}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) lockFor(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.convLocks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		s.convLocks[conversationID] = l
	}
	return l
}

func entityKey(conversationID, entityID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:entity:%s", conversationID, entityID))
}

func entityPrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:entity:", conversationID))
}

func pathKey(conversationID, absolutePath string) []byte {
	return []byte(fmt.Sprintf("conv:%s:path:%s", conversationID, absolutePath))
}

func stateKey(conversationID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:state", conversationID))
}

func pendingKey(conversationID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:pending", conversationID))
}

// UpsertEntity inserts or replaces an entity by id, and keeps the
// path→id index in sync.
func (s *Store) UpsertEntity(conversationID string, e Entity) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(entityKey(conversationID, e.ID), data); err != nil {
			return err
		}
		if e.AbsolutePath != "" {
			if err := txn.Set(pathKey(conversationID, e.AbsolutePath), []byte(e.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetEntity looks up an entity by id.
func (s *Store) GetEntity(conversationID, entityID string) (Entity, error) {
	var e Entity
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(conversationID, entityID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	return e, err
}

// GetEntityByPath looks up an entity by its canonical absolute path.
func (s *Store) GetEntityByPath(conversationID, absolutePath string) (Entity, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pathKey(conversationID, absolutePath))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return Entity{}, err
	}
	return s.GetEntity(conversationID, id)
}

// ListEntities returns every entity tracked for conversationID, optionally
// filtered to a single kind, bounded by limit (0 means unlimited). Results
// are ordered most-recently-touched first.
func (s *Store) ListEntities(conversationID string, kind Kind, limit int) ([]Entity, error) {
	var entities []Entity
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entityPrefix(conversationID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var e Entity
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			if kind != "" && e.Kind != kind {
				continue
			}
			entities = append(entities, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].Timestamp.After(entities[j].Timestamp) })
	if limit > 0 && len(entities) > limit {
		entities = entities[:limit]
	}
	return entities, nil
}

// DeleteEntity removes an entity and its path index entry.
func (s *Store) DeleteEntity(conversationID, entityID string) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.GetEntity(conversationID, entityID)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(entityKey(conversationID, entityID)); err != nil {
			return err
		}
		if e.AbsolutePath != "" {
			if err := txn.Delete(pathKey(conversationID, e.AbsolutePath)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteEntityByPath removes the entity (if any) tracked at absolutePath.
func (s *Store) DeleteEntityByPath(conversationID, absolutePath string) error {
	e, err := s.GetEntityByPath(conversationID, absolutePath)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.DeleteEntity(conversationID, e.ID)
}

// GetState reads the conversation's pointer state, returning a zero value
// (turn_index 0, no pointers set) if the conversation is new.
func (s *Store) GetState(conversationID string) (ConversationState, error) {
	var st ConversationState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(conversationID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})
	return st, err
}

func (s *Store) putState(conversationID string, st ConversationState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey(conversationID), data)
	})
}

// SetActiveFile updates last_active_file_id.
func (s *Store) SetActiveFile(conversationID, entityID string) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	st, err := s.GetState(conversationID)
	if err != nil {
		return err
	}
	st.LastActiveFileID = entityID
	return s.putState(conversationID, st)
}

// SetActiveFolder updates last_active_folder_id.
func (s *Store) SetActiveFolder(conversationID, entityID string) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	st, err := s.GetState(conversationID)
	if err != nil {
		return err
	}
	st.LastActiveFolderID = entityID
	return s.putState(conversationID, st)
}

// SetCurrentSelection updates current_selection_id.
func (s *Store) SetCurrentSelection(conversationID, entityID string) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	st, err := s.GetState(conversationID)
	if err != nil {
		return err
	}
	st.CurrentSelectionID = entityID
	return s.putState(conversationID, st)
}

// IncrementTurn bumps turn_index and returns the new value. turn_index is
// monotonically non-decreasing for the life of a conversation.
func (s *Store) IncrementTurn(conversationID string) (int64, error) {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	st, err := s.GetState(conversationID)
	if err != nil {
		return 0, err
	}
	st.TurnIndex++
	if err := s.putState(conversationID, st); err != nil {
		return 0, err
	}
	return st.TurnIndex, nil
}

// GetPendingAction returns the conversation's pending action, if any.
func (s *Store) GetPendingAction(conversationID string) (*PendingAction, error) {
	var pa PendingAction
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey(conversationID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pa)
		})
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

// SetPendingAction stores the conversation's one-shot pending action.
// Setting one while another is still pending is a hard error.
func (s *Store) SetPendingAction(conversationID string, pa PendingAction) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.Marshal(pa)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(pendingKey(conversationID)); err == nil {
			return ErrPendingActionExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(pendingKey(conversationID), data)
	})
}

// ClearPendingAction consumes the pending action slot, called on
// confirmation, cancellation, or ordinal selection.
func (s *Store) ClearPendingAction(conversationID string) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(pendingKey(conversationID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// ClearConversation removes every entity, the pointer state, and any
// pending action for conversationID.
func (s *Store) ClearConversation(conversationID string) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	prefix := []byte(fmt.Sprintf("conv:%s:", conversationID))
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			keys = append(keys, key)
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
