package bot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// SubscriberStore keeps the chat ids that receive pushes, persisted as a
// JSON array so subscriptions survive restarts.
type SubscriberStore struct {
	path  string
	chats map[int64]struct{}
	mu    sync.RWMutex
}

// LoadSubscribers reads path. A missing file is an empty store.
func LoadSubscribers(path string) (*SubscriberStore, error) {
	s := &SubscriberStore{path: path, chats: make(map[int64]struct{})}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscribers: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, id := range ids {
		s.chats[id] = struct{}{}
	}
	return s, nil
}

// Add subscribes chatID and reports whether it was new.
func (s *SubscriberStore) Add(chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; ok {
		return false, nil
	}
	s.chats[chatID] = struct{}{}
	return true, s.save()
}

func (s *SubscriberStore) Remove(chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return false, nil
	}
	delete(s.chats, chatID)
	return true, s.save()
}

func (s *SubscriberStore) Contains(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chats[chatID]
	return ok
}

// List returns the chat ids in ascending order.
func (s *SubscriberStore) List() []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *SubscriberStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}

// save writes through a temp file so a crash never leaves a torn file.
// Callers hold the write lock.
func (s *SubscriberStore) save() error {
	ids := make([]int64, 0, len(s.chats))
	for id := range s.chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".subscribers-*")
	if err != nil {
		return fmt.Errorf("failed to save subscribers: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save subscribers: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save subscribers: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
