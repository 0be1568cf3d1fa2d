package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]User
	batches    map[string]map[string]string
	batchItems map[string][]string
	userLists  map[string][]string
	media      map[string]map[string]string
	trackers   map[string]string
	tokens     map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]User),
		batches:    make(map[string]map[string]string),
		batchItems: make(map[string][]string),
		userLists:  make(map[string][]string),
		media:      make(map[string]map[string]string),
		trackers:   make(map[string]string),
		tokens:     make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) UserExists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok, nil
}

func (s *MemoryStore) CreateBatch(_ context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b.Fields()
	return nil
}

func (s *MemoryStore) GetBatch(_ context.Context, id string) (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.batches[id]
	if !ok {
		return Batch{}, ErrNotFound
	}
	return batchFromFields(id, fields), nil
}

func (s *MemoryStore) SetBatchFields(_ context.Context, id string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.batches[id]
	if !ok {
		existing = make(map[string]string)
		s.batches[id] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (s *MemoryStore) DeleteBatch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, id)
	delete(s.batchItems, id)
	return nil
}

func (s *MemoryStore) UserBatchIDs(_ context.Context, username string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.userLists[username]), nil
}

func (s *MemoryStore) PushUserBatch(_ context.Context, username, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLists[username] = append([]string{batchID}, s.userLists[username]...)
	return nil
}

func (s *MemoryStore) RemoveUserBatch(_ context.Context, username, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLists[username] = slices.DeleteFunc(s.userLists[username], func(id string) bool {
		return id == batchID
	})
	return nil
}

func (s *MemoryStore) BatchItemIDs(_ context.Context, batchID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.batchItems[batchID]), nil
}

func (s *MemoryStore) BatchItemCount(_ context.Context, batchID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.batchItems[batchID])), nil
}

func (s *MemoryStore) AppendBatchItem(_ context.Context, batchID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchItems[batchID] = append(s.batchItems[batchID], itemID)
	return nil
}

func (s *MemoryStore) RemoveBatchItem(_ context.Context, batchID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchItems[batchID] = slices.DeleteFunc(s.batchItems[batchID], func(id string) bool {
		return id == itemID
	})
	return nil
}

func (s *MemoryStore) PutMediaItem(_ context.Context, item MediaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[item.ID] = item.Fields()
	return nil
}

func (s *MemoryStore) GetMediaItem(_ context.Context, id string) (MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.media[id]
	if !ok {
		return MediaItem{}, ErrNotFound
	}
	return mediaItemFromFields(id, fields), nil
}

func (s *MemoryStore) SetMediaFields(_ context.Context, id string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setMediaFieldsLocked(id, fields)
	return nil
}

func (s *MemoryStore) setMediaFieldsLocked(id string, fields map[string]string) {
	existing, ok := s.media[id]
	if !ok {
		existing = make(map[string]string)
		s.media[id] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
}

func (s *MemoryStore) MediaStatus(_ context.Context, id string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.media[id]
	if !ok {
		return "", ErrNotFound
	}
	return Status(fields[FieldProcessingStatus]), nil
}

func (s *MemoryStore) DeleteMediaItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.media, id)
	return nil
}

func (s *MemoryStore) SetImportTracker(_ context.Context, batchID, zipName, mediaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers[batchID+":"+zipName] = mediaID
	return nil
}

func (s *MemoryStore) ImportTracker(_ context.Context, batchID, zipName string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.trackers[batchID+":"+zipName]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) DeleteImportTracker(_ context.Context, batchID, zipName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trackers, batchID+":"+zipName)
	return nil
}

func (s *MemoryStore) SetShareToken(_ context.Context, token, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = batchID
	return nil
}

func (s *MemoryStore) DeleteShareToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *MemoryStore) ResolveShareToken(_ context.Context, token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.tokens[token]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Pipeline buffers writes and applies them under one lock acquisition.
func (s *MemoryStore) Pipeline() Pipeline {
	return &memoryPipeline{store: s}
}

type memoryPipeline struct {
	store *MemoryStore
	ops   []func()
}

func (p *memoryPipeline) SetMediaFields(id string, fields map[string]string) {
	p.ops = append(p.ops, func() { p.store.setMediaFieldsLocked(id, fields) })
}

func (p *memoryPipeline) AppendBatchItem(batchID, itemID string) {
	p.ops = append(p.ops, func() {
		p.store.batchItems[batchID] = append(p.store.batchItems[batchID], itemID)
	})
}

func (p *memoryPipeline) SetImportTracker(batchID, zipName, mediaID string) {
	p.ops = append(p.ops, func() {
		p.store.trackers[batchID+":"+zipName] = mediaID
	})
}

func (p *memoryPipeline) Exec(_ context.Context) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	for _, op := range p.ops {
		op()
	}
	p.ops = nil
	return nil
}
