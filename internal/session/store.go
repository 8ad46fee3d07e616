// Package session keys uploaded document text by an opaque session
// identifier. Document payloads live server-side only; the client sees
// nothing but the cookie, which keeps large documents out of
// cookie-size limits.
package session

import (
	"context"
	"sync"
	"time"
)

// Document is the per-session uploaded document. Text is truncated to
// the storage budget before it gets here. A new upload replaces the
// prior document wholesale; documents are never merged across uploads.
type Document struct {
	Text       string    `json:"text"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Store holds at most one Document per session.
type Store interface {
	Put(ctx context.Context, sessionID string, doc Document) error
	Get(ctx context.Context, sessionID string) (Document, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps documents in process memory with oldest-first
// eviction once the session count exceeds a fixed cap.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]Document
	order    []string
	maxCount int
}

func NewMemoryStore(maxSessions int) *MemoryStore {
	if maxSessions <= 0 {
		maxSessions = 100
	}

	return &MemoryStore{
		docs:     make(map[string]Document),
		order:    make([]string, 0, maxSessions),
		maxCount: maxSessions,
	}
}

func (s *MemoryStore) Put(_ context.Context, sessionID string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[sessionID]; exists {
		s.removeFromOrder(sessionID)
	}

	s.docs[sessionID] = doc
	s.order = append(s.order, sessionID)

	for len(s.order) > s.maxCount {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.docs, oldest)
	}

	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[sessionID]
	return doc, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[sessionID]; exists {
		delete(s.docs, sessionID)
		s.removeFromOrder(sessionID)
	}

	return nil
}

func (s *MemoryStore) removeFromOrder(sessionID string) {
	for i, id := range s.order {
		if id == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
