// Package session provides the agent's conversation checkpoint: an ordered,
// concurrency-safe buffer of message records plus an in-memory store keyed by
// session identifier.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/agentbridge/core"
)

// Buffer tracks the ordered conversation history of one session. It is safe
// for concurrent access.
//
// Contract:
//   - Append updates the Updated timestamp
//   - Messages returns a defensive copy to avoid external mutation
//   - Save writes a JSON snapshot; the buffer itself stays in memory
type Buffer struct {
	ID      string         `json:"id"`
	Msgs    []core.Message `json:"messages"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewBuffer creates an empty conversation buffer for the given session ID.
func NewBuffer(id string) *Buffer {
	now := time.Now()
	return &Buffer{ID: id, Msgs: []core.Message{}, Created: now, Updated: now}
}

// Append adds a message to the history.
func (b *Buffer) Append(msg core.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Msgs = append(b.Msgs, msg)
	b.Updated = time.Now()
}

// Messages returns a defensive copy of the full message slice.
func (b *Buffer) Messages() []core.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msgs := make([]core.Message, len(b.Msgs))
	copy(msgs, b.Msgs)
	return msgs
}

// Len returns the number of messages in the buffer.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.Msgs)
}

// Clear discards all messages, keeping the session ID.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Msgs = b.Msgs[:0]
	b.Updated = time.Now()
}

// Save writes a JSON snapshot of the conversation to the given path.
func (b *Buffer) Save(path string) error {
	b.mu.RLock()
	snapshot := struct {
		ID       string         `json:"session_id"`
		Messages []core.Message `json:"messages"`
		Created  time.Time      `json:"created"`
		Updated  time.Time      `json:"updated"`
	}{b.ID, b.Msgs, b.Created, b.Updated}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	b.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return nil
}

// InMemoryStore is a volatile store of conversation buffers keyed by session
// ID. It is safe for concurrent access and best suited for tests or a
// single-process bot.
type InMemoryStore struct {
	mu      sync.Mutex
	buffers map[string]*Buffer
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{buffers: make(map[string]*Buffer)}
}

// Get returns the buffer for a session, creating it lazily.
func (s *InMemoryStore) Get(sessionID string) *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if buf, ok := s.buffers[sessionID]; ok {
		return buf
	}
	buf := NewBuffer(sessionID)
	s.buffers[sessionID] = buf
	return buf
}

// Delete removes a session's buffer.
func (s *InMemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, sessionID)
}
