/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package store holds session record stores for the duet service.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Seednode/duet/internal/duet"
)

// Memory is an in-memory duet.Store. State is lost when the process exits.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]*duet.Session
	byCode map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]*duet.Session),
		byCode: make(map[string]string),
	}
}

func (m *Memory) Create(ctx context.Context, s *duet.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	if _, ok := m.byCode[s.Code]; ok {
		return duet.ErrCodeTaken
	}

	m.byID[s.ID] = s.Clone()
	m.byCode[s.Code] = s.ID

	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*duet.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, duet.ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *Memory) GetByCode(ctx context.Context, code string) (*duet.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, fmt.Errorf("code %s: %w", code, duet.ErrNotFound)
	}
	return m.byID[id].Clone(), nil
}

func (m *Memory) Update(ctx context.Context, s *duet.Session, expected int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byID[s.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", s.ID, duet.ErrNotFound)
	}
	if cur.Version != expected {
		return duet.ErrStale
	}

	m.byID[s.ID] = s.Clone()

	return nil
}

// DeleteIdle removes sessions not updated since cutoff.
func (m *Memory) DeleteIdle(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.byID {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.byID, id)
			delete(m.byCode, s.Code)
			n++
		}
	}

	return n, nil
}

// Len returns the number of stored sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.byID)
}

func (m *Memory) Close() error {
	return nil
}

var _ duet.Store = (*Memory)(nil)
