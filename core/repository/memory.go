package repository

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mindcare/guardian/core/model"
)

// MemoryStore is an in-process implementation of both repositories. It is
// the default for single-node deployments and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	alerts   map[string][]byte
	subjects map[string]model.Subject
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts:   make(map[string][]byte),
		subjects: make(map[string]model.Subject),
	}
}

// SaveAlert stores a deep copy of the alert.
func (s *MemoryStore) SaveAlert(_ context.Context, alert *model.Alert) error {
	raw, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.alerts[alert.ID] = raw
	s.mu.Unlock()
	return nil
}

// GetAlert returns the stored alert or ErrNotFound.
func (s *MemoryStore) GetAlert(_ context.Context, id string) (*model.Alert, error) {
	s.mu.RLock()
	raw, ok := s.alerts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var a model.Alert
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveSubject stores the subject record.
func (s *MemoryStore) SaveSubject(_ context.Context, subject model.Subject) error {
	s.mu.Lock()
	s.subjects[subject.ID] = subject
	s.mu.Unlock()
	return nil
}

// GetSubject returns the stored subject or ErrNotFound.
func (s *MemoryStore) GetSubject(_ context.Context, id string) (model.Subject, error) {
	s.mu.RLock()
	subj, ok := s.subjects[id]
	s.mu.RUnlock()
	if !ok {
		return model.Subject{}, ErrNotFound
	}
	return subj, nil
}

// ListCaregivers returns every stored subject with the caregiver role.
func (s *MemoryStore) ListCaregivers(_ context.Context) ([]model.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Subject
	for _, subj := range s.subjects {
		if subj.Role == model.RoleCaregiver {
			out = append(out, subj)
		}
	}
	return out, nil
}

// Subject implements geo.SubjectView for radius query filtering.
func (s *MemoryStore) Subject(id string) (model.Subject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subj, ok := s.subjects[id]
	return subj, ok
}
