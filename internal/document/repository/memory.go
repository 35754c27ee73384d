package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
)

// MemoryRepo is an in-memory Store used for local runs and unit tests.
// A single mutex covers documents, change records and comments, which makes
// lock transitions and CommitEdit atomic.
type MemoryRepo struct {
	mu       sync.RWMutex
	docs     map[string]*document.Document
	changes  map[string][]document.ChangeRecord
	comments map[string]*document.Comment
	byDoc    map[string][]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs:     make(map[string]*document.Document),
		changes:  make(map[string][]document.ChangeRecord),
		comments: make(map[string]*document.Comment),
		byDoc:    make(map[string][]string),
	}
}

func (m *MemoryRepo) CreateDocument(_ context.Context, d *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		return fmt.Errorf("%w: document id required", document.ErrInvalidInput)
	}
	if _, ok := m.docs[d.ID]; ok {
		return fmt.Errorf("%w: document %s already exists", document.ErrInvalidInput, d.ID)
	}
	m.docs[d.ID] = d.Clone()
	return nil
}

func (m *MemoryRepo) GetDocument(_ context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.docs[id]; ok {
		return d.Clone(), nil
	}
	return nil, document.ErrNotFound
}

func (m *MemoryRepo) ListDocuments(_ context.Context) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*document.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryRepo) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return document.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryRepo) AddCollaborator(_ context.Context, id, userID string, at time.Time) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	if !d.HasCollaborator(userID) {
		d.Collaborators = append(d.Collaborators, userID)
		d.UpdatedAt = at
	}
	return d.Clone(), nil
}

func (m *MemoryRepo) AcquireLock(_ context.Context, id, userID string, now time.Time, expiresAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return false, document.ErrNotFound
	}
	if d.LockHolder(now) != "" {
		return false, nil
	}
	d.IsLocked = true
	d.LockedBy = userID
	d.LockExpiresAt = nil
	if expiresAt != nil {
		t := *expiresAt
		d.LockExpiresAt = &t
	}
	return true, nil
}

func (m *MemoryRepo) ReleaseLock(_ context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return false, document.ErrNotFound
	}
	if !d.IsLocked || d.LockedBy != userID {
		return false, nil
	}
	d.IsLocked = false
	d.LockedBy = ""
	d.LockExpiresAt = nil
	return true, nil
}

func (m *MemoryRepo) CommitEdit(_ context.Context, e Edit) (*document.ChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[e.DocumentID]
	if !ok {
		return nil, document.ErrNotFound
	}
	if !d.CanEdit(e.Editor, e.At) {
		return nil, document.ErrLockConflict
	}
	if d.Version != e.PriorVersion || len(m.changes[e.DocumentID]) != e.PriorVersion {
		return nil, fmt.Errorf("%w: expected version %d, found %d", document.ErrStaleWrite, e.PriorVersion, d.Version)
	}
	rec := document.ChangeRecord{
		ID:         e.RecordID,
		DocumentID: e.DocumentID,
		Author:     e.Editor,
		Timestamp:  e.At,
		Version:    e.PriorVersion + 1,
		Ops:        append([]document.ChangeOp(nil), e.Ops...),
	}
	m.changes[e.DocumentID] = append(m.changes[e.DocumentID], rec)
	d.Content = e.Content
	d.Version = rec.Version
	d.UpdatedAt = e.At
	out := rec
	out.Ops = append([]document.ChangeOp(nil), rec.Ops...)
	return &out, nil
}

func (m *MemoryRepo) AppendChange(_ context.Context, rec *document.ChangeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Version = len(m.changes[rec.DocumentID]) + 1
	stored := *rec
	stored.Ops = append([]document.ChangeOp(nil), rec.Ops...)
	m.changes[rec.DocumentID] = append(m.changes[rec.DocumentID], stored)
	return nil
}

func (m *MemoryRepo) History(_ context.Context, documentID string) ([]document.ChangeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.changes[documentID]
	out := make([]document.ChangeRecord, len(src))
	for i, rec := range src {
		out[i] = rec
		out[i].Ops = append([]document.ChangeOp(nil), rec.Ops...)
	}
	return out, nil
}

func (m *MemoryRepo) LatestVersion(_ context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.changes[documentID]), nil
}

func (m *MemoryRepo) InsertComment(_ context.Context, c *document.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[c.ID]; ok {
		return fmt.Errorf("%w: comment %s already exists", document.ErrInvalidInput, c.ID)
	}
	m.comments[c.ID] = c.Clone()
	m.byDoc[c.DocumentID] = append(m.byDoc[c.DocumentID], c.ID)
	return nil
}

func (m *MemoryRepo) GetComment(_ context.Context, id string) (*document.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.comments[id]; ok {
		return c.Clone(), nil
	}
	return nil, document.ErrNotFound
}

func (m *MemoryRepo) ListComments(_ context.Context, documentID string) ([]*document.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byDoc[documentID]
	out := make([]*document.Comment, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.comments[id].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) ResolveComment(_ context.Context, id string, at time.Time) (*document.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	if !c.Resolved {
		c.Resolved = true
		t := at
		c.ResolvedAt = &t
	}
	return c.Clone(), nil
}

func (m *MemoryRepo) AppendReply(_ context.Context, commentID string, r document.Reply) (*document.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[commentID]
	if !ok {
		return nil, document.ErrNotFound
	}
	c.Replies = append(c.Replies, r)
	return c.Clone(), nil
}
