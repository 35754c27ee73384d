// Package comments manages comment threads attached to documents.
package comments

import (
	"context"
	"fmt"
	"strings"

	"github.com/gogotex/gogotex/backend/collab-service/internal/clock"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document/repository"
)

// Manager creates comments and replies and resolves threads. It does not
// check that the document exists; callers do that before Add.
type Manager struct {
	store repository.Comments
	clock clock.Clock
	ids   clock.IDGenerator
}

func NewManager(store repository.Comments, c clock.Clock, ids clock.IDGenerator) *Manager {
	if c == nil {
		c = clock.RealClock{}
	}
	if ids == nil {
		ids = clock.UUIDGenerator{}
	}
	return &Manager{store: store, clock: c, ids: ids}
}

func validate(author, content string) error {
	if author == "" {
		return fmt.Errorf("%w: author required", document.ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content required", document.ErrInvalidInput)
	}
	return nil
}

// Add creates an unresolved comment with no replies.
func (m *Manager) Add(ctx context.Context, documentID, author, content string) (*document.Comment, error) {
	if err := validate(author, content); err != nil {
		return nil, err
	}
	c := &document.Comment{
		ID:         m.ids.New(),
		DocumentID: documentID,
		Author:     author,
		Content:    content,
		CreatedAt:  m.clock.Now(),
		Replies:    []document.Reply{},
	}
	if err := m.store.InsertComment(ctx, c); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return c, nil
}

// Reply appends a reply to an existing comment.
func (m *Manager) Reply(ctx context.Context, commentID, author, content string) (*document.Reply, error) {
	if err := validate(author, content); err != nil {
		return nil, err
	}
	r := document.Reply{
		ID:        m.ids.New(),
		CommentID: commentID,
		Author:    author,
		Content:   content,
		CreatedAt: m.clock.Now(),
	}
	if _, err := m.store.AppendReply(ctx, commentID, r); err != nil {
		return nil, fmt.Errorf("reply to comment %s: %w", commentID, err)
	}
	return &r, nil
}

// Resolve marks the comment resolved. Resolving an already resolved comment
// succeeds and keeps the original resolution time.
func (m *Manager) Resolve(ctx context.Context, commentID string) (*document.Comment, error) {
	c, err := m.store.ResolveComment(ctx, commentID, m.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("resolve comment %s: %w", commentID, err)
	}
	return c, nil
}

func (m *Manager) Get(ctx context.Context, commentID string) (*document.Comment, error) {
	c, err := m.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("get comment %s: %w", commentID, err)
	}
	return c, nil
}

// List returns a document's comments ordered by creation time.
func (m *Manager) List(ctx context.Context, documentID string) ([]*document.Comment, error) {
	out, err := m.store.ListComments(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return out, nil
}
