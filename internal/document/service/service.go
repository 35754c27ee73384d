package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gogotex/gogotex/backend/collab-service/internal/cache"
	"github.com/gogotex/gogotex/backend/collab-service/internal/changelog"
	"github.com/gogotex/gogotex/backend/collab-service/internal/clock"
	"github.com/gogotex/gogotex/backend/collab-service/internal/comments"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document/repository"
	"github.com/gogotex/gogotex/backend/collab-service/internal/lock"
	"github.com/gogotex/gogotex/backend/collab-service/internal/replay"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/logger"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/metrics"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is kept for handler code that matched the service error.
var ErrNotFound = document.ErrNotFound

// CreateInput carries the fields a caller controls when creating a document.
type CreateInput struct {
	Name          string
	Content       string
	CreatedBy     string
	Collaborators []string
}

// Service defines the document business operations used by the handler layer.
type Service interface {
	Create(ctx context.Context, in CreateInput) (*document.Document, error)
	Get(ctx context.Context, id string) (*document.Document, error)
	List(ctx context.Context) ([]*document.Document, error)
	Delete(ctx context.Context, id string) error
	AddCollaborator(ctx context.Context, id, userID string) (*document.Document, error)

	Edit(ctx context.Context, id, editor string, ops []document.ChangeOp) (*document.Document, error)
	Lock(ctx context.Context, id, userID string) (bool, error)
	Unlock(ctx context.Context, id, userID string) (bool, error)

	History(ctx context.Context, id string) ([]document.ChangeRecord, error)
	ViewVersion(ctx context.Context, id string, version int) (string, error)
	Compare(ctx context.Context, id string, from, to int) (*Comparison, error)
	Verify(ctx context.Context, id string) (*replay.Verification, error)

	AddComment(ctx context.Context, documentID, author, content string) (*document.Comment, error)
	ListComments(ctx context.Context, documentID string) ([]*document.Comment, error)
	GetComment(ctx context.Context, commentID string) (*document.Comment, error)
	ResolveComment(ctx context.Context, commentID string) (bool, error)
	AddReply(ctx context.Context, commentID, author, content string) (*document.Reply, error)
}

// Options tunes a service. Zero values pick real time, UUIDs, no lock expiry
// and no version cache.
type Options struct {
	Clock   clock.Clock
	IDs     clock.IDGenerator
	LockTTL time.Duration
	Cache   cache.VersionCache
}

// New returns a Service over any Store implementation.
func New(store repository.Store, opts Options) Service {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = clock.UUIDGenerator{}
	}
	log := changelog.New(store, opts.Clock, opts.IDs)
	return &docService{
		store:    store,
		clock:    opts.Clock,
		ids:      opts.IDs,
		locks:    lock.NewManager(store, opts.Clock, opts.LockTTL),
		log:      log,
		replay:   replay.New(log, opts.Cache),
		comments: comments.NewManager(store, opts.Clock, opts.IDs),
	}
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() Service {
	return New(repository.NewMemoryRepo(), Options{})
}

// NewMongoService returns a Service backed by the documents, changes and
// comments collections of db. Caller owns the client.
func NewMongoService(ctx context.Context, db *mongo.Database, opts Options) (Service, error) {
	repo, err := repository.NewMongoRepo(ctx, db)
	if err != nil {
		return nil, err
	}
	return New(repo, opts), nil
}

type docService struct {
	store    repository.Store
	clock    clock.Clock
	ids      clock.IDGenerator
	locks    *lock.Manager
	log      *changelog.Log
	replay   *replay.Reconstructor
	comments *comments.Manager
}

func (s *docService) Create(ctx context.Context, in CreateInput) (*document.Document, error) {
	if in.CreatedBy == "" {
		return nil, fmt.Errorf("%w: creator required", document.ErrInvalidInput)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = document.DefaultName
	}
	collaborators := []string{in.CreatedBy}
	for _, c := range in.Collaborators {
		if c == "" {
			continue
		}
		dup := false
		for _, have := range collaborators {
			if have == c {
				dup = true
				break
			}
		}
		if !dup {
			collaborators = append(collaborators, c)
		}
	}
	now := s.clock.Now()
	d := &document.Document{
		ID:             s.ids.New(),
		Name:           name,
		InitialContent: in.Content,
		Content:        in.Content,
		Collaborators:  collaborators,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateDocument(ctx, d); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	logger.Infof("document %s created by %s", d.ID, d.CreatedBy)
	return d, nil
}

func (s *docService) Get(ctx context.Context, id string) (*document.Document, error) {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return d, nil
}

func (s *docService) List(ctx context.Context) ([]*document.Document, error) {
	return s.store.ListDocuments(ctx)
}

// Delete removes the document. Its change records and comments are retained.
func (s *docService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	logger.Infof("document %s deleted", id)
	return nil
}

func (s *docService) AddCollaborator(ctx context.Context, id, userID string) (*document.Document, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", document.ErrInvalidInput)
	}
	d, err := s.store.AddCollaborator(ctx, id, userID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("add collaborator to %s: %w", id, err)
	}
	return d, nil
}

// Edit applies ops on behalf of editor. The document must be unlocked or
// locked by editor. Editing never takes the lock.
func (s *docService) Edit(ctx context.Context, id, editor string, ops []document.ChangeOp) (*document.Document, error) {
	d, err := s.edit(ctx, id, editor, ops)
	metrics.Edits.WithLabelValues(editResult(err)).Inc()
	return d, err
}

func (s *docService) edit(ctx context.Context, id, editor string, ops []document.ChangeOp) (*document.Document, error) {
	if editor == "" {
		return nil, fmt.Errorf("%w: editor required", document.ErrInvalidInput)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: at least one op required", document.ErrInvalidInput)
	}
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("edit %s: %w", id, err)
	}
	now := s.clock.Now()
	if !d.CanEdit(editor, now) {
		return nil, fmt.Errorf("edit %s: %w", id, document.ErrLockConflict)
	}
	content, err := document.ApplyOps(d.Content, ops)
	if err != nil {
		return nil, fmt.Errorf("edit %s: %w", id, err)
	}
	rec, err := s.store.CommitEdit(ctx, repository.Edit{
		DocumentID:   id,
		Editor:       editor,
		PriorVersion: d.Version,
		Content:      content,
		Ops:          ops,
		RecordID:     s.ids.New(),
		At:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("edit %s: %w", id, err)
	}
	d.Content = content
	d.Version = rec.Version
	d.UpdatedAt = now
	editLog := logger.Component("edit")
	editLog.Debug().Str("document", id).Str("editor", editor).Int("version", rec.Version).Int("ops", len(ops)).Msg("applied")
	return d, nil
}

func editResult(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, document.ErrLockConflict):
		return "lock_conflict"
	case errors.Is(err, document.ErrMalformedChange):
		return "malformed"
	case errors.Is(err, document.ErrStaleWrite):
		return "stale"
	case errors.Is(err, document.ErrNotFound):
		return "not_found"
	case errors.Is(err, document.ErrInvalidInput):
		return "invalid"
	}
	return "error"
}

func (s *docService) Lock(ctx context.Context, id, userID string) (bool, error) {
	return s.locks.Acquire(ctx, id, userID)
}

func (s *docService) Unlock(ctx context.Context, id, userID string) (bool, error) {
	return s.locks.Release(ctx, id, userID)
}

func (s *docService) History(ctx context.Context, id string) ([]document.ChangeRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.log.History(ctx, id)
}

func (s *docService) ViewVersion(ctx context.Context, id string, version int) (string, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	text, err := s.replay.Reconstruct(ctx, d, version)
	if err != nil {
		return "", fmt.Errorf("view %s@%d: %w", id, version, err)
	}
	return text, nil
}

// Verify checks the log head with one indexed lookup and only replays the
// full history when the head matches the document version.
func (s *docService) Verify(ctx context.Context, id string) (*replay.Verification, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	head, err := s.log.Latest(ctx, id)
	if err != nil {
		return nil, err
	}
	var v *replay.Verification
	if head != d.Version {
		v = &replay.Verification{
			DocumentID: id,
			Version:    d.Version,
			Records:    head,
			Problem:    fmt.Sprintf("document is at version %d but the log head is version %d", d.Version, head),
		}
	} else if v, err = s.replay.Verify(ctx, d); err != nil {
		return nil, err
	}
	if !v.Consistent {
		logger.Warnf("document %s failed replay verification: %s", id, v.Problem)
	}
	return v, nil
}

func (s *docService) AddComment(ctx context.Context, documentID, author, content string) (*document.Comment, error) {
	if _, err := s.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return s.comments.Add(ctx, documentID, author, content)
}

func (s *docService) ListComments(ctx context.Context, documentID string) ([]*document.Comment, error) {
	if _, err := s.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return s.comments.List(ctx, documentID)
}

func (s *docService) GetComment(ctx context.Context, commentID string) (*document.Comment, error) {
	return s.comments.Get(ctx, commentID)
}

func (s *docService) ResolveComment(ctx context.Context, commentID string) (bool, error) {
	c, err := s.comments.Resolve(ctx, commentID)
	if err != nil {
		return false, err
	}
	return c.Resolved, nil
}

func (s *docService) AddReply(ctx context.Context, commentID, author, content string) (*document.Reply, error) {
	return s.comments.Reply(ctx, commentID, author, content)
}
