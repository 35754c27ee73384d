package repository

import (
	"context"
	"time"

	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
)

// ErrNotFound is kept as an alias so callers may match either name.
var ErrNotFound = document.ErrNotFound

// Edit is a fully computed change ready to be committed. Content is the
// result of applying Ops to the document content at PriorVersion.
type Edit struct {
	DocumentID   string
	Editor       string
	PriorVersion int
	Content      string
	Ops          []document.ChangeOp
	RecordID     string
	At           time.Time
}

// Documents persists document state including the lock fields.
type Documents interface {
	CreateDocument(ctx context.Context, d *document.Document) error
	GetDocument(ctx context.Context, id string) (*document.Document, error)
	ListDocuments(ctx context.Context) ([]*document.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	AddCollaborator(ctx context.Context, id, userID string, at time.Time) (*document.Document, error)

	// AcquireLock sets the lock only when the document is unlocked or its
	// lease expired at now. It reports whether the lock was taken.
	AcquireLock(ctx context.Context, id, userID string, now time.Time, expiresAt *time.Time) (bool, error)
	// ReleaseLock clears the lock only when it is held by userID.
	ReleaseLock(ctx context.Context, id, userID string) (bool, error)

	// CommitEdit atomically moves the document from PriorVersion to
	// PriorVersion+1 and appends the matching change record. It fails with
	// ErrLockConflict or ErrStaleWrite and changes nothing in that case.
	CommitEdit(ctx context.Context, e Edit) (*document.ChangeRecord, error)
}

// ChangeLog is the append-only per-document history.
type ChangeLog interface {
	// AppendChange assigns rec.Version = latest+1 atomically and stores rec.
	AppendChange(ctx context.Context, rec *document.ChangeRecord) error
	History(ctx context.Context, documentID string) ([]document.ChangeRecord, error)
	LatestVersion(ctx context.Context, documentID string) (int, error)
}

// Comments persists comment threads.
type Comments interface {
	InsertComment(ctx context.Context, c *document.Comment) error
	GetComment(ctx context.Context, id string) (*document.Comment, error)
	ListComments(ctx context.Context, documentID string) ([]*document.Comment, error)
	// ResolveComment marks the comment resolved. Resolving twice is not an error.
	ResolveComment(ctx context.Context, id string, at time.Time) (*document.Comment, error)
	AppendReply(ctx context.Context, commentID string, r document.Reply) (*document.Comment, error)
}

// Store is everything the document service needs from persistence.
type Store interface {
	Documents
	ChangeLog
	Comments
}
