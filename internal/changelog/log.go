// Package changelog is the append-only, per-document history of accepted edits.
package changelog

import (
	"context"
	"fmt"

	"github.com/gogotex/gogotex/backend/collab-service/internal/clock"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document/repository"
)

// Log wraps a repository.ChangeLog with ID and timestamp assignment.
type Log struct {
	store repository.ChangeLog
	clock clock.Clock
	ids   clock.IDGenerator
}

func New(store repository.ChangeLog, c clock.Clock, ids clock.IDGenerator) *Log {
	if c == nil {
		c = clock.RealClock{}
	}
	if ids == nil {
		ids = clock.UUIDGenerator{}
	}
	return &Log{store: store, clock: c, ids: ids}
}

// Append records ops as the next version of documentID. It never inspects
// the ops; validity is the caller's concern.
func (l *Log) Append(ctx context.Context, documentID, author string, ops []document.ChangeOp) (*document.ChangeRecord, error) {
	rec := &document.ChangeRecord{
		ID:         l.ids.New(),
		DocumentID: documentID,
		Author:     author,
		Timestamp:  l.clock.Now(),
		Ops:        append([]document.ChangeOp(nil), ops...),
	}
	if err := l.store.AppendChange(ctx, rec); err != nil {
		return nil, fmt.Errorf("append change to %s: %w", documentID, err)
	}
	return rec, nil
}

// History returns every record for documentID in ascending version order.
// Unknown documents have an empty history.
func (l *Log) History(ctx context.Context, documentID string) ([]document.ChangeRecord, error) {
	recs, err := l.store.History(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", documentID, err)
	}
	return recs, nil
}

// Latest returns the highest recorded version, 0 when there is none.
func (l *Log) Latest(ctx context.Context, documentID string) (int, error) {
	v, err := l.store.LatestVersion(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("latest version of %s: %w", documentID, err)
	}
	return v, nil
}
