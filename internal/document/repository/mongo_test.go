package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gogotex/gogotex/backend/collab-service/internal/database"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
	"github.com/stretchr/testify/require"
)

// newTestMongoRepo connects to MONGODB_TEST_URI (a replica set) and returns a
// repo on a throwaway database.
func newTestMongoRepo(t *testing.T) *MongoRepo {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI is not set")
	}
	ctx := context.Background()
	client, err := database.ConnectMongo(ctx, uri, 10*time.Second)
	require.NoError(t, err)
	db := client.Database(fmt.Sprintf("collab_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	repo, err := NewMongoRepo(ctx, db)
	require.NoError(t, err)
	return repo
}

func TestMongoRepoLockAndEdit(t *testing.T) {
	repo := newTestMongoRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.CreateDocument(ctx, &document.Document{
		ID: "d1", Name: "d1.txt", InitialContent: "Hello", Content: "Hello",
		CreatedBy: "u1", Collaborators: []string{"u1"}, CreatedAt: now, UpdatedAt: now,
	}))

	ok, err := repo.AcquireLock(ctx, "d1", "u1", now, nil)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.AcquireLock(ctx, "d1", "u2", now, nil)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = repo.CommitEdit(ctx, Edit{DocumentID: "d1", Editor: "u2", PriorVersion: 0, Content: "x", RecordID: "c0", At: now})
	require.ErrorIs(t, err, document.ErrLockConflict)

	rec, err := repo.CommitEdit(ctx, Edit{
		DocumentID: "d1", Editor: "u1", PriorVersion: 0, Content: "Hello World",
		Ops: []document.ChangeOp{document.Insert(5, " World")}, RecordID: "c1", At: now,
	})
	require.NoError(t, err)
	require.Equal(t, 1, rec.Version)

	_, err = repo.CommitEdit(ctx, Edit{DocumentID: "d1", Editor: "u1", PriorVersion: 0, Content: "x", RecordID: "c2", At: now})
	require.ErrorIs(t, err, document.ErrStaleWrite)

	d, err := repo.GetDocument(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "Hello World", d.Content)
	require.Equal(t, 1, d.Version)

	hist, err := repo.History(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, document.OpInsert, hist[0].Ops[0].Kind)

	ok, err = repo.ReleaseLock(ctx, "d1", "u2")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = repo.ReleaseLock(ctx, "d1", "u1")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = repo.AcquireLock(ctx, "missing", "u1", now, nil)
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestMongoRepoComments(t *testing.T) {
	repo := newTestMongoRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.InsertComment(ctx, &document.Comment{ID: "c1", DocumentID: "d1", Author: "u1", Content: "typo", CreatedAt: now}))
	c, err := repo.AppendReply(ctx, "c1", document.Reply{ID: "r1", CommentID: "c1", Author: "u2", Content: "fixed", CreatedAt: now})
	require.NoError(t, err)
	require.Len(t, c.Replies, 1)

	c, err = repo.ResolveComment(ctx, "c1", now)
	require.NoError(t, err)
	require.True(t, c.Resolved)
	c, err = repo.ResolveComment(ctx, "c1", now)
	require.NoError(t, err)
	require.True(t, c.Resolved)

	_, err = repo.ResolveComment(ctx, "nope", now)
	require.ErrorIs(t, err, document.ErrNotFound)

	list, err := repo.ListComments(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
