package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/gogotex/gogotex/backend/collab-service/internal/cache"
	"github.com/gogotex/gogotex/backend/collab-service/internal/changelog"
	"github.com/gogotex/gogotex/backend/collab-service/internal/clock"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document/repository"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (Service, *clock.StubClock) {
	t.Helper()
	clk := clock.NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	lru, err := cache.NewLRUCache(64)
	require.NoError(t, err)
	svc := New(repository.NewMemoryRepo(), Options{Clock: clk, IDs: clock.NewSequenceIDs("id"), Cache: lru})
	return svc, clk
}

func TestLockedEditingWalkthrough(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, err := svc.Create(ctx, CreateInput{Name: "notes.txt", Content: "Hello", CreatedBy: "alice"})
	require.NoError(t, err)
	require.Equal(t, 0, d.Version)
	require.False(t, d.IsLocked)

	ok, err := svc.Lock(ctx, d.ID, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	d, err = svc.Edit(ctx, d.ID, "alice", []document.ChangeOp{document.Replace(0, 5, "Hello World")})
	require.NoError(t, err)
	require.Equal(t, 1, d.Version)
	require.Equal(t, "Hello World", d.Content)

	ok, err = svc.Lock(ctx, d.ID, "bob")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.Unlock(ctx, d.ID, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = svc.Lock(ctx, d.ID, "bob")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Edit(ctx, d.ID, "alice", []document.ChangeOp{document.Insert(0, "x")})
	require.ErrorIs(t, err, document.ErrLockConflict)

	text, err := svc.ViewVersion(ctx, d.ID, 0)
	require.NoError(t, err)
	require.Equal(t, "Hello", text)
	_, err = svc.ViewVersion(ctx, d.ID, 5)
	require.ErrorIs(t, err, document.ErrVersionNotFound)
}

func TestCommentThread(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	d, err := svc.Create(ctx, CreateInput{Content: "Hello", CreatedBy: "alice"})
	require.NoError(t, err)
	require.Equal(t, document.DefaultName, d.Name)

	c, err := svc.AddComment(ctx, d.ID, "bob", "looks good")
	require.NoError(t, err)
	require.False(t, c.Resolved)

	_, err = svc.AddReply(ctx, c.ID, "alice", "thanks")
	require.NoError(t, err)

	resolved, err := svc.ResolveComment(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, resolved)
	resolved, err = svc.ResolveComment(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, resolved)

	got, err := svc.GetComment(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Replies, 1)
	require.Equal(t, "alice", got.Replies[0].Author)

	list, err := svc.ListComments(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.AddComment(ctx, "missing", "bob", "hi")
	require.ErrorIs(t, err, document.ErrNotFound)
	_, err = svc.AddReply(ctx, "missing", "bob", "hi")
	require.ErrorIs(t, err, document.ErrNotFound)
	_, err = svc.ResolveComment(ctx, "missing")
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestFailedEditChangesNothing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	d, err := svc.Create(ctx, CreateInput{Content: "abc", CreatedBy: "alice"})
	require.NoError(t, err)

	malformed := testutil.ToFloat64(metrics.Edits.WithLabelValues("malformed"))

	// the second op is out of range once the first has been applied
	_, err = svc.Edit(ctx, d.ID, "alice", []document.ChangeOp{document.Delete(0, 2), document.Insert(5, "x")})
	require.ErrorIs(t, err, document.ErrMalformedChange)
	require.Equal(t, malformed+1, testutil.ToFloat64(metrics.Edits.WithLabelValues("malformed")))

	_, err = svc.Edit(ctx, d.ID, "alice", nil)
	require.ErrorIs(t, err, document.ErrInvalidInput)
	_, err = svc.Edit(ctx, "missing", "alice", []document.ChangeOp{document.Insert(0, "x")})
	require.ErrorIs(t, err, document.ErrNotFound)

	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "abc", got.Content)
	require.Equal(t, 0, got.Version)
	hist, err := svc.History(ctx, d.ID)
	require.NoError(t, err)
	require.Empty(t, hist)
}

func TestEditWithoutLockAllowedWhenUnlocked(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	d, err := svc.Create(ctx, CreateInput{Content: "", CreatedBy: "alice"})
	require.NoError(t, err)

	d, err = svc.Edit(ctx, d.ID, "bob", []document.ChangeOp{document.Insert(0, "hi")})
	require.NoError(t, err)
	require.Equal(t, "hi", d.Content)
	require.False(t, d.IsLocked, "editing does not take the lock")
}

func TestLockLeaseExpiresForEdits(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	svc := New(repository.NewMemoryRepo(), Options{Clock: clk, LockTTL: time.Minute})

	d, err := svc.Create(ctx, CreateInput{Content: "x", CreatedBy: "alice"})
	require.NoError(t, err)
	ok, err := svc.Lock(ctx, d.ID, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Edit(ctx, d.ID, "bob", []document.ChangeOp{document.Insert(1, "y")})
	require.ErrorIs(t, err, document.ErrLockConflict)

	clk.Advance(2 * time.Minute)
	d, err = svc.Edit(ctx, d.ID, "bob", []document.ChangeOp{document.Insert(1, "y")})
	require.NoError(t, err)
	require.Equal(t, "xy", d.Content)
}

// Every accepted edit must leave ViewVersion(current) equal to the stored content.
func TestReplayMatchesCurrentContentAfterEveryEdit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	d, err := svc.Create(ctx, CreateInput{Content: "seed", CreatedBy: "alice"})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 60; i++ {
		n := len([]rune(d.Content))
		var op document.ChangeOp
		switch rng.Intn(3) {
		case 0:
			op = document.Insert(rng.Intn(n+1), fmt.Sprintf("<%d>", i))
		case 1:
			p := rng.Intn(n + 1)
			op = document.Delete(p, rng.Intn(n-p+1))
		default:
			p := rng.Intn(n + 1)
			op = document.Replace(p, rng.Intn(n-p+1), "é")
		}
		d, err = svc.Edit(ctx, d.ID, "alice", []document.ChangeOp{op})
		require.NoError(t, err)
		require.Equal(t, i+1, d.Version)

		text, err := svc.ViewVersion(ctx, d.ID, d.Version)
		require.NoError(t, err)
		require.Equal(t, d.Content, text, "version %d", d.Version)
	}

	v, err := svc.Verify(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, v.Consistent)
	require.Equal(t, 60, v.Records)

	hist, err := svc.History(ctx, d.ID)
	require.NoError(t, err)
	for i, rec := range hist {
		require.Equal(t, i+1, rec.Version)
	}
}

func TestConcurrentUnlockedEditsKeepVersionsDense(t *testing.T) {
	ctx := context.Background()
	svc := New(repository.NewMemoryRepo(), Options{})
	d, err := svc.Create(ctx, CreateInput{Content: "", CreatedBy: "alice"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Edit(ctx, d.ID, fmt.Sprintf("u%d", i), []document.ChangeOp{document.Insert(0, "x")})
			if err != nil {
				assert.ErrorIs(t, err, document.ErrStaleWrite)
			}
		}(i)
	}
	wg.Wait()

	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	hist, err := svc.History(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, hist, got.Version)
	require.Len(t, got.Content, got.Version)

	v, err := svc.Verify(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, v.Consistent)
}

func TestCollaboratorsAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	d, err := svc.Create(ctx, CreateInput{Content: "x", CreatedBy: "alice", Collaborators: []string{"bob", "alice", ""}})
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, d.Collaborators)

	d, err = svc.AddCollaborator(ctx, d.ID, "carol")
	require.NoError(t, err)
	require.True(t, d.HasCollaborator("carol"))

	_, err = svc.Create(ctx, CreateInput{Content: "x"})
	require.ErrorIs(t, err, document.ErrInvalidInput)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, d.ID))
	_, err = svc.Get(ctx, d.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, d.ID), document.ErrNotFound)
}

func TestCompareVersions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	d, err := svc.Create(ctx, CreateInput{Content: "Hello", CreatedBy: "alice"})
	require.NoError(t, err)
	_, err = svc.Edit(ctx, d.ID, "alice", []document.ChangeOp{document.Insert(5, " World")})
	require.NoError(t, err)

	cmp, err := svc.Compare(ctx, d.ID, 0, 1)
	require.NoError(t, err)
	require.Equal(t, 6, cmp.Inserted)
	require.Equal(t, 0, cmp.Deleted)
	require.Equal(t, 6, cmp.Distance)
	require.Equal(t, []DiffSegment{{Op: "equal", Text: "Hello"}, {Op: "insert", Text: " World"}}, cmp.Segments)

	cmp, err = svc.Compare(ctx, d.ID, 1, 0)
	require.NoError(t, err)
	require.Equal(t, 6, cmp.Deleted)

	_, err = svc.Compare(ctx, d.ID, 0, 3)
	require.ErrorIs(t, err, document.ErrVersionNotFound)
}

func TestHistoryCallersCannotRewriteTheLog(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	d, err := svc.Create(ctx, CreateInput{Content: "Hello", CreatedBy: "alice"})
	require.NoError(t, err)
	_, err = svc.Edit(ctx, d.ID, "alice", []document.ChangeOp{document.Replace(0, 5, "Hello World")})
	require.NoError(t, err)

	h, err := svc.History(ctx, d.ID)
	require.NoError(t, err)
	h[0].Ops[0].Content = "rewritten"

	h, err = svc.History(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "Hello World", h[0].Ops[0].Content)

	v, err := svc.Verify(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, v.Consistent, v.Problem)
}

func TestVerifyDetectsLogAheadOfDocument(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	svc := New(repo, Options{})
	d, err := svc.Create(ctx, CreateInput{Content: "abc", CreatedBy: "alice"})
	require.NoError(t, err)
	_, err = svc.Edit(ctx, d.ID, "alice", []document.ChangeOp{document.Insert(3, "d")})
	require.NoError(t, err)

	// a record appended outside CommitEdit leaves the document behind the log
	_, err = changelog.New(repo, nil, nil).Append(ctx, d.ID, "bob", []document.ChangeOp{document.Insert(0, "z")})
	require.NoError(t, err)

	v, err := svc.Verify(ctx, d.ID)
	require.NoError(t, err)
	require.False(t, v.Consistent)
	require.Equal(t, 1, v.Version)
	require.Equal(t, 2, v.Records)
	require.Contains(t, v.Problem, "log head is version 2")
}
