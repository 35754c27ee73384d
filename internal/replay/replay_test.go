package replay

import (
	"context"
	"testing"

	"github.com/gogotex/gogotex/backend/collab-service/internal/cache"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	records []document.ChangeRecord
	calls   int
}

func (s *staticSource) History(context.Context, string) ([]document.ChangeRecord, error) {
	s.calls++
	return s.records, nil
}

func records(ops ...[]document.ChangeOp) []document.ChangeRecord {
	out := make([]document.ChangeRecord, len(ops))
	for i, o := range ops {
		out[i] = document.ChangeRecord{DocumentID: "d1", Version: i + 1, Ops: o}
	}
	return out
}

func TestReplayEachVersion(t *testing.T) {
	recs := records(
		[]document.ChangeOp{document.Replace(0, 5, "Hello World")},
		[]document.ChangeOp{document.Delete(5, 6)},
		[]document.ChangeOp{document.Insert(5, "!"), document.Insert(0, ">")},
	)
	want := []string{"Hello", "Hello World", "Hello", ">Hello!"}
	for v, w := range want {
		got, err := Replay("Hello", recs, v)
		require.NoError(t, err)
		require.Equal(t, w, got, "version %d", v)
	}

	_, err := Replay("Hello", recs, 4)
	require.ErrorIs(t, err, document.ErrVersionNotFound)
	_, err = Replay("Hello", recs, -1)
	require.ErrorIs(t, err, document.ErrVersionNotFound)
}

func TestReplayDetectsGapsAndBadOps(t *testing.T) {
	gap := []document.ChangeRecord{{Version: 1}, {Version: 3}}
	_, err := Replay("", gap, 2)
	require.ErrorIs(t, err, document.ErrVersionNotFound)

	bad := records([]document.ChangeOp{document.Delete(0, 10)})
	_, err = Replay("abc", bad, 1)
	require.ErrorIs(t, err, document.ErrMalformedChange)
}

func TestReconstructUsesCache(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{records: records(
		[]document.ChangeOp{document.Insert(5, " World")},
	)}
	lru, err := cache.NewLRUCache(16)
	require.NoError(t, err)
	r := New(src, lru)
	doc := &document.Document{ID: "d1", InitialContent: "Hello", Content: "Hello World", Version: 1}

	hits := testutil.ToFloat64(metrics.Reconstructions.WithLabelValues("cache"))

	got, err := r.Reconstruct(ctx, doc, 1)
	require.NoError(t, err)
	require.Equal(t, "Hello World", got)
	got, err = r.Reconstruct(ctx, doc, 1)
	require.NoError(t, err)
	require.Equal(t, "Hello World", got)
	require.Equal(t, 1, src.calls)
	require.Equal(t, hits+1, testutil.ToFloat64(metrics.Reconstructions.WithLabelValues("cache")))

	got, err = r.Reconstruct(ctx, doc, 0)
	require.NoError(t, err)
	require.Equal(t, "Hello", got)

	_, err = r.Reconstruct(ctx, doc, 2)
	require.ErrorIs(t, err, document.ErrVersionNotFound)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{records: records([]document.ChangeOp{document.Insert(0, "a")})}
	r := New(src, nil)

	v, err := r.Verify(ctx, &document.Document{ID: "d1", Content: "a", Version: 1})
	require.NoError(t, err)
	require.True(t, v.Consistent)

	v, err = r.Verify(ctx, &document.Document{ID: "d1", Content: "b", Version: 1})
	require.NoError(t, err)
	require.False(t, v.Consistent)
	require.NotEmpty(t, v.Problem)

	v, err = r.Verify(ctx, &document.Document{ID: "d1", Content: "a", Version: 2})
	require.NoError(t, err)
	require.False(t, v.Consistent)
}
