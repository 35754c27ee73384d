package clock

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStubClockAdvance(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	c := NewStubClock(start)
	require.Equal(t, start, c.Now())
	c.Advance(90 * time.Second)
	require.Equal(t, start.Add(90*time.Second), c.Now())
}

func TestGenerators(t *testing.T) {
	id := UUIDGenerator{}.New()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	seq := NewSequenceIDs("doc")
	require.Equal(t, "doc-1", seq.New())
	require.Equal(t, "doc-2", seq.New())
}
