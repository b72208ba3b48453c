package slots

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/photobooth/internal/logic/capture"
)

func still() *capture.Still {
	return &capture.Still{Image: image.NewNRGBA(image.Rect(0, 0, 2, 2))}
}

func TestStore_FillAndAllFilled(t *testing.T) {
	s := NewStore(3)
	assert.Equal(t, 3, s.Len())
	assert.False(t, s.AllFilled())

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Set(i, still()))
	}
	assert.True(t, s.AllFilled())
	assert.Equal(t, 3, s.Filled())
	assert.Equal(t, []bool{true, true, true}, s.FilledFlags())
}

func TestStore_FilledSlotIsImmutable(t *testing.T) {
	s := NewStore(2)
	first := still()
	require.NoError(t, s.Set(0, first))

	err := s.Set(0, still())
	assert.ErrorIs(t, err, ErrSlotFilled)

	got, err := s.Get(0)
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestStore_OutOfRange(t *testing.T) {
	s := NewStore(2)
	assert.ErrorIs(t, s.Set(-1, still()), ErrOutOfRange)
	assert.ErrorIs(t, s.Set(2, still()), ErrOutOfRange)
	_, err := s.Get(5)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestStore_ClearKeepsSize(t *testing.T) {
	s := NewStore(3)
	require.NoError(t, s.Set(1, still()))
	s.Clear()

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 0, s.Filled())
	got, err := s.Get(1)
	require.NoError(t, err)
	assert.Nil(t, got)

	// A cleared slot can be filled again.
	assert.NoError(t, s.Set(1, still()))
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore(2)
	require.NoError(t, s.Set(0, still()))
	snap := s.Snapshot()
	s.Clear()
	assert.NotNil(t, snap[0])
	assert.Nil(t, snap[1])
}
