package engine

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCalibrationDoc(t *testing.T) []byte {
	t.Helper()
	return sampleCalibrationDoc(t)
}

func TestEngineRejectsCallsBeforeInit(t *testing.T) {
	eng := New(DefaultConfig)

	err := eng.InitBoard("board1", nil)
	assert.True(t, errors.Is(err, ErrNotInitializedErr))

	err = eng.ClearBoard("board1")
	assert.True(t, errors.Is(err, ErrNotInitializedErr))

	_, err = eng.Detect(context.Background(), "board1", nil)
	assert.True(t, errors.Is(err, ErrNotInitializedErr))
}

func TestEngineInitRejectsBadDocumentAndLeavesStateUntouched(t *testing.T) {
	eng := New(DefaultConfig)

	err := eng.Init([]byte(`not json`))
	require.Error(t, err)

	err = eng.InitBoard("board1", nil)
	assert.True(t, errors.Is(err, ErrNotInitializedErr), "a rejected Init must not flip initialized")
}

func TestEngineDetectOnUnknownBoardLazilyCreatesCache(t *testing.T) {
	eng := New(DefaultConfig)
	require.NoError(t, eng.Init(validCalibrationDoc(t)))

	// spec.md §4.1: "Unrecognized board_id → a fresh board cache is created
	// lazily." A well-formed, initialized call never fails through the
	// return path; with no cameras supplied it simply has nothing to
	// triangulate.
	res, err := eng.Detect(context.Background(), "never-initialized-board", nil)
	require.NoError(t, err)
	assert.Equal(t, MethodNoDetection, res.Method)
}

func TestEngineInitBoardThenClearBoardIsIdempotent(t *testing.T) {
	eng := New(DefaultConfig)
	require.NoError(t, eng.Init(validCalibrationDoc(t)))

	require.NoError(t, eng.InitBoard("board1", nil))
	require.NoError(t, eng.ClearBoard("board1"))
	require.NoError(t, eng.ClearBoard("board1")) // clearing twice is not an error

	// Detect on a cleared board lazily re-creates an empty cache rather than
	// failing; with no reference frame for any camera it simply detects
	// nothing.
	res, err := eng.Detect(context.Background(), "board1", nil)
	require.NoError(t, err)
	assert.Equal(t, MethodNoDetection, res.Method)
}

func TestBoardRegistryIsolatesCachesPerBoard(t *testing.T) {
	reg := newBoardRegistry()

	bc1 := reg.getOrCreate("board1")
	bc2 := reg.getOrCreate("board2")
	assert.NotSame(t, bc1, bc2)

	img := image.NewGray(image.Rect(0, 0, 4, 4))
	bc1.setReference("cam1", img)

	_, ok := bc2.reference("cam1")
	assert.False(t, ok, "board2 must not see board1's reference frame")

	got, ok := bc1.reference("cam1")
	assert.True(t, ok)
	assert.Same(t, img, got)
}

func TestBoardRegistrySameIDReturnsSameCache(t *testing.T) {
	reg := newBoardRegistry()
	a := reg.getOrCreate("board1")
	b := reg.getOrCreate("board1")
	assert.Same(t, a, b)
}

func TestBoardCacheResetClearsReferencesAndMasks(t *testing.T) {
	bc := newBoardCache()
	bc.setReference("cam1", image.NewGray(image.Rect(0, 0, 2, 2)))
	bc.accumulateMask("cam1", newBitmap(2, 2))

	bc.reset()

	_, ok := bc.reference("cam1")
	assert.False(t, ok)
	assert.Nil(t, bc.prevMask("cam1"))
}

func TestBoardCacheAccumulateMaskUnionsBits(t *testing.T) {
	bc := newBoardCache()
	first := newBitmap(2, 2)
	first.set(0, 0, true)
	bc.accumulateMask("cam1", first)

	second := newBitmap(2, 2)
	second.set(1, 1, true)
	bc.accumulateMask("cam1", second)

	got := bc.prevMask("cam1")
	require.NotNil(t, got)
	assert.True(t, got.Bits[0])
	assert.True(t, got.Bits[3])
}
