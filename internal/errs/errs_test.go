package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadErrorMessage(t *testing.T) {
	t.Parallel()

	t.Run("reason only", func(t *testing.T) {
		t.Parallel()
		err := &LoadError{Path: "cloud.ply", Reason: "missing property nx"}
		assert.Equal(t, "load cloud.ply: missing property nx", err.Error())
	})

	t.Run("wrapped cause", func(t *testing.T) {
		t.Parallel()
		err := &LoadError{Path: "cloud.ply", Err: fs.ErrNotExist}
		assert.Equal(t, "load cloud.ply: file does not exist", err.Error())
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("no path", func(t *testing.T) {
		t.Parallel()
		err := &LoadError{Reason: "no vertex element"}
		assert.Equal(t, "load: no vertex element", err.Error())
	})

	t.Run("reason and cause", func(t *testing.T) {
		t.Parallel()
		err := &LoadError{Path: "t.txt", Reason: "open", Err: fs.ErrPermission}
		assert.Contains(t, err.Error(), "open")
		assert.Contains(t, err.Error(), "permission denied")
	})
}

func TestClassification(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("session: %w", &ShaderError{Program: "ewa-visibility", Stage: "link", Reason: "no fragment stage"})

	var se *ShaderError
	require.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "ewa-visibility", se.Program)

	var le *LoadError
	assert.False(t, errors.As(wrapped, &le))

	cause := errors.New("buffer lost")
	te := &TransferError{Slot: 1, Frame: 4, Err: cause}
	assert.ErrorIs(t, te, cause)
	assert.Equal(t, "transfer slot 1 (frame 4): buffer lost", te.Error())
}
