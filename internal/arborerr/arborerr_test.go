package arborerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storagef(cause, "writing document %s", "doc-1")
	assert.Contains(t, err.Error(), "storage")
	assert.Contains(t, err.Error(), "writing document doc-1")
	assert.Contains(t, err.Error(), "disk full")
}

func TestError_UnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(SearchError, "query failed", cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestError_IsMatchesSentinel(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", ErrIndexNotFound)
	assert.True(t, errors.Is(wrapped, ErrIndexNotFound))
	assert.False(t, errors.Is(wrapped, ErrDocumentNotFound))
}

func TestError_WithDetailDoesNotMutateOriginal(t *testing.T) {
	base := New(InvalidArgumentError, "bad filter")
	derived := base.WithDetail("field", "price")
	assert.Nil(t, base.Details)
	assert.Equal(t, "price", derived.Details["field"])
}

func TestIsKind(t *testing.T) {
	err := NotFoundf("index %q not found", "books")
	assert.True(t, IsKind(err, NotFoundError))
	assert.False(t, IsKind(err, StorageError))
}

func TestIsKind_FalseForNonArborErr(t *testing.T) {
	assert.False(t, IsKind(errors.New("plain"), StorageError))
}
