package apierr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"massa-api/apierr"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(apierr.NotFound("block %s", "x")))
	assert.Equal(t, apierr.KindInternal, apierr.KindOf(errors.New("boom")))

	wrapped := fmt.Errorf("graph interval: %w", apierr.InvalidRange("start %d > end %d", 5, 3))
	assert.Equal(t, apierr.KindInvalidRange, apierr.KindOf(wrapped))
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("ctx: %w", apierr.Unavailable("not bootstrapped"))
	assert.True(t, errors.Is(err, apierr.Unavailable("")))
	assert.False(t, errors.Is(err, apierr.NotFound("")))
}

func TestValidationUnwraps(t *testing.T) {
	cause := errors.New("empty signature")
	err := apierr.Validation(cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "ValidationError: empty signature", err.Error())
}
