package voting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	post, err := ParseTarget("post", 12)
	require.NoError(t, err)
	assert.Equal(t, PostTarget(12), post)
	assert.Equal(t, KindPost, post.Kind())
	assert.Equal(t, 12, post.ID())
	assert.Equal(t, "post:12", post.String())

	comment, err := ParseTarget("comment", 3)
	require.NoError(t, err)
	assert.Equal(t, CommentTarget(3), comment)

	_, err = ParseTarget("user", 1)
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestTarget_KindsAreDistinct(t *testing.T) {
	assert.NotEqual(t, PostTarget(1), CommentTarget(1))
	assert.True(t, Target{}.IsZero())
	assert.False(t, PostTarget(1).IsZero())
}

func TestNewTarget_PanicsOnUnknownKind(t *testing.T) {
	assert.Equal(t, CommentTarget(9), NewTarget(KindComment, 9))
	assert.Panics(t, func() { NewTarget(Kind(42), 1) })
}
