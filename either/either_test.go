package either

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEither_LeftAndRight(t *testing.T) {
	t.Parallel()

	left := Left[string, int]("boom")
	assert.True(t, left.IsLeft())
	assert.False(t, left.IsRight())

	l, ok := left.GetLeft()
	assert.True(t, ok)
	assert.Equal(t, "boom", l)
	assert.Equal(t, 7, left.GetOrElse(7))

	right := Right[string](42)
	r, ok := right.GetRight()
	assert.True(t, ok)
	assert.Equal(t, 42, r)
	assert.Equal(t, 42, right.GetOrElse(7))
}

func TestEither_FoldMap(t *testing.T) {
	t.Parallel()

	toText := func(e Either[string, int]) string {
		return Fold(e, func(l string) string { return "left:" + l }, strconv.Itoa)
	}

	assert.Equal(t, "left:boom", toText(Left[string, int]("boom")))
	assert.Equal(t, "42", toText(Right[string](42)))

	doubled := Map(Right[string](21), func(v int) int { return v * 2 })
	assert.Equal(t, 42, doubled.GetOrElse(0))

	chained := FlatMap(Right[string](1), func(int) Either[string, int] {
		return Left[string, int]("stop")
	})
	assert.True(t, chained.IsLeft())

	swapped := Right[string](3).Swap()
	v, ok := swapped.GetLeft()
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestEither_Results(t *testing.T) {
	t.Parallel()

	failure := errors.New("failed") //nolint:err113 // Test error

	_, err := ToResult(FromResult(0, failure))
	require.ErrorIs(t, err, failure)

	v, err := ToResult(FromResult(5, nil))
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}
