package retry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giantswarm/testhooks/internal/framework"
)

func TestParameterLatch(t *testing.T) {
	l := NewParameterLatch()
	r, m := framework.NewHandle(), framework.NewHandle()
	cursor := 0
	next := func() int {
		cursor++
		return cursor - 1
	}

	assert.False(t, l.Hold(r, m))
	assert.Equal(t, 0, l.Next(r, m, next))
	assert.Equal(t, 1, l.Next(r, m, next))

	assert.True(t, l.Hold(r, m))
	assert.Equal(t, 1, l.Next(r, m, next), "held index is repeated")
	assert.Equal(t, 2, l.Next(r, m, next), "hold is consumed by one call")

	l.Release(r, m)
	assert.Equal(t, 0, l.Len())
}
