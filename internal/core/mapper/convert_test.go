package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundHalfToEven(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(2, round(2.5))
	assert.Equal(4, round(3.5))
	assert.Equal(3, round(2.6))
	assert.Equal(-2, round(-2.5))
}
