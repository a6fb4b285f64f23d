package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDSequenceIncreases(t *testing.T) {
	var seq idSequence
	assert.Equal(t, "1", seq.next())
	assert.Equal(t, "2", seq.next())
	assert.Equal(t, "3", seq.next())
}
