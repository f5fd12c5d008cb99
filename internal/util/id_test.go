package util

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}

func TestNewRunID(t *testing.T) {
	id := NewRunID("Ring Majority / 4 agents")
	assert.True(t, strings.HasPrefix(id, "ring_majority_4_agents_"), id)
	assert.Len(t, id, len("ring_majority_4_agents_")+8)

	_, err := uuid.Parse(NewRunID(""))
	assert.NoError(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "a_b_c", Slug("  A--b  c!"))
	assert.Equal(t, "", Slug("!!!"))
}
