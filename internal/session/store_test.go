package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAssignsMonotonicIDs(t *testing.T) {
	s := NewStore()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	roles := []Role{RoleAssistant, RoleUser, RoleAssistant, RoleUser, RoleUser}
	for i, role := range roles {
		msg := s.Append(role, "m", ts)
		assert.Equal(t, i+1, msg.ID)
	}

	all := s.All()
	require.Len(t, all, len(roles))
	for i := 1; i < len(all); i++ {
		assert.Equal(t, all[i-1].ID+1, all[i].ID)
	}
}

func TestStore_AllPreservesInsertionOrder(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.Append(RoleAssistant, "hello", now)
	s.Append(RoleUser, "hi", now)
	s.Append(RoleAssistant, "how can I help?", now)

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "hello", all[0].Content)
	assert.Equal(t, RoleUser, all[1].Role)
	assert.Equal(t, "how can I help?", all[2].Content)
}

func TestStore_AllReturnsSnapshot(t *testing.T) {
	s := NewStore()
	s.Append(RoleUser, "original", time.Now())

	snap := s.All()
	snap[0].Content = "mutated"
	s.Append(RoleAssistant, "later", time.Now())

	assert.Len(t, snap, 1)
	assert.Equal(t, "original", s.All()[0].Content)
	assert.Equal(t, 2, s.Len())
}

func TestStore_Last(t *testing.T) {
	s := NewStore()
	_, ok := s.Last()
	assert.False(t, ok)

	s.Append(RoleUser, "first", time.Now())
	s.Append(RoleAssistant, "second", time.Now())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.ID)
	assert.Equal(t, "second", last.Content)
}

func TestNewHandle(t *testing.T) {
	a := NewHandle()
	b := NewHandle()

	assert.NotEmpty(t, a.LocalID)
	assert.NotEqual(t, a.LocalID, b.LocalID)
	assert.False(t, a.Connected())

	a.ConversationID = "c1"
	assert.True(t, a.Connected())
}
