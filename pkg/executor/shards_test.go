package executor

import (
	"testing"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/stretchr/testify/assert"
)

func TestShardSetAssignAndOwns(t *testing.T) {
	s := NewShardSet()
	assert.False(t, s.Owns(ids.ShardId(1)))

	s.Assign(1, []ids.ShardId{1, 2, 3})
	assert.True(t, s.Owns(ids.ShardId(1)))
	assert.True(t, s.Owns(ids.ShardId(2)))
	assert.False(t, s.Owns(ids.ShardId(4)))
	assert.Equal(t, uint64(1), s.Generation())
}

func TestShardSetRevokeDropsShards(t *testing.T) {
	s := NewShardSet()
	s.Assign(1, []ids.ShardId{1, 2})

	s.Revoke(2, []ids.ShardId{1})
	assert.False(t, s.Owns(ids.ShardId(1)))
	assert.True(t, s.Owns(ids.ShardId(2)))
}

func TestShardSetIgnoresStaleGeneration(t *testing.T) {
	s := NewShardSet()
	s.Assign(5, []ids.ShardId{1})

	s.Assign(3, []ids.ShardId{2})
	assert.False(t, s.Owns(ids.ShardId(2)))
	assert.Equal(t, uint64(5), s.Generation())

	s.Revoke(1, []ids.ShardId{1})
	assert.True(t, s.Owns(ids.ShardId(1)))
}

func TestShardSetOwnedReturnsSnapshot(t *testing.T) {
	s := NewShardSet()
	s.Assign(1, []ids.ShardId{1, 2, 3})

	owned := s.Owned()
	assert.ElementsMatch(t, []ids.ShardId{1, 2, 3}, owned)
}
