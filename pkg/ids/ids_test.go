package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentIdRoundTrip(t *testing.T) {
	c := NewComponentId()

	parsed, err := ParseComponentId(c.String())
	require.NoError(t, err)
	assert.Equal(t, c, parsed)
}

func TestParseComponentIdInvalid(t *testing.T) {
	_, err := ParseComponentId("not-a-uuid")
	assert.Error(t, err)
}

func TestWorkerIdString(t *testing.T) {
	c := NewComponentId()
	w := NewWorkerId(c, "worker-1")

	assert.Equal(t, c.String()+"/worker-1", w.String())
}

func TestParseWorkerIdRoundTrip(t *testing.T) {
	c := NewComponentId()
	w := NewWorkerId(c, "worker-1")

	parsed, err := ParseWorkerId(w.String())
	require.NoError(t, err)
	assert.Equal(t, w, parsed)
}

func TestParseWorkerIdRejectsMissingSeparator(t *testing.T) {
	_, err := ParseWorkerId("no-slash-here")
	assert.Error(t, err)
}

func TestParseWorkerIdRejectsInvalidComponentId(t *testing.T) {
	_, err := ParseWorkerId("not-a-uuid/worker-1")
	assert.Error(t, err)
}

func TestParseWorkerIdRejectsEmptyWorkerName(t *testing.T) {
	c := NewComponentId()
	_, err := ParseWorkerId(c.String() + "/")
	assert.Error(t, err)
}

func TestShardIsStableAcrossCalls(t *testing.T) {
	c := NewComponentId()
	w := NewWorkerId(c, "worker-1")

	first := Shard(w, 16)
	second := Shard(w, 16)

	assert.Equal(t, first, second)
}

func TestShardWithinRange(t *testing.T) {
	c := NewComponentId()

	tests := []struct {
		name       string
		totalShard uint32
	}{
		{"one shard", 1},
		{"sixteen shards", 16},
		{"prime shard count", 97},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				w := NewWorkerId(c, string(rune('a'+i%26))+"-worker")
				s := Shard(w, tt.totalShard)
				assert.Less(t, uint32(s), tt.totalShard)
			}
		})
	}
}

func TestShardDistinguishesWorkerNames(t *testing.T) {
	c := NewComponentId()
	a := NewWorkerId(c, "worker-a")
	b := NewWorkerId(c, "worker-b")

	// Not guaranteed distinct shards in general, but with a large shard
	// count collisions on two fixed names would indicate a broken hash.
	assert.NotEqual(t, Shard(a, 1<<20), Shard(b, 1<<20))
}

func TestShardPanicsOnZeroShardCount(t *testing.T) {
	c := NewComponentId()
	w := NewWorkerId(c, "worker-1")

	assert.Panics(t, func() {
		Shard(w, 0)
	})
}

func TestPromiseIdString(t *testing.T) {
	c := NewComponentId()
	w := NewWorkerId(c, "worker-1")
	p := PromiseId{WorkerId: w, OplogIndex: 42}

	assert.Contains(t, p.String(), "42")
}
