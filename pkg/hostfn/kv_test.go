package hostfn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	values map[string][]byte
}

func key(bucket, k string) string { return bucket + "/" + k }

func (f *fakeKV) Get(_ context.Context, bucket, k string) ([]byte, bool, error) {
	v, ok := f.values[key(bucket, k)]
	return v, ok, nil
}

func (f *fakeKV) Set(_ context.Context, bucket, k string, value []byte) error {
	f.values[key(bucket, k)] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, bucket, k string) error {
	delete(f.values, key(bucket, k))
	return nil
}

func TestKVSetThenGetLive(t *testing.T) {
	store := &fakeKV{values: map[string][]byte{}}
	setW := KVSet(store)
	getW := KVGet(store)
	rec := &fakeWrapperRecorder{mode: ModeLive}

	_, err := setW.Call(context.Background(), rec, KVSetRequest{Bucket: "b", Key: "k", Value: []byte("v")})
	require.NoError(t, err)

	resp, err := getW.Call(context.Background(), rec, KVGetRequest{Bucket: "b", Key: "k"})
	require.NoError(t, err)
	assert.True(t, resp.Found)
	assert.Equal(t, []byte("v"), resp.Value)
	assert.Len(t, rec.recorded, 2)
}

func TestKVGetReplayReturnsRecordedValue(t *testing.T) {
	store := &fakeKV{values: map[string][]byte{}}
	getW := KVGet(store)
	rec := &fakeWrapperRecorder{mode: ModeReplay, nextResp: KVGetResponse{Value: []byte("cached"), Found: true}}

	resp, err := getW.Call(context.Background(), rec, KVGetRequest{Bucket: "b", Key: "k"})
	require.NoError(t, err)
	assert.True(t, resp.Found)
	assert.Equal(t, []byte("cached"), resp.Value)
}
