package hostfn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFS struct {
	files map[string][]byte
	err   error
}

func (f *fakeFS) ReadFile(_ context.Context, path string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.files[path], nil
}

func (f *fakeFS) WriteFile(_ context.Context, path string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.files[path] = data
	return nil
}

func TestReadFileLiveRecordsContent(t *testing.T) {
	fs := &fakeFS{files: map[string][]byte{"/data.txt": []byte("contents")}}
	w := ReadFile(fs)
	rec := &fakeWrapperRecorder{mode: ModeLive}

	resp, err := w.Call(context.Background(), rec, FileReadRequest{Path: "/data.txt"})
	require.NoError(t, err)
	assert.Equal(t, []byte("contents"), resp.Data)
	require.Len(t, rec.recorded, 1)
}

func TestReadFileMissingIsNonRetryable(t *testing.T) {
	fs := &fakeFS{err: errors.New("not found")}
	w := ReadFile(fs)
	rec := &fakeWrapperRecorder{mode: ModeLive}

	_, err := w.Call(context.Background(), rec, FileReadRequest{Path: "/missing"})
	require.Error(t, err)
	var classified *ClassifiedError
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, NonRetryable, classified.Class)
}

func TestWriteFileReplayDoesNotTouchBackend(t *testing.T) {
	fs := &fakeFS{files: map[string][]byte{}, err: errors.New("must not be called")}
	w := WriteFile(fs)
	rec := &fakeWrapperRecorder{mode: ModeReplay, nextResp: FileReadResponse{}}

	_, err := w.Call(context.Background(), rec, FileWriteRequest{Path: "/x", Data: []byte("y")})
	require.NoError(t, err)
}
