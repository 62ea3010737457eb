package hostfn

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDoer struct {
	resp *http.Response
	err  error
}

func (f *fakeDoer) Do(_ *http.Request) (*http.Response, error) {
	return f.resp, f.err
}

func TestHTTPCallLiveRecordsResponse(t *testing.T) {
	doer := &fakeDoer{resp: &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(strings.NewReader("hello")),
	}}
	w := HTTPCall(doer)
	rec := &fakeWrapperRecorder{mode: ModeLive}

	resp, err := w.Call(context.Background(), rec, HTTPRequest{Method: "GET", URL: "http://example.invalid"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hello", string(resp.Body))
	require.Len(t, rec.recorded, 1)
}

func TestHTTPCallReplayDoesNotDial(t *testing.T) {
	doer := &fakeDoer{err: assertNoCall{}}
	w := HTTPCall(doer)
	rec := &fakeWrapperRecorder{mode: ModeReplay, nextResp: HTTPResponse{StatusCode: 204}}

	resp, err := w.Call(context.Background(), rec, HTTPRequest{Method: "GET", URL: "http://example.invalid"})
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

type assertNoCall struct{}

func (assertNoCall) Error() string { return "Do must not be called during replay" }

// fakeWrapperRecorder is a minimal Recorder that hands back a single
// canned response regardless of name/hash, for wrapper-level tests that
// only exercise the live/replay split rather than divergence detection.
type fakeWrapperRecorder struct {
	mode     Mode
	nextResp any
	recorded []any
}

func (f *fakeWrapperRecorder) Mode() Mode { return f.mode }

func (f *fakeWrapperRecorder) NextReplayed(_ string, _ []byte, dst any) error {
	switch d := dst.(type) {
	case *HTTPResponse:
		*d = f.nextResp.(HTTPResponse)
	case *FileReadResponse:
		*d = f.nextResp.(FileReadResponse)
	case *KVGetResponse:
		*d = f.nextResp.(KVGetResponse)
	}
	return nil
}

func (f *fakeWrapperRecorder) Record(entry any) error {
	f.recorded = append(f.recorded, entry)
	return nil
}
