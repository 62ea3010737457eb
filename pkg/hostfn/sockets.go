package hostfn

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// HTTPRequest is the journaled request shape for an outbound HTTP call
// made through a worker's wasi:http import.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// HTTPResponse is the journaled result of an outbound HTTP call.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// HTTPDoer is the subset of *http.Client an outbound call runs through;
// production wiring supplies http.DefaultClient, tests a fake.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPCall wraps a single outbound HTTP request. Classified Remote: the
// call touches the outside world, so the response is journaled before the
// guest observes it, and replay never re-sends the request.
func HTTPCall(client HTTPDoer) *Wrapper[HTTPRequest, HTTPResponse] {
	return &Wrapper[HTTPRequest, HTTPResponse]{
		Name:           "http-call",
		Classification: Remote,
		Perform: func(ctx context.Context, req HTTPRequest) (HTTPResponse, ErrorClass, error) {
			var body io.Reader
			if req.Body != nil {
				body = bytes.NewReader(req.Body)
			}
			httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
			if err != nil {
				return HTTPResponse{}, NonRetryable, err
			}
			for k, v := range req.Headers {
				httpReq.Header.Set(k, v)
			}

			resp, err := client.Do(httpReq)
			if err != nil {
				return HTTPResponse{}, Retryable, err
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return HTTPResponse{}, Retryable, err
			}

			headers := make(map[string]string, len(resp.Header))
			for k := range resp.Header {
				headers[k] = resp.Header.Get(k)
			}
			return HTTPResponse{StatusCode: resp.StatusCode, Headers: headers, Body: respBody}, Retryable, nil
		},
	}
}
