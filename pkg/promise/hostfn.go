package promise

import (
	"context"

	"github.com/golem-project/golem-core/pkg/hostfn"
	"github.com/golem-project/golem-core/pkg/ids"
)

// AwaitRequest is the journaled request for a guest's await-promise
// import call.
type AwaitRequest struct {
	PromiseID ids.PromiseId
}

// AwaitResponse is the journaled result of awaiting a promise: ErrMsg is
// set instead of propagating an error directly so the zero value decodes
// cleanly from a replayed entry.
type AwaitResponse struct {
	Value  []byte
	Failed bool
	ErrMsg string
}

// AwaitWrapper wraps Service.Await as a durable host call (§4.3
// "Promises"). Classified Remote: the result the guest observes depends
// on a completion that may have been produced by another worker's
// invocation, so replay must serve the journaled outcome rather than
// re-block on s.Await, which could hang forever if the completion was
// never re-delivered.
func (s *Service) AwaitWrapper() *hostfn.Wrapper[AwaitRequest, AwaitResponse] {
	return &hostfn.Wrapper[AwaitRequest, AwaitResponse]{
		Name:           "await-promise",
		Classification: hostfn.Remote,
		Perform: func(ctx context.Context, req AwaitRequest) (AwaitResponse, hostfn.ErrorClass, error) {
			result, err := s.Await(ctx, req.PromiseID)
			if err != nil {
				return AwaitResponse{Failed: true, ErrMsg: err.Error()}, hostfn.Retryable, err
			}
			if result.Err != nil {
				return AwaitResponse{Failed: true, ErrMsg: result.Err.Error()}, hostfn.Retryable, nil
			}
			return AwaitResponse{Value: result.Value}, hostfn.Retryable, nil
		},
	}
}
