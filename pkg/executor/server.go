package executor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/metrics"
	"github.com/golem-project/golem-core/pkg/oplog"
	"github.com/golem-project/golem-core/pkg/rpcproto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MetricsInterceptor records golem_api_requests_total and
// golem_api_request_duration_seconds for every unary Executor RPC, mirroring
// the access-control interceptor's shape but for metrics instead of
// read-only enforcement.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		method := methodName(info.FullMethod)
		timer := metrics.NewTimer()

		resp, err := handler(ctx, req)

		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.APIRequestsTotal.WithLabelValues(method, outcome).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, method)

		return resp, err
	}
}

func methodName(fullMethod string) string {
	parts := strings.Split(fullMethod, "/")
	return parts[len(parts)-1]
}

// Server adapts an Executor to rpcproto.ExecutorServer, translating wire
// requests and responses at the boundary so the business logic in
// executor.go stays independent of the RPC layer.
type Server struct {
	exec *Executor
}

// NewServer wraps exec as a gRPC ExecutorServer.
func NewServer(exec *Executor) *Server {
	return &Server{exec: exec}
}

func grpcError(err error) error {
	switch err.(type) {
	case *ErrInvalidShardId:
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	switch err {
	case ErrWorkerNotFound:
		return status.Error(codes.NotFound, err.Error())
	case ErrWorkerAlreadyExists:
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func (s *Server) CreateWorker(ctx context.Context, req *rpcproto.CreateWorkerRequest) (*rpcproto.CreateWorkerResponse, error) {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.exec.CreateWorker(ctx, id, req.ComponentID, req.ComponentVersion, req.Args, req.Env); err != nil {
		return nil, grpcError(err)
	}
	return &rpcproto.CreateWorkerResponse{}, nil
}

func (s *Server) InvokeAndAwait(ctx context.Context, req *rpcproto.InvokeAndAwaitRequest) (*rpcproto.InvokeAndAwaitResponse, error) {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	result, err := s.exec.InvokeAndAwait(ctx, id, req.IdempotencyKey, req.FunctionName, req.Params)
	if err != nil {
		return &rpcproto.InvokeAndAwaitResponse{ErrorKind: "invocation_failed", ErrorMsg: err.Error()}, nil
	}
	return &rpcproto.InvokeAndAwaitResponse{Result: result}, nil
}

func (s *Server) Invoke(ctx context.Context, req *rpcproto.InvokeRequest) (*rpcproto.InvokeResponse, error) {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.exec.Invoke(ctx, id, req.IdempotencyKey, req.FunctionName, req.Params); err != nil {
		return nil, grpcError(err)
	}
	return &rpcproto.InvokeResponse{Accepted: true}, nil
}

func (s *Server) ConnectWorker(req *rpcproto.ConnectWorkerRequest, stream rpcproto.Executor_ConnectWorkerServer) error {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	ch, unsubscribe := s.exec.Events().subscribe(id)
	defer unsubscribe()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(&event); err != nil {
				return err
			}
		}
	}
}

func (s *Server) GetMetadata(ctx context.Context, req *rpcproto.GetMetadataRequest) (*rpcproto.GetMetadataResponse, error) {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	meta, err := s.exec.GetMetadata(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return &rpcproto.GetMetadataResponse{
		Status:           string(meta.Status),
		ComponentVersion: meta.ComponentVersion,
		RetryPolicy: rpcproto.RetryPolicy{
			MaxAttempts: int32(meta.RetryPolicy.MaxAttempts),
			MinDelayMs:  meta.RetryPolicy.MinDelay.Milliseconds(),
		},
	}, nil
}

func (s *Server) InterruptWorker(ctx context.Context, req *rpcproto.InterruptWorkerRequest) (*rpcproto.InterruptWorkerResponse, error) {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.exec.InterruptWorker(ctx, id, req.RecoverImmediately); err != nil {
		return nil, grpcError(err)
	}
	return &rpcproto.InterruptWorkerResponse{}, nil
}

func (s *Server) ResumeWorker(ctx context.Context, req *rpcproto.ResumeWorkerRequest) (*rpcproto.ResumeWorkerResponse, error) {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.exec.ResumeWorker(id); err != nil {
		return nil, grpcError(err)
	}
	return &rpcproto.ResumeWorkerResponse{}, nil
}

func (s *Server) DeleteWorker(ctx context.Context, req *rpcproto.DeleteWorkerRequest) (*rpcproto.DeleteWorkerResponse, error) {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.exec.DeleteWorker(ctx, id); err != nil {
		return nil, grpcError(err)
	}
	return &rpcproto.DeleteWorkerResponse{}, nil
}

func (s *Server) UpdateWorker(ctx context.Context, req *rpcproto.UpdateWorkerRequest) (*rpcproto.UpdateWorkerResponse, error) {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.exec.UpdateWorker(ctx, id, req.TargetVersion, req.Mode); err != nil {
		return nil, grpcError(err)
	}
	return &rpcproto.UpdateWorkerResponse{}, nil
}

func (s *Server) RevertWorker(ctx context.Context, req *rpcproto.RevertWorkerRequest) (*rpcproto.RevertWorkerResponse, error) {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	target := RevertTarget{
		LastInvocations: req.Target.LastInvocations,
		ToOplogIndex:    req.Target.ToOplogIndex,
		ByIndex:         req.Target.ByIndex,
	}
	if err := s.exec.RevertWorker(ctx, id, target); err != nil {
		return nil, grpcError(err)
	}
	return &rpcproto.RevertWorkerResponse{}, nil
}

func (s *Server) CompletePromise(ctx context.Context, req *rpcproto.CompletePromiseRequest) (*rpcproto.CompletePromiseResponse, error) {
	workerID, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	promiseID := ids.PromiseId{WorkerId: workerID, OplogIndex: req.OplogIndex}
	if err := s.exec.CompletePromise(ctx, promiseID, req.PayloadBytes); err != nil {
		return nil, grpcError(err)
	}
	return &rpcproto.CompletePromiseResponse{}, nil
}

func (s *Server) GetOplog(req *rpcproto.GetOplogRequest, stream rpcproto.Executor_GetOplogServer) error {
	id, err := ids.ParseWorkerId(req.WorkerID)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	const pageSize = 256
	idx := req.FromIndex
	if idx == 0 {
		idx = 1
	}

	ctx := stream.Context()
	for {
		entries, err := s.exec.Oplog().Read(ctx, id, oplog.OplogIndex(idx), pageSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for _, entry := range entries {
			payload, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			wire := &rpcproto.OplogEntryWire{
				Index:       uint64(entry.Index),
				Kind:        string(entry.Kind),
				Timestamp:   entry.Timestamp,
				PayloadJSON: payload,
			}
			if err := stream.Send(wire); err != nil {
				return err
			}
		}
		idx = uint64(entries[len(entries)-1].Index) + 1
		if len(entries) < pageSize {
			return nil
		}
	}
}
