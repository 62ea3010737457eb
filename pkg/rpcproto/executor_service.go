package rpcproto

import (
	"context"

	"google.golang.org/grpc"
)

const executorServiceName = "golem.Executor"

// ExecutorClient is the worker-lifecycle and invocation surface exposed by
// an executor pod (§6).
type ExecutorClient interface {
	CreateWorker(ctx context.Context, in *CreateWorkerRequest, opts ...grpc.CallOption) (*CreateWorkerResponse, error)
	InvokeAndAwait(ctx context.Context, in *InvokeAndAwaitRequest, opts ...grpc.CallOption) (*InvokeAndAwaitResponse, error)
	Invoke(ctx context.Context, in *InvokeRequest, opts ...grpc.CallOption) (*InvokeResponse, error)
	ConnectWorker(ctx context.Context, in *ConnectWorkerRequest, opts ...grpc.CallOption) (Executor_ConnectWorkerClient, error)
	GetMetadata(ctx context.Context, in *GetMetadataRequest, opts ...grpc.CallOption) (*GetMetadataResponse, error)
	InterruptWorker(ctx context.Context, in *InterruptWorkerRequest, opts ...grpc.CallOption) (*InterruptWorkerResponse, error)
	ResumeWorker(ctx context.Context, in *ResumeWorkerRequest, opts ...grpc.CallOption) (*ResumeWorkerResponse, error)
	DeleteWorker(ctx context.Context, in *DeleteWorkerRequest, opts ...grpc.CallOption) (*DeleteWorkerResponse, error)
	UpdateWorker(ctx context.Context, in *UpdateWorkerRequest, opts ...grpc.CallOption) (*UpdateWorkerResponse, error)
	RevertWorker(ctx context.Context, in *RevertWorkerRequest, opts ...grpc.CallOption) (*RevertWorkerResponse, error)
	CompletePromise(ctx context.Context, in *CompletePromiseRequest, opts ...grpc.CallOption) (*CompletePromiseResponse, error)
	GetOplog(ctx context.Context, in *GetOplogRequest, opts ...grpc.CallOption) (Executor_GetOplogClient, error)
}

type executorClient struct {
	cc grpc.ClientConnInterface
}

func NewExecutorClient(cc grpc.ClientConnInterface) ExecutorClient {
	return &executorClient{cc: cc}
}

func (c *executorClient) unary(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+executorServiceName+"/"+method, in, out, opts...)
}

func (c *executorClient) CreateWorker(ctx context.Context, in *CreateWorkerRequest, opts ...grpc.CallOption) (*CreateWorkerResponse, error) {
	out := new(CreateWorkerResponse)
	return out, c.unary(ctx, "CreateWorker", in, out, opts...)
}

func (c *executorClient) InvokeAndAwait(ctx context.Context, in *InvokeAndAwaitRequest, opts ...grpc.CallOption) (*InvokeAndAwaitResponse, error) {
	out := new(InvokeAndAwaitResponse)
	return out, c.unary(ctx, "InvokeAndAwait", in, out, opts...)
}

func (c *executorClient) Invoke(ctx context.Context, in *InvokeRequest, opts ...grpc.CallOption) (*InvokeResponse, error) {
	out := new(InvokeResponse)
	return out, c.unary(ctx, "Invoke", in, out, opts...)
}

func (c *executorClient) GetMetadata(ctx context.Context, in *GetMetadataRequest, opts ...grpc.CallOption) (*GetMetadataResponse, error) {
	out := new(GetMetadataResponse)
	return out, c.unary(ctx, "GetMetadata", in, out, opts...)
}

func (c *executorClient) InterruptWorker(ctx context.Context, in *InterruptWorkerRequest, opts ...grpc.CallOption) (*InterruptWorkerResponse, error) {
	out := new(InterruptWorkerResponse)
	return out, c.unary(ctx, "InterruptWorker", in, out, opts...)
}

func (c *executorClient) ResumeWorker(ctx context.Context, in *ResumeWorkerRequest, opts ...grpc.CallOption) (*ResumeWorkerResponse, error) {
	out := new(ResumeWorkerResponse)
	return out, c.unary(ctx, "ResumeWorker", in, out, opts...)
}

func (c *executorClient) DeleteWorker(ctx context.Context, in *DeleteWorkerRequest, opts ...grpc.CallOption) (*DeleteWorkerResponse, error) {
	out := new(DeleteWorkerResponse)
	return out, c.unary(ctx, "DeleteWorker", in, out, opts...)
}

func (c *executorClient) UpdateWorker(ctx context.Context, in *UpdateWorkerRequest, opts ...grpc.CallOption) (*UpdateWorkerResponse, error) {
	out := new(UpdateWorkerResponse)
	return out, c.unary(ctx, "UpdateWorker", in, out, opts...)
}

func (c *executorClient) RevertWorker(ctx context.Context, in *RevertWorkerRequest, opts ...grpc.CallOption) (*RevertWorkerResponse, error) {
	out := new(RevertWorkerResponse)
	return out, c.unary(ctx, "RevertWorker", in, out, opts...)
}

func (c *executorClient) CompletePromise(ctx context.Context, in *CompletePromiseRequest, opts ...grpc.CallOption) (*CompletePromiseResponse, error) {
	out := new(CompletePromiseResponse)
	return out, c.unary(ctx, "CompletePromise", in, out, opts...)
}

func (c *executorClient) ConnectWorker(ctx context.Context, in *ConnectWorkerRequest, opts ...grpc.CallOption) (Executor_ConnectWorkerClient, error) {
	stream, err := c.cc.NewStream(ctx, &_Executor_ConnectWorker_StreamDesc, "/"+executorServiceName+"/ConnectWorker", opts...)
	if err != nil {
		return nil, err
	}
	cs := &executorConnectWorkerClient{stream}
	if err := cs.SendMsg(in); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return cs, nil
}

func (c *executorClient) GetOplog(ctx context.Context, in *GetOplogRequest, opts ...grpc.CallOption) (Executor_GetOplogClient, error) {
	stream, err := c.cc.NewStream(ctx, &_Executor_GetOplog_StreamDesc, "/"+executorServiceName+"/GetOplog", opts...)
	if err != nil {
		return nil, err
	}
	cs := &executorGetOplogClient{stream}
	if err := cs.SendMsg(in); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return cs, nil
}

// Executor_ConnectWorkerClient is the receive side of the ConnectWorker
// log/output tail stream.
type Executor_ConnectWorkerClient interface {
	Recv() (*WorkerEvent, error)
	grpc.ClientStream
}

type executorConnectWorkerClient struct{ grpc.ClientStream }

func (c *executorConnectWorkerClient) Recv() (*WorkerEvent, error) {
	m := new(WorkerEvent)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Executor_GetOplogClient is the receive side of the GetOplog inspection
// stream.
type Executor_GetOplogClient interface {
	Recv() (*OplogEntryWire, error)
	grpc.ClientStream
}

type executorGetOplogClient struct{ grpc.ClientStream }

func (c *executorGetOplogClient) Recv() (*OplogEntryWire, error) {
	m := new(OplogEntryWire)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ExecutorServer is implemented by the executor process.
type ExecutorServer interface {
	CreateWorker(context.Context, *CreateWorkerRequest) (*CreateWorkerResponse, error)
	InvokeAndAwait(context.Context, *InvokeAndAwaitRequest) (*InvokeAndAwaitResponse, error)
	Invoke(context.Context, *InvokeRequest) (*InvokeResponse, error)
	ConnectWorker(*ConnectWorkerRequest, Executor_ConnectWorkerServer) error
	GetMetadata(context.Context, *GetMetadataRequest) (*GetMetadataResponse, error)
	InterruptWorker(context.Context, *InterruptWorkerRequest) (*InterruptWorkerResponse, error)
	ResumeWorker(context.Context, *ResumeWorkerRequest) (*ResumeWorkerResponse, error)
	DeleteWorker(context.Context, *DeleteWorkerRequest) (*DeleteWorkerResponse, error)
	UpdateWorker(context.Context, *UpdateWorkerRequest) (*UpdateWorkerResponse, error)
	RevertWorker(context.Context, *RevertWorkerRequest) (*RevertWorkerResponse, error)
	CompletePromise(context.Context, *CompletePromiseRequest) (*CompletePromiseResponse, error)
	GetOplog(*GetOplogRequest, Executor_GetOplogServer) error
}

// Executor_ConnectWorkerServer is the send side of the ConnectWorker
// stream, implemented by the server handler.
type Executor_ConnectWorkerServer interface {
	Send(*WorkerEvent) error
	grpc.ServerStream
}

type executorConnectWorkerServer struct{ grpc.ServerStream }

func (s *executorConnectWorkerServer) Send(m *WorkerEvent) error { return s.ServerStream.SendMsg(m) }

// Executor_GetOplogServer is the send side of the GetOplog stream.
type Executor_GetOplogServer interface {
	Send(*OplogEntryWire) error
	grpc.ServerStream
}

type executorGetOplogServer struct{ grpc.ServerStream }

func (s *executorGetOplogServer) Send(m *OplogEntryWire) error { return s.ServerStream.SendMsg(m) }

func _Executor_ConnectWorker_Handler(srv interface{}, stream grpc.ServerStream) error {
	in := new(ConnectWorkerRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ExecutorServer).ConnectWorker(in, &executorConnectWorkerServer{stream})
}

func _Executor_GetOplog_Handler(srv interface{}, stream grpc.ServerStream) error {
	in := new(GetOplogRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ExecutorServer).GetOplog(in, &executorGetOplogServer{stream})
}

var _Executor_ConnectWorker_StreamDesc = grpc.StreamDesc{
	StreamName:    "ConnectWorker",
	ServerStreams: true,
}

var _Executor_GetOplog_StreamDesc = grpc.StreamDesc{
	StreamName:    "GetOplog",
	ServerStreams: true,
}

func unaryHandler(method string, newReq func() interface{}, call func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + executorServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv, ctx, req)
		})
	}
}

var ExecutorServiceDesc = grpc.ServiceDesc{
	ServiceName: executorServiceName,
	HandlerType: (*ExecutorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateWorker", Handler: unaryHandler("CreateWorker", func() interface{} { return new(CreateWorkerRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(ExecutorServer).CreateWorker(ctx, req.(*CreateWorkerRequest))
			})},
		{MethodName: "InvokeAndAwait", Handler: unaryHandler("InvokeAndAwait", func() interface{} { return new(InvokeAndAwaitRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(ExecutorServer).InvokeAndAwait(ctx, req.(*InvokeAndAwaitRequest))
			})},
		{MethodName: "Invoke", Handler: unaryHandler("Invoke", func() interface{} { return new(InvokeRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(ExecutorServer).Invoke(ctx, req.(*InvokeRequest))
			})},
		{MethodName: "GetMetadata", Handler: unaryHandler("GetMetadata", func() interface{} { return new(GetMetadataRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(ExecutorServer).GetMetadata(ctx, req.(*GetMetadataRequest))
			})},
		{MethodName: "InterruptWorker", Handler: unaryHandler("InterruptWorker", func() interface{} { return new(InterruptWorkerRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(ExecutorServer).InterruptWorker(ctx, req.(*InterruptWorkerRequest))
			})},
		{MethodName: "ResumeWorker", Handler: unaryHandler("ResumeWorker", func() interface{} { return new(ResumeWorkerRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(ExecutorServer).ResumeWorker(ctx, req.(*ResumeWorkerRequest))
			})},
		{MethodName: "DeleteWorker", Handler: unaryHandler("DeleteWorker", func() interface{} { return new(DeleteWorkerRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(ExecutorServer).DeleteWorker(ctx, req.(*DeleteWorkerRequest))
			})},
		{MethodName: "UpdateWorker", Handler: unaryHandler("UpdateWorker", func() interface{} { return new(UpdateWorkerRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(ExecutorServer).UpdateWorker(ctx, req.(*UpdateWorkerRequest))
			})},
		{MethodName: "RevertWorker", Handler: unaryHandler("RevertWorker", func() interface{} { return new(RevertWorkerRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(ExecutorServer).RevertWorker(ctx, req.(*RevertWorkerRequest))
			})},
		{MethodName: "CompletePromise", Handler: unaryHandler("CompletePromise", func() interface{} { return new(CompletePromiseRequest) },
			func(srv interface{}, ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(ExecutorServer).CompletePromise(ctx, req.(*CompletePromiseRequest))
			})},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ConnectWorker", Handler: _Executor_ConnectWorker_Handler, ServerStreams: true},
		{StreamName: "GetOplog", Handler: _Executor_GetOplog_Handler, ServerStreams: true},
	},
	Metadata: "golem/executor.proto",
}

// RegisterExecutorServer registers impl with s.
func RegisterExecutorServer(s grpc.ServiceRegistrar, impl ExecutorServer) {
	s.RegisterService(&ExecutorServiceDesc, impl)
}
