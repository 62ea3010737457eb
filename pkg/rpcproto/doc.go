// Package rpcproto defines the gRPC surface shared between executor pods
// and the Shard Manager (§6): message structs, a JSON-based wire codec
// standing in for protoc-generated protobuf encoding, and hand-written
// client/server stubs shaped like protoc-gen-go-grpc output, built
// directly on google.golang.org/grpc's ClientConnInterface, ServiceDesc,
// and ServiceRegistrar extension points.
package rpcproto
