package hostfn

import "context"

// FileSystem is the worker-visible filesystem a guest's wasi:filesystem
// import reads and writes through: read-only initial files mounted from
// the component's declared FileRef set plus a worker-local writable
// scratch area (§4.3 "Filesystem"). The backing store (local disk,
// content-addressed blob cache) is a collaborator this package only
// calls through this interface.
type FileSystem interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
}

// FileReadRequest is the journaled request for a filesystem read.
type FileReadRequest struct {
	Path string
}

// FileReadResponse is the journaled result of a filesystem read.
type FileReadResponse struct {
	Data []byte
}

// ReadFile wraps a filesystem read. Classified Local: it touches only
// this worker's own mounted filesystem, not another worker or the
// network.
func ReadFile(fs FileSystem) *Wrapper[FileReadRequest, FileReadResponse] {
	return &Wrapper[FileReadRequest, FileReadResponse]{
		Name:           "filesystem-read",
		Classification: Local,
		Perform: func(ctx context.Context, req FileReadRequest) (FileReadResponse, ErrorClass, error) {
			data, err := fs.ReadFile(ctx, req.Path)
			if err != nil {
				return FileReadResponse{}, NonRetryable, err
			}
			return FileReadResponse{Data: data}, Retryable, nil
		},
	}
}

// FileWriteRequest is the journaled request for a filesystem write.
type FileWriteRequest struct {
	Path string
	Data []byte
}

// FileWriteResponse is the journaled (empty) result of a filesystem write.
type FileWriteResponse struct{}

// WriteFile wraps a filesystem write to the worker's writable scratch
// area. Classified Local for the same reason as ReadFile.
func WriteFile(fs FileSystem) *Wrapper[FileWriteRequest, FileWriteResponse] {
	return &Wrapper[FileWriteRequest, FileWriteResponse]{
		Name:           "filesystem-write",
		Classification: Local,
		Perform: func(ctx context.Context, req FileWriteRequest) (FileWriteResponse, ErrorClass, error) {
			if err := fs.WriteFile(ctx, req.Path, req.Data); err != nil {
				return FileWriteResponse{}, NonRetryable, err
			}
			return FileWriteResponse{}, Retryable, nil
		},
	}
}
