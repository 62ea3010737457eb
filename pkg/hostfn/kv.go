package hostfn

import "context"

// KVStore is the worker-visible key-value/blob backend a guest's
// golem:api key-value import reads and writes through. The durable
// storage behind it (an object store or external KV service) is an
// out-of-scope collaborator (§1); this package only calls through this
// interface.
type KVStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, bool, error)
	Set(ctx context.Context, bucket, key string, value []byte) error
	Delete(ctx context.Context, bucket, key string) error
}

// KVGetRequest is the journaled request for a key-value read.
type KVGetRequest struct {
	Bucket string
	Key    string
}

// KVGetResponse is the journaled result of a key-value read.
type KVGetResponse struct {
	Value []byte
	Found bool
}

// KVGet wraps a key-value read. Classified Remote: the value lives in a
// store outside this worker's own process.
func KVGet(store KVStore) *Wrapper[KVGetRequest, KVGetResponse] {
	return &Wrapper[KVGetRequest, KVGetResponse]{
		Name:           "kv-get",
		Classification: Remote,
		Perform: func(ctx context.Context, req KVGetRequest) (KVGetResponse, ErrorClass, error) {
			value, found, err := store.Get(ctx, req.Bucket, req.Key)
			if err != nil {
				return KVGetResponse{}, Retryable, err
			}
			return KVGetResponse{Value: value, Found: found}, Retryable, nil
		},
	}
}

// KVSetRequest is the journaled request for a key-value write.
type KVSetRequest struct {
	Bucket string
	Key    string
	Value  []byte
}

// KVSetResponse is the journaled (empty) result of a key-value write.
type KVSetResponse struct{}

// KVSet wraps a key-value write.
func KVSet(store KVStore) *Wrapper[KVSetRequest, KVSetResponse] {
	return &Wrapper[KVSetRequest, KVSetResponse]{
		Name:           "kv-set",
		Classification: Remote,
		Perform: func(ctx context.Context, req KVSetRequest) (KVSetResponse, ErrorClass, error) {
			if err := store.Set(ctx, req.Bucket, req.Key, req.Value); err != nil {
				return KVSetResponse{}, Retryable, err
			}
			return KVSetResponse{}, Retryable, nil
		},
	}
}

// KVDeleteRequest is the journaled request for a key-value delete.
type KVDeleteRequest struct {
	Bucket string
	Key    string
}

// KVDeleteResponse is the journaled (empty) result of a key-value delete.
type KVDeleteResponse struct{}

// KVDelete wraps a key-value delete.
func KVDelete(store KVStore) *Wrapper[KVDeleteRequest, KVDeleteResponse] {
	return &Wrapper[KVDeleteRequest, KVDeleteResponse]{
		Name:           "kv-delete",
		Classification: Remote,
		Perform: func(ctx context.Context, req KVDeleteRequest) (KVDeleteResponse, ErrorClass, error) {
			if err := store.Delete(ctx, req.Bucket, req.Key); err != nil {
				return KVDeleteResponse{}, Retryable, err
			}
			return KVDeleteResponse{}, Retryable, nil
		},
	}
}
