package wasmengine

import "fmt"

// ParamTypeMismatch is returned by Invoker.Invoke when a parameter's
// encoding does not match what this core-module ABI requires: exactly 8
// bytes (a little-endian uint64) per argument, or an instance that was not
// constructed by this package's NewInstanceFactory (§7).
type ParamTypeMismatch struct {
	FunctionName string
	Reason       string
}

func (e *ParamTypeMismatch) Error() string {
	return fmt.Sprintf("wasmengine: invoke %s: %s", e.FunctionName, e.Reason)
}

// Runtime wraps an error the wazero runtime itself raised while resolving
// or executing an exported function: an unexported function name, or a
// trap during the call (§7).
type Runtime struct {
	FunctionName string
	Err          error
}

func (e *Runtime) Error() string {
	return fmt.Sprintf("wasmengine: %s: %v", e.FunctionName, e.Err)
}

func (e *Runtime) Unwrap() error { return e.Err }

// InitialComponentFileDownloadFailed is returned by NewInstanceFactory when
// the component's artifact cannot be resolved or fetched through the
// loader - the first step of activation, before any WASM is even compiled
// (§7).
type InitialComponentFileDownloadFailed struct {
	ComponentID string
	Version     uint64
	Err         error
}

func (e *InitialComponentFileDownloadFailed) Error() string {
	return fmt.Sprintf("wasmengine: download component %s@%d: %v", e.ComponentID, e.Version, e.Err)
}

func (e *InitialComponentFileDownloadFailed) Unwrap() error { return e.Err }
