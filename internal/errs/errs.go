// Package errs defines the failure taxonomy shared by the loaders, the
// render context and the export pipeline.
//
// LoadError and ShaderError are fatal for a render session. TransferError is
// the single degraded case: the frame it belongs to is skipped and rendering
// continues. Callers classify with errors.As.
package errs

import "fmt"

// LoadError reports an input file that could not be opened, parsed, or that
// lacks a mandatory attribute.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	prefix := "load"
	if e.Path != "" {
		prefix += " " + e.Path
	}
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("%s: %s: %v", prefix, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return fmt.Sprintf("%s: %s", prefix, e.Reason)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// ShaderError reports a program whose stages could not be linked.
type ShaderError struct {
	Program string
	Stage   string // "vertex", "fragment" or "link"
	Reason  string
}

func (e *ShaderError) Error() string {
	return fmt.Sprintf("shader %s: %s: %s", e.Program, e.Stage, e.Reason)
}

// TransferError reports a transfer slot that could not be mapped.
type TransferError struct {
	Slot  int
	Frame int
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer slot %d (frame %d): %v", e.Slot, e.Frame, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
