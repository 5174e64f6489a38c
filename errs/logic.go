package errs

import (
	"fmt"
	"runtime"
)

// Logic is panicked (never returned) when the engine hits an invariant
// violation it cannot recover from: an impossible branch, a size mismatch
// in a serialized buffer, a step reaching a state the controller didn't
// expect. The host is expected to treat a recovered Logic as a bug report,
// not a user-facing error.
type Logic struct {
	Message string
	Stack   []uintptr
}

func (l *Logic) Error() string { return "logic error: " + l.Message }

// Fail panics with a Logic value carrying the caller's stack, per spec §7's
// "fail_with_exception" sites.
func Fail(format string, args ...interface{}) {
	var pcs = make([]uintptr, 32)
	var n = runtime.Callers(2, pcs)
	panic(&Logic{Message: fmt.Sprintf(format, args...), Stack: pcs[:n]})
}

// Frames renders the captured stack as human-readable frames, for logging
// a recovered Logic panic.
func (l *Logic) Frames() []runtime.Frame {
	var frames = runtime.CallersFrames(l.Stack)
	var out []runtime.Frame
	for {
		frame, more := frames.Next()
		out = append(out, frame)
		if !more {
			break
		}
	}
	return out
}
