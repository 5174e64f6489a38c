// Package errs implements the externally visible error taxonomy of the
// dataflow core: a closed set of codes, the "first error wins" propagation
// rule, and a Logic panic type reserved for impossible-branch invariant
// violations.
package errs

// Code is one of the externally visible error codes a request may surface.
type Code int

const (
	// CodeNone means no error has occurred. It is the only code
	// overwritable by First once recorded.
	CodeNone Code = iota
	CodeUniqueConstraintViolation
	CodeConstraintViolation
	CodeTargetAlreadyExists
	CodeLTXWriteWithoutWritePreserve
	CodeWriteByRTX
	CodeUnsupportedRuntimeFeature
	CodeInactiveTransaction
	CodeRequestCanceled
	CodeIOError
	CodeSerializationFailure
	CodeNotFound
	// CodeConcurrentOperation is internal: it never reaches a client
	// directly. Callers in the storage boundary remap it to CodeNotFound
	// or CodeSerializationFailure per configuration (spec §9, §7).
	CodeConcurrentOperation
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeUniqueConstraintViolation:
		return "unique_constraint_violation_exception"
	case CodeConstraintViolation:
		return "constraint_violation_exception"
	case CodeTargetAlreadyExists:
		return "target_already_exists"
	case CodeLTXWriteWithoutWritePreserve:
		return "ltx_write_operation_without_write_preserve_exception"
	case CodeWriteByRTX:
		return "write_operation_by_rtx_exception"
	case CodeUnsupportedRuntimeFeature:
		return "unsupported_runtime_feature_exception"
	case CodeInactiveTransaction:
		return "err_inactive_transaction"
	case CodeRequestCanceled:
		return "request_canceled"
	case CodeIOError:
		return "err_io_error"
	case CodeSerializationFailure:
		return "err_serialization_failure"
	case CodeNotFound:
		return "not_found"
	case CodeConcurrentOperation:
		return "concurrent_operation"
	default:
		return "unknown_error_code"
	}
}

// Recoverable reports whether code is one that a transaction can observe
// without being forced inactive (spec §7: "any error that is not explicitly
// recoverable aborts the transaction").
func (c Code) Recoverable() bool {
	switch c {
	case CodeNone, CodeNotFound, CodeUniqueConstraintViolation, CodeConstraintViolation, CodeTargetAlreadyExists:
		return true
	default:
		return false
	}
}
