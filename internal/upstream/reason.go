package upstream

import "fmt"

// Reason classifies why an upstream call failed
type Reason int

const (
	// ReasonOutOfCycles: the caller lacked the resources to attach
	ReasonOutOfCycles Reason = iota
	// ReasonCanisterError: the callee trapped
	ReasonCanisterError
	// ReasonRejected: the callee explicitly rejected the call
	ReasonRejected
	// ReasonTransientInternalError: a retryable transport failure
	ReasonTransientInternalError
	// ReasonInternalError: a non-retryable internal failure
	ReasonInternalError
)

func (r Reason) String() string {
	switch r {
	case ReasonOutOfCycles:
		return "OutOfCycles"
	case ReasonCanisterError:
		return "CanisterError"
	case ReasonRejected:
		return "Rejected"
	case ReasonTransientInternalError:
		return "TransientInternalError"
	default:
		return "InternalError"
	}
}

// CallError is a classified upstream failure
type CallError struct {
	Method  string
	Reason  Reason
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s - %s: %s", e.Method, e.Reason, e.Message)
}

// Transient reports whether the failure is worth retrying
func (e *CallError) Transient() bool {
	return e.Reason == ReasonTransientInternalError
}

// classifyRPCError maps JSON-RPC error codes onto rejection reasons
func classifyRPCError(code int) Reason {
	switch {
	case code == -32000:
		return ReasonOutOfCycles
	case code == -32002:
		return ReasonTransientInternalError
	case code == -32603:
		return ReasonCanisterError
	case code >= -32099 && code <= -32001:
		return ReasonRejected
	default:
		return ReasonInternalError
	}
}
