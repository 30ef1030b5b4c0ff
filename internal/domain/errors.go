package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	// ErrStreamTransport covers network and protocol failures while a
	// streaming response is in flight.
	ErrStreamTransport = fmt.Errorf("stream transport failed")
	// ErrToolArgumentParse is returned when accumulated tool call arguments
	// are not valid JSON at end of stream.
	ErrToolArgumentParse = fmt.Errorf("tool arguments not parseable")
	// ErrUnsupportedTool is returned when the model requests a tool that is
	// not registered.
	ErrUnsupportedTool = fmt.Errorf("unsupported tool")
	// ErrInvalidArguments is returned when tool arguments parse but fail
	// validation (e.g. a blank search query).
	ErrInvalidArguments = fmt.Errorf("invalid tool arguments")
	// ErrSearchBackend covers failures of the upstream search API.
	ErrSearchBackend = fmt.Errorf("search backend failed")
	// ErrPersistenceIO covers filesystem failures while saving conversations.
	ErrPersistenceIO = fmt.Errorf("persistence write failed")
	// ErrConversationNotFound is returned for lookups of unknown conversations.
	ErrConversationNotFound = fmt.Errorf("conversation not found")

	ErrTimeout = fmt.Errorf("operation timed out")

	// Resilience errors mapped from provider HTTP status codes.
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrProviderError   = fmt.Errorf("provider error")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g. "Registry.Get")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed
// on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrStreamTransport)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeStreamTransport   ErrorCode = "STREAM_TRANSPORT"
	CodeToolArgumentParse ErrorCode = "TOOL_ARGUMENT_PARSE"
	CodeUnsupportedTool   ErrorCode = "UNSUPPORTED_TOOL"
	CodeInvalidArguments  ErrorCode = "INVALID_ARGUMENTS"
	CodeSearchBackend     ErrorCode = "SEARCH_BACKEND"
	CodePersistenceIO     ErrorCode = "PERSISTENCE_IO"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeRateLimit         ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid       ErrorCode = "AUTH_INVALID"
	CodeContextOverflow   ErrorCode = "CONTEXT_OVERFLOW"
	CodeProviderError     ErrorCode = "PROVIDER_ERROR"
)

var errorCodeMap = map[error]ErrorCode{
	ErrStreamTransport:      CodeStreamTransport,
	ErrToolArgumentParse:    CodeToolArgumentParse,
	ErrUnsupportedTool:      CodeUnsupportedTool,
	ErrInvalidArguments:     CodeInvalidArguments,
	ErrSearchBackend:        CodeSearchBackend,
	ErrPersistenceIO:        CodePersistenceIO,
	ErrConversationNotFound: CodeNotFound,
	ErrTimeout:              CodeTimeout,
	ErrRateLimit:            CodeRateLimit,
	ErrAuthInvalid:          CodeAuthInvalid,
	ErrContextOverflow:      CodeContextOverflow,
	ErrProviderError:        CodeProviderError,
}

// ErrorCodeOf returns the machine-parseable code for err, walking the error
// chain with errors.Is. Returns CodeUnknown if no sentinel matches.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
