// Package errs provides the structured error taxonomy shared across
// miniclaw's subsystems: a stable kind, a recoverability flag, a severity
// level, and an optional operator-facing suggestion.
package errs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies the category of a miniclaw error.
type Kind string

const (
	KindIO               Kind = "io"
	KindSessionPersist   Kind = "session_persistence"
	KindInvalidInput     Kind = "invalid_input"
	KindConfig           Kind = "config"
	KindPathValidation   Kind = "path_validation"
	KindSecurity         Kind = "security"
	KindExternalService  Kind = "external_service"
	KindSerialization    Kind = "serialization"
	KindTimeout          Kind = "timeout"
	KindChannel          Kind = "channel"
)

// Severity classifies how much an error impairs the running daemon.
type Severity string

const (
	SeverityFatal  Severity = "fatal"
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Error is miniclaw's structured error type. It is never compared with ==;
// use errors.As and inspect Kind.
type Error struct {
	Kind Kind

	// Message is the human-readable description.
	Message string

	// Path is an optional filesystem path associated with the error
	// (only meaningful for Kind == KindIO). It is sanitized on display.
	Path string

	// SessionID is set for KindSessionPersist errors.
	SessionID string

	// Service names the external collaborator for KindExternalService
	// errors (e.g. "telegram", "llm").
	Service string

	// Op and Seconds describe a KindTimeout error.
	Op      string
	Seconds int

	Cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindIO:
		return fmt.Sprintf("IO error on %s: %s", sanitizePath(e.Path), causeOrMessage(e))
	case KindSessionPersist:
		return fmt.Sprintf("session persistence failed for %s: %s", e.SessionID, e.Message)
	case KindInvalidInput:
		return fmt.Sprintf("invalid input: %s", e.Message)
	case KindConfig:
		return fmt.Sprintf("configuration error: %s", e.Message)
	case KindPathValidation:
		return fmt.Sprintf("path validation failed: %s", e.Message)
	case KindSecurity:
		return fmt.Sprintf("security violation: %s", e.Message)
	case KindExternalService:
		return fmt.Sprintf("external service error (%s): %s", e.Service, e.Message)
	case KindSerialization:
		return fmt.Sprintf("serialization error: %s", e.Message)
	case KindTimeout:
		return fmt.Sprintf("operation timed out after %ds: %s", e.Seconds, e.Op)
	case KindChannel:
		return fmt.Sprintf("channel error: %s", e.Message)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func causeOrMessage(e *Error) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return ""
}

// sanitizePath replaces the home directory prefix with "~" or, for paths
// outside home, reduces the path to "<sanitized>/<basename>".
func sanitizePath(path string) string {
	if path == "" {
		return ""
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if rel, ok := strings.CutPrefix(path, home); ok {
			return "~" + rel
		}
	}
	return "<sanitized>/" + filepath.Base(path)
}

// IO builds an IO-with-path error.
func IO(path string, cause error) *Error {
	return &Error{Kind: KindIO, Path: path, Cause: cause, Message: causeMsg(cause)}
}

// SessionPersistence builds a session-persistence error.
func SessionPersistence(sessionID, message string) *Error {
	return &Error{Kind: KindSessionPersist, SessionID: sessionID, Message: message}
}

// InvalidInput builds an invalid-input error.
func InvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

// Config builds a configuration error.
func Config(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

// PathValidation builds a path-validation error.
func PathValidation(message string) *Error {
	return &Error{Kind: KindPathValidation, Message: message}
}

// Security builds a security-violation error.
func Security(message string) *Error {
	return &Error{Kind: KindSecurity, Message: message}
}

// ExternalService builds an external-service error tagged with a service name.
func ExternalService(service, message string) *Error {
	return &Error{Kind: KindExternalService, Service: service, Message: message}
}

// Serialization builds a serialization error.
func Serialization(message string) *Error {
	return &Error{Kind: KindSerialization, Message: message}
}

// Timeout builds a timeout error for the named operation.
func Timeout(op string, seconds int) *Error {
	return &Error{Kind: KindTimeout, Op: op, Seconds: seconds}
}

// Channel builds a channel-communication error.
func Channel(message string) *Error {
	return &Error{Kind: KindChannel, Message: message}
}

func causeMsg(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

// Recoverable reports whether the system can continue after this error kind.
func (k Kind) Recoverable() bool {
	switch k {
	case KindIO, KindSessionPersist, KindInvalidInput, KindExternalService, KindTimeout, KindChannel:
		return true
	default:
		return false
	}
}

// Severity classifies the error kind's impact for graceful-degradation decisions.
// ExternalService severity additionally depends on the service tag (see ServiceSeverity).
func (k Kind) Severity() Severity {
	switch k {
	case KindSecurity, KindConfig:
		return SeverityFatal
	case KindSerialization, KindPathValidation:
		return SeverityHigh
	case KindExternalService, KindSessionPersist, KindChannel, KindIO:
		return SeverityMedium
	case KindTimeout, KindInvalidInput:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// ServiceSeverity refines severity for external-service errors: telegram and
// llm failures are treated as high severity, everything else as medium.
func ServiceSeverity(service string) Severity {
	switch service {
	case "telegram", "llm":
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Severity returns the effective severity of e, taking the service tag into
// account for external-service errors.
func (e *Error) Severity() Severity {
	if e.Kind == KindExternalService {
		return ServiceSeverity(e.Service)
	}
	return e.Kind.Severity()
}

// Recoverable reports whether e's kind allows the daemon to continue.
func (e *Error) Recoverable() bool {
	return e.Kind.Recoverable()
}

// Suggestion returns an operator-facing hint for e, or "" if none applies.
func (e *Error) Suggestion() string {
	switch e.Kind {
	case KindInvalidInput:
		switch {
		case strings.Contains(e.Message, "command"):
			return "Run 'miniclaw --help' to see available commands."
		case strings.Contains(e.Message, "argument"):
			return "Check the command syntax with '--help'."
		}
		return ""
	case KindConfig:
		return "Check your config.json file or environment variables."
	case KindPathValidation:
		return "Ensure the path is within allowed directories."
	case KindExternalService:
		switch e.Service {
		case "telegram":
			return "Check your TELEGRAM_BOT_TOKEN and network connection."
		case "llm":
			return "Verify your API key and LLM provider configuration."
		}
		return ""
	default:
		return ""
	}
}

// IsTransient reports whether an error message suggests a transient IO
// failure worth retrying (used by the session store's retry logic).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "disk") || strings.Contains(msg, "space") || strings.Contains(msg, "temporarily")
}
