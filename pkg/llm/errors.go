package llm

import (
	"errors"
	"fmt"
)

// Error kinds as they appear in generation logs.
const (
	KindConfiguration    = "ConfigurationError"
	KindGenerationFailed = "GenerationFailedError"
	KindRemoteConnection = "RemoteConnectionError"
)

// ConfigurationError reports bad or missing static setup. It is fatal for the
// backend that raised it and never retried.
type ConfigurationError struct {
	Message string
	Cause   error
}

func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// GenerationFailedError wraps any runtime failure that happened while a backend
// was generating. Callers may retry it under their own policy.
type GenerationFailedError struct {
	Cause error
}

func NewGenerationFailedError(cause error) *GenerationFailedError {
	return &GenerationFailedError{Cause: cause}
}

func (e *GenerationFailedError) Error() string {
	if e.Cause == nil {
		return "generation failed"
	}
	return "generation failed: " + e.Cause.Error()
}

func (e *GenerationFailedError) Unwrap() error { return e.Cause }

// RemoteConnectionError is a transient transport failure (connection refused,
// DNS, 5xx). It is a kind of generation failure that is worth retrying.
type RemoteConnectionError struct {
	Message string
	Cause   error
}

func NewRemoteConnectionError(message string, cause error) *RemoteConnectionError {
	return &RemoteConnectionError{Message: message, Cause: cause}
}

func (e *RemoteConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("remote connection error: %s: %v", e.Message, e.Cause)
	}
	return "remote connection error: " + e.Message
}

func (e *RemoteConnectionError) Unwrap() error { return e.Cause }

// Normalize maps any error onto the common taxonomy. Configuration and
// generation errors pass through, remote connection errors are wrapped as a
// generation failure, everything else becomes a GenerationFailedError.
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}

	var genErr *GenerationFailedError
	if errors.As(err, &genErr) {
		return genErr
	}

	return NewGenerationFailedError(err)
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsRetryable reports whether a caller-level retry policy may reissue the
// request that produced err.
func IsRetryable(err error) bool {
	var remoteErr *RemoteConnectionError
	if errors.As(err, &remoteErr) {
		return true
	}
	return !IsConfigurationError(err) && err != nil
}

// ErrorKind names the taxonomy entry of err and the message that should be
// logged for it. For a GenerationFailedError the kind of its cause is used so
// logs show what actually went wrong.
func ErrorKind(err error) (kind string, message string) {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return KindConfiguration, cfgErr.Error()
	}

	var remoteErr *RemoteConnectionError
	if errors.As(err, &remoteErr) {
		return KindRemoteConnection, remoteErr.Error()
	}

	var genErr *GenerationFailedError
	if errors.As(err, &genErr) {
		if genErr.Cause == nil {
			return KindGenerationFailed, genErr.Error()
		}
		return KindGenerationFailed, genErr.Cause.Error()
	}

	return KindGenerationFailed, err.Error()
}
