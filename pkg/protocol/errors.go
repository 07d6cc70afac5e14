package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid action config")

// ConfigError reports an action config that failed validation.
type ConfigError struct {
	ActionType string
	Missing    []string
	Problems   []string
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required keys: "+strings.Join(e.Missing, ", "))
	}

	if len(e.Problems) > 0 {
		parts = append(parts, strings.Join(e.Problems, "; "))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%s: invalid config", e.ActionType)
	}

	return fmt.Sprintf("%s: invalid config: %s", e.ActionType, strings.Join(parts, "; "))
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// TransportError reports an outbound request that produced no response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport error: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err contains a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError

	return errors.As(err, &te)
}
