package config

import (
	"fmt"
	"strings"
)

// ConfigError locates a problem in the driver configuration. Messages read
// "[axis x] step_delay_us: ..." so the offending line is easy to find.
type ConfigError struct {
	Section string
	Option  string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	var sb strings.Builder
	sb.WriteString("config: ")
	if e.Section != "" {
		fmt.Fprintf(&sb, "[%s] ", e.Section)
	}
	if e.Option != "" {
		fmt.Fprintf(&sb, "%s: ", e.Option)
	}
	sb.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a ConfigError; section and option may be empty.
func NewConfigError(section, option, message string) *ConfigError {
	return &ConfigError{Section: section, Option: option, Message: message}
}

// ErrMissingOption reports a required option that is absent.
func ErrMissingOption(section, option string) *ConfigError {
	return NewConfigError(section, option, "required")
}

// ErrMissingSection reports an absent section.
func ErrMissingSection(section string) *ConfigError {
	return NewConfigError(section, "", "no such section")
}

// ErrInvalidValue reports a value that does not parse as expected.
func ErrInvalidValue(section, option, value, expected string) *ConfigError {
	return NewConfigError(section, option, fmt.Sprintf("%q is not a valid %s", value, expected))
}

// ErrOutOfRange reports a parsed value outside its bounds.
func ErrOutOfRange(section, option string, value float64, constraint string) *ConfigError {
	return NewConfigError(section, option, fmt.Sprintf("%v %s", value, constraint))
}

// ErrInvalidChoice reports a value outside the allowed set.
func ErrInvalidChoice(section, option, value string, choices []string) *ConfigError {
	return NewConfigError(section, option, fmt.Sprintf("%q is not one of %s", value, strings.Join(choices, ", ")))
}
