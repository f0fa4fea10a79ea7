package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested artifact or registry entry doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrParse is returned when an artifact or registry file cannot be decoded
	ErrParse = errors.New("parse error")

	// ErrDeployment is returned when a deploy or upgrade transaction fails
	ErrDeployment = errors.New("deployment failed")

	// ErrTimeout is returned when a transaction is not confirmed in time
	ErrTimeout = errors.New("confirmation timeout")

	// ErrConfig is returned for invalid or missing configuration
	ErrConfig = errors.New("invalid configuration")

	// ErrTransactionReverted is returned when a mined transaction has a failed status
	ErrTransactionReverted = errors.New("transaction reverted")
)

// NotFoundError describes a missing artifact or proxy record.
type NotFoundError struct {
	Kind        string // "artifact" or "proxy"
	Name        string
	Path        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.Kind, e.Name)
	if e.Path != "" {
		msg += fmt.Sprintf(" in %s", e.Path)
	}
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ParseError is returned for malformed artifacts and registry files.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("failed to parse %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// DeploymentError reports a failed stage of a deploy or upgrade.
type DeploymentError struct {
	ContractName string
	Stage        string
	TxHash       string
	Reason       string
	Err          error
}

func (e *DeploymentError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s failed", e.ContractName, e.Stage)
	if e.TxHash != "" {
		fmt.Fprintf(&b, " (tx %s)", e.TxHash)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

func (e *DeploymentError) Is(target error) bool {
	return target == ErrDeployment
}

// TimeoutError is returned when a receipt does not arrive within the configured window.
type TimeoutError struct {
	TxHash  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed after %s", e.TxHash, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ConfigError reports an invalid or missing setting.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
