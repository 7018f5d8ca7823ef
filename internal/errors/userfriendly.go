package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tturner/udsinfo/internal/doip"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapConnectError wraps an exhausted connection retry budget
func WrapConnectError(err error, ip string, port int, attempts int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to connect to DoIP entity at %s:%d after %d attempt(s)", ip, port, attempts),
		Reason:  extractNetworkReason(err),
		Hint:    "The vehicle gateway may be asleep, or the tester may be on the wrong network segment",
		Try:     fmt.Sprintf("udsinfo read --ip %s --port %d --attempts 10 --delay 5s", ip, port),
		Err:     err,
	}
}

// WrapClientOpenError wraps a failure to open the UDS client on a connected transport
func WrapClientOpenError(err error, ip string, logicalAddress uint16) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Connected to %s but could not open a UDS client for ECU 0x%04X", ip, logicalAddress),
		Reason:  extractUDSReason(err),
		Hint:    "Check the ECU logical address and the UDS timeouts in the configuration",
		Try:     fmt.Sprintf("udsinfo read --ip %s --la 0x%04X --p2 2s", ip, logicalAddress),
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Generate a commented default file and compare",
		Try:     "udsinfo config init --output udsinfo.yaml",
		Err:     err,
	}
}

func extractNetworkReason(err error) string {
	var routing *doip.RoutingActivationError
	if errors.As(err, &routing) {
		return "Routing activation was denied by the DoIP entity"
	}

	errStr := err.Error()

	// Common network error patterns
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timeout - gateway may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - nothing is listening on the DoIP port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "No route to host - network routing issue or gateway unreachable"
	}
	if strings.Contains(errStr, "connection reset") {
		return "Connection reset - gateway closed the connection unexpectedly"
	}
	if strings.Contains(errStr, "context canceled") {
		return "Interrupted before a connection was established"
	}

	return "Network communication failed"
}

func extractUDSReason(err error) string {
	var nack *doip.DiagnosticNackError
	if errors.As(err, &nack) {
		return "The gateway rejected the diagnostic message"
	}

	errStr := err.Error()

	if strings.Contains(errStr, "negative response") {
		return "ECU returned a negative response"
	}
	if strings.Contains(errStr, "timeout") {
		return "ECU did not respond within the P2 timeout"
	}

	return "UDS client error occurred"
}
