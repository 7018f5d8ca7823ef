package doip

import "fmt"

var routingCodeNames = map[uint8]string{
	RoutingDeniedUnknownSource:         "unknown source address",
	RoutingDeniedAllSocketsRegistered:  "all TCP sockets registered and active",
	RoutingDeniedDifferentSource:       "socket already bound to a different source address",
	RoutingDeniedSourceAlreadyActive:   "source address already active on another socket",
	RoutingDeniedMissingAuthentication: "missing authentication",
	RoutingDeniedRejectedConfirmation:  "rejected confirmation",
	RoutingDeniedUnsupportedType:       "unsupported routing activation type",
	RoutingSuccess:                     "routing successfully activated",
	RoutingSuccessConfirmationRequired: "confirmation required",
}

var genericNackNames = map[uint8]string{
	GenericNackIncorrectPattern:     "incorrect pattern format",
	GenericNackUnknownPayloadType:   "unknown payload type",
	GenericNackMessageTooLarge:      "message too large",
	0x03:                            "out of memory",
	GenericNackInvalidPayloadLength: "invalid payload length",
}

var diagnosticNackNames = map[uint8]string{
	DiagnosticNackInvalidSourceAddress: "invalid source address",
	DiagnosticNackUnknownTargetAddress: "unknown target address",
	0x04:                               "diagnostic message too large",
	0x05:                               "out of memory",
	0x06:                               "target unreachable",
	0x07:                               "unknown network",
	0x08:                               "transport protocol error",
}

func codeName(names map[uint8]string, code uint8) string {
	if name, ok := names[code]; ok {
		return name
	}
	return "reserved"
}

// RoutingActivationError is returned when the entity refuses routing activation.
type RoutingActivationError struct {
	Code uint8
}

func (e *RoutingActivationError) Error() string {
	return fmt.Sprintf("routing activation denied: %s (0x%02X)", codeName(routingCodeNames, e.Code), e.Code)
}

// DiagnosticNackError is returned when the entity rejects a diagnostic message.
type DiagnosticNackError struct {
	Code uint8
}

func (e *DiagnosticNackError) Error() string {
	return fmt.Sprintf("diagnostic message rejected: %s (0x%02X)", codeName(diagnosticNackNames, e.Code), e.Code)
}

// GenericNackError is returned when the entity rejects a frame header.
type GenericNackError struct {
	Code uint8
}

func (e *GenericNackError) Error() string {
	return fmt.Sprintf("generic header NACK: %s (0x%02X)", codeName(genericNackNames, e.Code), e.Code)
}
