package uds

import (
	"fmt"
	"time"
)

// Negative response codes
const (
	GeneralReject                           = 0x10
	ServiceNotSupported                     = 0x11
	SubFunctionNotSupported                 = 0x12
	IncorrectMessageLengthOrInvalidFormat   = 0x13
	ResponseTooLong                         = 0x14
	BusyRepeatRequest                       = 0x21
	ConditionsNotCorrect                    = 0x22
	RequestSequenceError                    = 0x24
	NoResponseFromSubnetComponent           = 0x25
	FailurePreventsExecution                = 0x26
	RequestOutOfRange                       = 0x31
	SecurityAccessDenied                    = 0x33
	InvalidKey                              = 0x35
	ExceedNumberOfAttempts                  = 0x36
	RequiredTimeDelayNotExpired             = 0x37
	UploadDownloadNotAccepted               = 0x70
	TransferDataSuspended                   = 0x71
	GeneralProgrammingFailure               = 0x72
	WrongBlockSequenceCounter               = 0x73
	RequestCorrectlyReceivedResponsePending = 0x78
	SubFunctionNotSupportedInActiveSession  = 0x7E
	ServiceNotSupportedInActiveSession      = 0x7F
)

var nrcNames = map[uint8]string{
	GeneralReject:                           "GeneralReject",
	ServiceNotSupported:                     "ServiceNotSupported",
	SubFunctionNotSupported:                 "SubFunctionNotSupported",
	IncorrectMessageLengthOrInvalidFormat:   "IncorrectMessageLengthOrInvalidFormat",
	ResponseTooLong:                         "ResponseTooLong",
	BusyRepeatRequest:                       "BusyRepeatRequest",
	ConditionsNotCorrect:                    "ConditionsNotCorrect",
	RequestSequenceError:                    "RequestSequenceError",
	NoResponseFromSubnetComponent:           "NoResponseFromSubnetComponent",
	FailurePreventsExecution:                "FailurePreventsExecutionOfRequestedAction",
	RequestOutOfRange:                       "RequestOutOfRange",
	SecurityAccessDenied:                    "SecurityAccessDenied",
	InvalidKey:                              "InvalidKey",
	ExceedNumberOfAttempts:                  "ExceedNumberOfAttempts",
	RequiredTimeDelayNotExpired:             "RequiredTimeDelayNotExpired",
	UploadDownloadNotAccepted:               "UploadDownloadNotAccepted",
	TransferDataSuspended:                   "TransferDataSuspended",
	GeneralProgrammingFailure:               "GeneralProgrammingFailure",
	WrongBlockSequenceCounter:               "WrongBlockSequenceCounter",
	RequestCorrectlyReceivedResponsePending: "RequestCorrectlyReceived-ResponsePending",
	SubFunctionNotSupportedInActiveSession:  "SubFunctionNotSupportedInActiveSession",
	ServiceNotSupportedInActiveSession:      "ServiceNotSupportedInActiveSession",
}

// NRCName returns the name of a negative response code.
func NRCName(code uint8) string {
	if name, ok := nrcNames[code]; ok {
		return name
	}
	return "Unknown"
}

// NegativeResponseError reports an explicit rejection by the ECU.
type NegativeResponseError struct {
	Service uint8
	Code    uint8
}

func (e *NegativeResponseError) Error() string {
	return fmt.Sprintf("%s service execution returned a negative response %s (0x%02X)",
		ServiceName(e.Service), NRCName(e.Code), e.Code)
}

// InvalidResponseError reports a response that could not be parsed.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return "invalid response: " + e.Reason
}

// UnexpectedResponseError reports a well-formed response that does not
// answer the request that was sent.
type UnexpectedResponseError struct {
	Reason string
}

func (e *UnexpectedResponseError) Error() string {
	return "unexpected response: " + e.Reason
}

// TimeoutError reports a request that got no final response within the
// request timeout.
type TimeoutError struct {
	Service uint8
	Elapsed time.Duration
	Pending int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s request timed out after %s (%d response pending answers)",
		ServiceName(e.Service), e.Elapsed.Round(time.Millisecond), e.Pending)
}
