package uds

// UDS (ISO 14229) service identifiers

const (
	DiagnosticSessionControl = 0x10
	ECUReset                 = 0x11
	ClearDiagnosticInfo      = 0x14
	ReadDTCInformation       = 0x19
	ReadDataByIdentifier     = 0x22
	ReadMemoryByAddress      = 0x23
	SecurityAccess           = 0x27
	CommunicationControl     = 0x28
	WriteDataByIdentifier    = 0x2E
	RoutineControl           = 0x31
	TesterPresent            = 0x3E
	ControlDTCSetting        = 0x85

	NegativeResponse = 0x7F

	// positiveResponseOffset is added to a request SID in a positive response.
	positiveResponseOffset = 0x40
)

var serviceNames = map[uint8]string{
	DiagnosticSessionControl: "DiagnosticSessionControl",
	ECUReset:                 "ECUReset",
	ClearDiagnosticInfo:      "ClearDiagnosticInformation",
	ReadDTCInformation:       "ReadDTCInformation",
	ReadDataByIdentifier:     "ReadDataByIdentifier",
	ReadMemoryByAddress:      "ReadMemoryByAddress",
	SecurityAccess:           "SecurityAccess",
	CommunicationControl:     "CommunicationControl",
	WriteDataByIdentifier:    "WriteDataByIdentifier",
	RoutineControl:           "RoutineControl",
	TesterPresent:            "TesterPresent",
	ControlDTCSetting:        "ControlDTCSetting",
}

// ServiceName returns the name of a service ID.
func ServiceName(sid uint8) string {
	if name, ok := serviceNames[sid]; ok {
		return name
	}
	return "Service"
}
