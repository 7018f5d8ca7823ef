package doip

// Diagnostics over IP (ISO 13400-2) message framing

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderLength is the size of the DoIP generic header.
	HeaderLength = 8

	DefaultTCPPort                = 13400
	DefaultProtocolVersion uint8  = 0x02
	DefaultSourceAddress   uint16 = 0x0E00

	// MaxPayloadLength bounds the payload length accepted from a peer.
	MaxPayloadLength = 4 << 20
)

// DoIP payload types
const (
	PayloadGenericNack               uint16 = 0x0000
	PayloadRoutingActivationRequest  uint16 = 0x0005
	PayloadRoutingActivationResponse uint16 = 0x0006
	PayloadAliveCheckRequest         uint16 = 0x0007
	PayloadAliveCheckResponse        uint16 = 0x0008
	PayloadDiagnosticMessage         uint16 = 0x8001
	PayloadDiagnosticAck             uint16 = 0x8002
	PayloadDiagnosticNack            uint16 = 0x8003
)

// Routing activation response codes
const (
	RoutingDeniedUnknownSource         uint8 = 0x00
	RoutingDeniedAllSocketsRegistered  uint8 = 0x01
	RoutingDeniedDifferentSource       uint8 = 0x02
	RoutingDeniedSourceAlreadyActive   uint8 = 0x03
	RoutingDeniedMissingAuthentication uint8 = 0x04
	RoutingDeniedRejectedConfirmation  uint8 = 0x05
	RoutingDeniedUnsupportedType       uint8 = 0x06
	RoutingSuccess                     uint8 = 0x10
	RoutingSuccessConfirmationRequired uint8 = 0x11

	ActivationTypeDefault uint8 = 0x00
)

// Acknowledgement codes
const (
	DiagnosticAckConfirm               uint8 = 0x00
	DiagnosticNackInvalidSourceAddress uint8 = 0x02
	DiagnosticNackUnknownTargetAddress uint8 = 0x03

	GenericNackIncorrectPattern     uint8 = 0x00
	GenericNackUnknownPayloadType   uint8 = 0x01
	GenericNackMessageTooLarge      uint8 = 0x02
	GenericNackInvalidPayloadLength uint8 = 0x04
)

// Message is a single DoIP frame.
type Message struct {
	Version     uint8
	PayloadType uint16
	Payload     []byte
}

// Encode encodes a DoIP frame
func Encode(msg Message) []byte {
	header := make([]byte, HeaderLength, HeaderLength+len(msg.Payload))

	header[0] = msg.Version
	header[1] = ^msg.Version
	binary.BigEndian.PutUint16(header[2:4], msg.PayloadType)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(msg.Payload)))

	return append(header, msg.Payload...)
}

// DecodeHeader validates the generic header and returns the payload type and length.
func DecodeHeader(header []byte) (version uint8, payloadType uint16, length uint32, err error) {
	if len(header) < HeaderLength {
		return 0, 0, 0, fmt.Errorf("header too short: %d bytes (minimum %d)", len(header), HeaderLength)
	}
	version = header[0]
	if header[1] != ^version {
		return 0, 0, 0, fmt.Errorf("invalid protocol version pattern: 0x%02X/0x%02X", header[0], header[1])
	}
	payloadType = binary.BigEndian.Uint16(header[2:4])
	length = binary.BigEndian.Uint32(header[4:8])
	if length > MaxPayloadLength {
		return 0, 0, 0, fmt.Errorf("payload length %d exceeds maximum %d", length, MaxPayloadLength)
	}
	return version, payloadType, length, nil
}

// Decode decodes a complete DoIP frame
func Decode(data []byte) (Message, error) {
	version, payloadType, length, err := DecodeHeader(data)
	if err != nil {
		return Message{}, err
	}
	if len(data)-HeaderLength < int(length) {
		return Message{}, fmt.Errorf("incomplete payload: %d bytes, expected %d", len(data)-HeaderLength, length)
	}

	msg := Message{Version: version, PayloadType: payloadType}
	if length > 0 {
		msg.Payload = data[HeaderLength : HeaderLength+int(length)]
	}
	return msg, nil
}

// ReadFrame reads one complete frame (header and payload) from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderLength)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	_, _, length, err := DecodeHeader(header)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, HeaderLength+int(length))
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[HeaderLength:]); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return frame, nil
}

// RoutingActivationRequest asks the DoIP entity to route diagnostics for a tester.
type RoutingActivationRequest struct {
	SourceAddress  uint16
	ActivationType uint8
}

// Marshal encodes the request payload (source, type, 4 reserved bytes).
func (r RoutingActivationRequest) Marshal() []byte {
	var data []byte
	data = binary.BigEndian.AppendUint16(data, r.SourceAddress)
	data = append(data, r.ActivationType)
	data = binary.BigEndian.AppendUint32(data, 0)
	return data
}

// ParseRoutingActivationRequest parses a routing activation request payload.
func ParseRoutingActivationRequest(payload []byte) (RoutingActivationRequest, error) {
	if len(payload) < 7 {
		return RoutingActivationRequest{}, fmt.Errorf("routing activation request too short: %d bytes", len(payload))
	}
	return RoutingActivationRequest{
		SourceAddress:  binary.BigEndian.Uint16(payload[0:2]),
		ActivationType: payload[2],
	}, nil
}

// RoutingActivationResponse is the entity's answer to a routing activation request.
type RoutingActivationResponse struct {
	TesterAddress uint16
	EntityAddress uint16
	Code          uint8
}

func (r RoutingActivationResponse) Marshal() []byte {
	var data []byte
	data = binary.BigEndian.AppendUint16(data, r.TesterAddress)
	data = binary.BigEndian.AppendUint16(data, r.EntityAddress)
	data = append(data, r.Code)
	data = binary.BigEndian.AppendUint32(data, 0)
	return data
}

// ParseRoutingActivationResponse parses a routing activation response payload.
func ParseRoutingActivationResponse(payload []byte) (RoutingActivationResponse, error) {
	if len(payload) < 9 {
		return RoutingActivationResponse{}, fmt.Errorf("routing activation response too short: %d bytes (minimum 9)", len(payload))
	}
	return RoutingActivationResponse{
		TesterAddress: binary.BigEndian.Uint16(payload[0:2]),
		EntityAddress: binary.BigEndian.Uint16(payload[2:4]),
		Code:          payload[4],
	}, nil
}

// DiagnosticMessage carries UDS bytes between two logical addresses.
type DiagnosticMessage struct {
	SourceAddress uint16
	TargetAddress uint16
	UserData      []byte
}

func (d DiagnosticMessage) Marshal() []byte {
	data := make([]byte, 4, 4+len(d.UserData))
	binary.BigEndian.PutUint16(data[0:2], d.SourceAddress)
	binary.BigEndian.PutUint16(data[2:4], d.TargetAddress)
	return append(data, d.UserData...)
}

// ParseDiagnosticMessage parses a diagnostic message payload.
func ParseDiagnosticMessage(payload []byte) (DiagnosticMessage, error) {
	if len(payload) < 4 {
		return DiagnosticMessage{}, fmt.Errorf("diagnostic message too short: %d bytes (minimum 4)", len(payload))
	}
	return DiagnosticMessage{
		SourceAddress: binary.BigEndian.Uint16(payload[0:2]),
		TargetAddress: binary.BigEndian.Uint16(payload[2:4]),
		UserData:      payload[4:],
	}, nil
}

// DiagnosticAck is the positive (0x8002) or negative (0x8003) acknowledgement
// of a diagnostic message.
type DiagnosticAck struct {
	SourceAddress uint16
	TargetAddress uint16
	Code          uint8
	Previous      []byte
}

func (a DiagnosticAck) Marshal() []byte {
	data := make([]byte, 5, 5+len(a.Previous))
	binary.BigEndian.PutUint16(data[0:2], a.SourceAddress)
	binary.BigEndian.PutUint16(data[2:4], a.TargetAddress)
	data[4] = a.Code
	return append(data, a.Previous...)
}

// ParseDiagnosticAck parses a diagnostic ACK or NACK payload.
func ParseDiagnosticAck(payload []byte) (DiagnosticAck, error) {
	if len(payload) < 5 {
		return DiagnosticAck{}, fmt.Errorf("diagnostic acknowledgement too short: %d bytes (minimum 5)", len(payload))
	}
	return DiagnosticAck{
		SourceAddress: binary.BigEndian.Uint16(payload[0:2]),
		TargetAddress: binary.BigEndian.Uint16(payload[2:4]),
		Code:          payload[4],
		Previous:      payload[5:],
	}, nil
}

// BuildRoutingActivation builds a routing activation request frame
func BuildRoutingActivation(version uint8, sourceAddress uint16, activationType uint8) []byte {
	req := RoutingActivationRequest{SourceAddress: sourceAddress, ActivationType: activationType}
	return Encode(Message{Version: version, PayloadType: PayloadRoutingActivationRequest, Payload: req.Marshal()})
}

// BuildDiagnosticMessage builds a diagnostic message frame
func BuildDiagnosticMessage(version uint8, sourceAddress, targetAddress uint16, userData []byte) []byte {
	msg := DiagnosticMessage{SourceAddress: sourceAddress, TargetAddress: targetAddress, UserData: userData}
	return Encode(Message{Version: version, PayloadType: PayloadDiagnosticMessage, Payload: msg.Marshal()})
}

// BuildAliveCheckResponse builds the answer to an alive check request
func BuildAliveCheckResponse(version uint8, sourceAddress uint16) []byte {
	payload := binary.BigEndian.AppendUint16(nil, sourceAddress)
	return Encode(Message{Version: version, PayloadType: PayloadAliveCheckResponse, Payload: payload})
}

// BuildGenericNack builds a generic header negative acknowledgement frame
func BuildGenericNack(version uint8, code uint8) []byte {
	return Encode(Message{Version: version, PayloadType: PayloadGenericNack, Payload: []byte{code}})
}
