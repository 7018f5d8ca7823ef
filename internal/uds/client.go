package uds

// Request/response client on top of a diagnostic message transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	DefaultP2Timeout      = 1 * time.Second
	DefaultP2StarTimeout  = 5 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// Conn moves UDS bytes to and from the ECU.
type Conn interface {
	SendDiagnostic(ctx context.Context, payload []byte) error
	ReceiveDiagnostic(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// Codec decodes the payload of a data identifier.
type Codec interface {
	Decode(payload []byte) string
}

// Config controls client timing and data identifier decoding.
type Config struct {
	P2Timeout     time.Duration
	P2StarTimeout time.Duration
	// RequestTimeout bounds one request including all response-pending
	// answers. Zero means DefaultRequestTimeout.
	RequestTimeout  time.Duration
	DataIdentifiers map[uint16]Codec
	// ProbeOnOpen sends TesterPresent during Open and requires a positive answer.
	ProbeOnOpen bool
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		P2Timeout:      DefaultP2Timeout,
		P2StarTimeout:  DefaultP2StarTimeout,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Request is a single UDS request.
type Request struct {
	Service uint8
	Data    []byte
}

// Bytes returns the request as sent on the wire.
func (r Request) Bytes() []byte {
	out := make([]byte, 0, 1+len(r.Data))
	out = append(out, r.Service)
	return append(out, r.Data...)
}

// NewReadDataByIdentifier builds a ReadDataByIdentifier request for one DID.
func NewReadDataByIdentifier(did uint16) Request {
	return Request{Service: ReadDataByIdentifier, Data: binary.BigEndian.AppendUint16(nil, did)}
}

// Response is a parsed UDS response. Service is the request SID the
// response answers; for a positive response Data excludes the response SID.
type Response struct {
	Service  uint8
	Positive bool
	Code     uint8
	Data     []byte
}

// ParseResponse parses raw response bytes.
func ParseResponse(data []byte) (Response, error) {
	if len(data) == 0 {
		return Response{}, &InvalidResponseError{Reason: "empty response"}
	}
	if data[0] == NegativeResponse {
		if len(data) < 3 {
			return Response{}, &InvalidResponseError{Reason: fmt.Sprintf("incomplete negative response: % X", data)}
		}
		return Response{Service: data[1], Code: data[2]}, nil
	}
	if data[0] < positiveResponseOffset {
		return Response{}, &InvalidResponseError{Reason: fmt.Sprintf("0x%02X is not a response service ID", data[0])}
	}
	return Response{Service: data[0] - positiveResponseOffset, Positive: true, Data: data[1:]}, nil
}

// Client sends UDS requests and validates the answers.
type Client struct {
	conn   Conn
	config Config
	open   bool
}

// NewClient creates a new UDS client
func NewClient(conn Conn, config Config) *Client {
	return &Client{conn: conn, config: config}
}

// Open validates the configuration and marks the client ready.
func (c *Client) Open(ctx context.Context) error {
	if c.open {
		return fmt.Errorf("client already open")
	}
	if c.conn == nil {
		return fmt.Errorf("no connection")
	}
	if c.config.P2Timeout <= 0 || c.config.P2StarTimeout <= 0 {
		return fmt.Errorf("invalid timeouts: P2=%s P2*=%s", c.config.P2Timeout, c.config.P2StarTimeout)
	}
	if c.config.RequestTimeout < 0 {
		return fmt.Errorf("invalid request timeout: %s", c.config.RequestTimeout)
	}
	if c.config.RequestTimeout == 0 {
		c.config.RequestTimeout = DefaultRequestTimeout
	}
	c.open = true

	if c.config.ProbeOnOpen {
		if _, err := c.Send(ctx, Request{Service: TesterPresent, Data: []byte{0x00}}); err != nil {
			c.open = false
			return fmt.Errorf("tester present: %w", err)
		}
	}
	return nil
}

// Close marks the client closed. The underlying connection is owned by the caller.
func (c *Client) Close() error {
	c.open = false
	return nil
}

// Send sends a request and waits for its final response. Response-pending
// answers extend the wait to P2*, up to RequestTimeout for the whole request.
// A negative response is returned together with a *NegativeResponseError.
func (c *Client) Send(ctx context.Context, req Request) (Response, error) {
	if !c.open {
		return Response{}, fmt.Errorf("client not open")
	}
	if err := c.conn.SendDiagnostic(ctx, req.Bytes()); err != nil {
		return Response{}, err
	}

	start := time.Now()
	deadline := start.Add(c.config.RequestTimeout)
	timeout := c.config.P2Timeout
	pending := 0
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Response{}, &TimeoutError{Service: req.Service, Elapsed: time.Since(start), Pending: pending}
		}
		data, err := c.conn.ReceiveDiagnostic(ctx, min(timeout, remaining))
		if err != nil {
			return Response{}, err
		}
		resp, err := ParseResponse(data)
		if err != nil {
			return Response{}, err
		}
		if resp.Service != req.Service {
			return resp, &UnexpectedResponseError{
				Reason: fmt.Sprintf("response for service 0x%02X while waiting for 0x%02X", resp.Service, req.Service),
			}
		}
		if resp.Positive {
			return resp, nil
		}
		if resp.Code == RequestCorrectlyReceivedResponsePending {
			timeout = c.config.P2StarTimeout
			pending++
			continue
		}
		return resp, &NegativeResponseError{Service: resp.Service, Code: resp.Code}
	}
}

// ReadDataByIdentifier reads one DID and decodes it with the configured codec.
func (c *Client) ReadDataByIdentifier(ctx context.Context, did uint16) (string, error) {
	codec, ok := c.config.DataIdentifiers[did]
	if !ok {
		return "", fmt.Errorf("no codec configured for DID 0x%04X", did)
	}
	resp, err := c.Send(ctx, NewReadDataByIdentifier(did))
	if err != nil {
		return "", err
	}
	payload, err := StripDataIdentifier(resp, did)
	if err != nil {
		return "", err
	}
	return codec.Decode(payload), nil
}

// StripDataIdentifier checks the DID echo of a positive ReadDataByIdentifier
// response and returns the record that follows it.
func StripDataIdentifier(resp Response, did uint16) ([]byte, error) {
	if len(resp.Data) < 2 {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("response too short for data identifier echo: %d bytes", len(resp.Data))}
	}
	if echo := binary.BigEndian.Uint16(resp.Data[:2]); echo != did {
		return nil, &UnexpectedResponseError{Reason: fmt.Sprintf("data identifier echo 0x%04X does not match 0x%04X", echo, did)}
	}
	return resp.Data[2:], nil
}
