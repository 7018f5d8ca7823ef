package doip

// TCP transport with routing activation for a single DoIP entity

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/tturner/udsinfo/internal/logging"
)

const (
	defaultConnectTimeout = 5 * time.Second
	activationTimeout     = 2 * time.Second
	ackTimeout            = 2 * time.Second
)

// Tap observes every frame crossing the transport.
type Tap interface {
	Connected(local, remote net.Addr)
	Outbound(frame []byte)
	Inbound(frame []byte)
}

// Options configures a DoIP transport.
type Options struct {
	Address         string
	TCPPort         int
	ProtocolVersion uint8
	SourceAddress   uint16 // tester logical address
	TargetAddress   uint16 // ECU logical address
	ActivationType  uint8
	ConnectTimeout  time.Duration
	Tap             Tap
	Logger          *logging.Logger
}

func (o *Options) applyDefaults() {
	if o.TCPPort == 0 {
		o.TCPPort = DefaultTCPPort
	}
	if o.ProtocolVersion == 0 {
		o.ProtocolVersion = DefaultProtocolVersion
	}
	if o.SourceAddress == 0 {
		o.SourceAddress = DefaultSourceAddress
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
}

// Transport is an activated DoIP TCP connection.
type Transport struct {
	opts          Options
	mu            sync.Mutex
	conn          net.Conn
	entityAddress uint16
	pending       [][]byte
}

// Open dials the entity and performs routing activation.
func Open(ctx context.Context, opts Options) (*Transport, error) {
	opts.applyDefaults()
	if opts.Address == "" {
		return nil, fmt.Errorf("IP address cannot be empty")
	}

	addr := net.JoinHostPort(opts.Address, strconv.Itoa(opts.TCPPort))
	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial TCP: %w", err)
	}

	t := &Transport{opts: opts, conn: conn}
	if opts.Tap != nil {
		opts.Tap.Connected(conn.LocalAddr(), conn.RemoteAddr())
	}

	if err := t.activate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *Transport) activate(ctx context.Context) error {
	frame := BuildRoutingActivation(t.opts.ProtocolVersion, t.opts.SourceAddress, t.opts.ActivationType)
	if err := t.writeFrame(ctx, frame); err != nil {
		return fmt.Errorf("send routing activation: %w", err)
	}

	for {
		msg, err := t.readFrame(ctx, activationTimeout)
		if err != nil {
			return fmt.Errorf("read routing activation response: %w", err)
		}
		switch msg.PayloadType {
		case PayloadRoutingActivationResponse:
			resp, err := ParseRoutingActivationResponse(msg.Payload)
			if err != nil {
				return err
			}
			if resp.Code != RoutingSuccess {
				return &RoutingActivationError{Code: resp.Code}
			}
			t.entityAddress = resp.EntityAddress
			t.opts.Logger.Verbose("Routing activated: tester 0x%04X, entity 0x%04X", resp.TesterAddress, resp.EntityAddress)
			return nil
		case PayloadAliveCheckRequest:
			if err := t.answerAliveCheck(ctx); err != nil {
				return err
			}
		case PayloadGenericNack:
			return genericNack(msg.Payload)
		default:
			return fmt.Errorf("unexpected payload type 0x%04X during routing activation", msg.PayloadType)
		}
	}
}

// EntityAddress returns the logical address reported during routing activation.
func (t *Transport) EntityAddress() uint16 {
	return t.entityAddress
}

// SendDiagnostic sends UDS bytes to the target address and waits for the
// diagnostic message acknowledgement.
func (t *Transport) SendDiagnostic(ctx context.Context, userData []byte) error {
	t.opts.Logger.LogHex("TX UDS", userData)
	frame := BuildDiagnosticMessage(t.opts.ProtocolVersion, t.opts.SourceAddress, t.opts.TargetAddress, userData)
	if err := t.writeFrame(ctx, frame); err != nil {
		return fmt.Errorf("send diagnostic message: %w", err)
	}

	for {
		msg, err := t.readFrame(ctx, ackTimeout)
		if err != nil {
			return fmt.Errorf("read diagnostic acknowledgement: %w", err)
		}
		switch msg.PayloadType {
		case PayloadDiagnosticAck:
			return nil
		case PayloadDiagnosticNack:
			ack, err := ParseDiagnosticAck(msg.Payload)
			if err != nil {
				return err
			}
			return &DiagnosticNackError{Code: ack.Code}
		case PayloadDiagnosticMessage:
			// Some entities answer before acknowledging.
			if data, ok, err := t.acceptDiagnostic(msg); err != nil {
				return err
			} else if ok {
				t.pending = append(t.pending, data)
			}
			return nil
		case PayloadAliveCheckRequest:
			if err := t.answerAliveCheck(ctx); err != nil {
				return err
			}
		case PayloadGenericNack:
			return genericNack(msg.Payload)
		default:
			t.opts.Logger.Debug("Ignoring payload type 0x%04X while waiting for ACK", msg.PayloadType)
		}
	}
}

// ReceiveDiagnostic returns the next diagnostic message user data sent by
// the target address.
func (t *Transport) ReceiveDiagnostic(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if len(t.pending) > 0 {
		data := t.pending[0]
		t.pending = t.pending[1:]
		return data, nil
	}

	for {
		msg, err := t.readFrame(ctx, timeout)
		if err != nil {
			return nil, fmt.Errorf("read diagnostic message: %w", err)
		}
		switch msg.PayloadType {
		case PayloadDiagnosticMessage:
			data, ok, err := t.acceptDiagnostic(msg)
			if err != nil {
				return nil, err
			}
			if ok {
				return data, nil
			}
		case PayloadAliveCheckRequest:
			if err := t.answerAliveCheck(ctx); err != nil {
				return nil, err
			}
		case PayloadGenericNack:
			return nil, genericNack(msg.Payload)
		default:
			t.opts.Logger.Debug("Ignoring payload type 0x%04X while waiting for response", msg.PayloadType)
		}
	}
}

func (t *Transport) acceptDiagnostic(msg Message) ([]byte, bool, error) {
	diag, err := ParseDiagnosticMessage(msg.Payload)
	if err != nil {
		return nil, false, err
	}
	if diag.SourceAddress != t.opts.TargetAddress {
		t.opts.Logger.Debug("Ignoring diagnostic message from 0x%04X", diag.SourceAddress)
		return nil, false, nil
	}
	t.opts.Logger.LogHex("RX UDS", diag.UserData)
	data := make([]byte, len(diag.UserData))
	copy(data, diag.UserData)
	return data, true, nil
}

func (t *Transport) answerAliveCheck(ctx context.Context) error {
	t.opts.Logger.Debug("Answering alive check")
	return t.writeFrame(ctx, BuildAliveCheckResponse(t.opts.ProtocolVersion, t.opts.SourceAddress))
}

// Close closes the TCP connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.pending = nil
	return err
}

func (t *Transport) writeFrame(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return fmt.Errorf("not connected")
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := t.conn.Write(frame); err != nil {
		return err
	}
	if t.opts.Tap != nil {
		t.opts.Tap.Outbound(frame)
	}
	return nil
}

func (t *Transport) readFrame(ctx context.Context, timeout time.Duration) (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return Message{}, fmt.Errorf("not connected")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return Message{}, fmt.Errorf("set read deadline: %w", err)
	}

	frame, err := ReadFrame(t.conn)
	if err != nil {
		return Message{}, err
	}
	if t.opts.Tap != nil {
		t.opts.Tap.Inbound(frame)
	}
	return Decode(frame)
}

func genericNack(payload []byte) error {
	if len(payload) < 1 {
		return fmt.Errorf("generic header NACK without code")
	}
	return &GenericNackError{Code: payload[0]}
}
