package ecusim

// DoIP ECU simulator answering ReadDataByIdentifier from a fixed table

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tturner/udsinfo/internal/config"
	"github.com/tturner/udsinfo/internal/doip"
	"github.com/tturner/udsinfo/internal/logging"
)

// Response is the configured answer for one DID.
type Response struct {
	Data []byte
	NRC  uint8 // non-zero answers with a negative response
}

// Config describes the simulated entity.
type Config struct {
	Listen          string
	LogicalAddress  uint16
	ProtocolVersion uint8
	ResponsePending int // NRC 0x78 frames sent before each final answer
	DataIdentifiers map[uint16]Response
}

// FromConfig converts the simulator section of the config file.
func FromConfig(sim config.SimulatorConfig) (Config, error) {
	cfg := Config{
		Listen:          sim.Listen,
		LogicalAddress:  sim.LogicalAddress,
		ProtocolVersion: doip.DefaultProtocolVersion,
		ResponsePending: sim.ResponsePending,
		DataIdentifiers: make(map[uint16]Response, len(sim.DataIdentifiers)),
	}
	for _, d := range sim.DataIdentifiers {
		if d.NRC != 0 {
			cfg.DataIdentifiers[d.DID] = Response{NRC: d.NRC}
			continue
		}
		value, err := d.Value()
		if err != nil {
			return Config{}, fmt.Errorf("DID 0x%04X: %w", d.DID, err)
		}
		cfg.DataIdentifiers[d.DID] = Response{Data: value}
	}
	return cfg, nil
}

// Server is a DoIP entity fronting one simulated ECU.
type Server struct {
	config Config
	logger *logging.Logger

	listener *net.TCPListener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	requests atomic.Int64
}

// NewServer creates a simulator; Start binds the listener.
func NewServer(cfg Config, logger *logging.Logger) *Server {
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = doip.DefaultProtocolVersion
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Start starts the server.
func (s *Server) Start() error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("resolve TCP address: %w", err)
	}
	s.listener, err = net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen TCP: %w", err)
	}
	s.logger.Info("DoIP simulator listening on %s (LA 0x%04X, %d DIDs)",
		s.listener.Addr(), s.config.LogicalAddress, len(s.config.DataIdentifiers))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound TCP address after Start.
func (s *Server) Addr() *net.TCPAddr {
	if s.listener == nil {
		return nil
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr
	}
	return nil
}

// Requests returns the number of diagnostic requests answered.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Stop stops the server and closes open connections.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	s.logger.Info("Simulator stopped")
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("Accept error: %v", err)
			return
		}

		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// connState is the routing state of one tester connection.
type connState struct {
	tester    uint16
	activated bool
}

func (s *Server) handleConnection(conn *net.TCPConn) {
	defer s.wg.Done()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
		conn.Close()
	}()

	remoteAddr := conn.RemoteAddr().String()
	s.logger.Info("New connection from %s", remoteAddr)

	var state connState
	for {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		frame, err := doip.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || s.ctx.Err() != nil {
				s.logger.Info("Connection closed: %s", remoteAddr)
				return
			}
			s.logger.Error("Read error from %s: %v", remoteAddr, err)
			conn.Write(doip.BuildGenericNack(s.config.ProtocolVersion, doip.GenericNackIncorrectPattern))
			return
		}
		msg, err := doip.Decode(frame)
		if err != nil {
			s.logger.Error("Decode error from %s: %v", remoteAddr, err)
			return
		}
		s.logger.LogHex("RX "+remoteAddr, frame)

		for _, resp := range s.handleMessage(&state, msg) {
			s.logger.LogHex("TX "+remoteAddr, resp)
			if _, err := conn.Write(resp); err != nil {
				s.logger.Error("Write error to %s: %v", remoteAddr, err)
				return
			}
		}
	}
}

func (s *Server) handleMessage(state *connState, msg doip.Message) [][]byte {
	version := s.config.ProtocolVersion

	switch msg.PayloadType {
	case doip.PayloadRoutingActivationRequest:
		req, err := doip.ParseRoutingActivationRequest(msg.Payload)
		if err != nil {
			return [][]byte{doip.BuildGenericNack(version, doip.GenericNackInvalidPayloadLength)}
		}
		code := doip.RoutingSuccess
		if req.ActivationType != doip.ActivationTypeDefault {
			code = doip.RoutingDeniedUnsupportedType
		} else {
			state.tester, state.activated = req.SourceAddress, true
		}
		resp := doip.RoutingActivationResponse{TesterAddress: req.SourceAddress, EntityAddress: s.config.LogicalAddress, Code: code}
		return [][]byte{doip.Encode(doip.Message{Version: version, PayloadType: doip.PayloadRoutingActivationResponse, Payload: resp.Marshal()})}

	case doip.PayloadAliveCheckResponse:
		return nil

	case doip.PayloadDiagnosticMessage:
		req, err := doip.ParseDiagnosticMessage(msg.Payload)
		if err != nil {
			return [][]byte{doip.BuildGenericNack(version, doip.GenericNackInvalidPayloadLength)}
		}
		switch {
		case !state.activated || req.SourceAddress != state.tester:
			return [][]byte{s.diagnosticAck(req, doip.PayloadDiagnosticNack, doip.DiagnosticNackInvalidSourceAddress)}
		case req.TargetAddress != s.config.LogicalAddress:
			return [][]byte{s.diagnosticAck(req, doip.PayloadDiagnosticNack, doip.DiagnosticNackUnknownTargetAddress)}
		}

		frames := [][]byte{s.diagnosticAck(req, doip.PayloadDiagnosticAck, doip.DiagnosticAckConfirm)}
		for _, userData := range s.answer(req.UserData) {
			frames = append(frames, doip.BuildDiagnosticMessage(version, s.config.LogicalAddress, req.SourceAddress, userData))
		}
		s.requests.Add(1)
		return frames

	default:
		return [][]byte{doip.BuildGenericNack(version, doip.GenericNackUnknownPayloadType)}
	}
}

func (s *Server) diagnosticAck(req doip.DiagnosticMessage, payloadType uint16, code uint8) []byte {
	ack := doip.DiagnosticAck{
		SourceAddress: s.config.LogicalAddress,
		TargetAddress: req.SourceAddress,
		Code:          code,
		Previous:      req.UserData,
	}
	return doip.Encode(doip.Message{Version: s.config.ProtocolVersion, PayloadType: payloadType, Payload: ack.Marshal()})
}
