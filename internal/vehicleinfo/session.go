package vehicleinfo

// Connection lifecycle: bounded-retry connect and failure-tolerant close

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tturner/udsinfo/internal/logging"
	"github.com/tturner/udsinfo/internal/uds"
)

const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 10 * time.Second
)

// Target identifies the ECU to query.
type Target struct {
	Address        string
	LogicalAddress uint16
}

func (t Target) String() string {
	return fmt.Sprintf("%s (LA 0x%04X)", t.Address, t.LogicalAddress)
}

// ParseLogicalAddress parses a hexadecimal ECU logical address. The 0x
// prefix is optional, so "545" and "0x545" are the same address.
func ParseLogicalAddress(s string) (uint16, error) {
	digits := strings.TrimSpace(s)
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		digits = digits[2:]
	}
	if digits == "" {
		return 0, fmt.Errorf("invalid logical address %q: empty", s)
	}
	v, err := strconv.ParseUint(digits, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid logical address %q: must be hex in 0x0000-0xFFFF", s)
	}
	return uint16(v), nil
}

// RetryPolicy bounds connection attempts. The delay is fixed.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns 5 attempts, 10 seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

// Transport is an open link to the ECU.
type Transport interface {
	Close() error
}

// Client is an open diagnostic client.
type Client interface {
	Send(ctx context.Context, req uds.Request) (uds.Response, error)
	Close() error
}

// Opener creates the transport and client handles of a session.
type Opener interface {
	OpenTransport(ctx context.Context, target Target) (Transport, error)
	OpenClient(ctx context.Context, target Target, transport Transport) (Client, error)
}

// Manager opens sessions with a bounded retry policy.
type Manager struct {
	opener Opener
	policy RetryPolicy
	logger *logging.Logger
	wait   func(ctx context.Context, d time.Duration) error
}

// NewManager creates a connection manager
func NewManager(opener Opener, policy RetryPolicy, logger *logging.Logger) *Manager {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Manager{
		opener: opener,
		policy: policy,
		logger: logger,
		wait:   sleepContext,
	}
}

// Connect opens the transport, retrying on any failure, then opens the
// client once. It returns *ConnectError when the retry budget is exhausted
// and *ClientOpenError when the client cannot be opened.
func (m *Manager) Connect(ctx context.Context, target Target) (*Session, error) {
	var (
		transport Transport
		lastErr   error
		attempt   int
	)
	for attempt = 1; attempt <= m.policy.MaxAttempts; attempt++ {
		t, err := m.opener.OpenTransport(ctx, target)
		if err == nil {
			transport = t
			break
		}
		lastErr = err
		m.logger.Error("Conn attempt %d/%d failed: %v", attempt, m.policy.MaxAttempts, err)

		if attempt < m.policy.MaxAttempts {
			if err := m.wait(ctx, m.policy.Delay); err != nil {
				return nil, &ConnectError{Target: target, Attempts: attempt, Err: err}
			}
		}
	}
	if transport == nil {
		return nil, &ConnectError{Target: target, Attempts: m.policy.MaxAttempts, Err: lastErr}
	}
	m.logger.Info("Connected to UDS server on attempt %d", attempt)

	client, err := m.opener.OpenClient(ctx, target, transport)
	if err != nil {
		m.logger.Error("Failed to open UDS client: %v", err)
		s := &Session{target: target, transport: transport, logger: m.logger}
		s.Close()
		return nil, &ClientOpenError{Target: target, Err: err}
	}
	m.logger.Info("UDS client opened")

	return &Session{target: target, transport: transport, client: client, logger: m.logger}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Session owns the transport and client handles between connect and close.
// It is not safe for concurrent use.
type Session struct {
	target    Target
	transport Transport
	client    Client
	logger    *logging.Logger
	closed    bool
}

// Target returns the ECU this session talks to.
func (s *Session) Target() Target {
	return s.target
}

// Send issues one request on the session.
func (s *Session) Send(ctx context.Context, req uds.Request) (uds.Response, error) {
	if s == nil || s.closed || s.client == nil {
		return uds.Response{}, ErrSessionClosed
	}
	return s.client.Send(ctx, req)
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	return s == nil || s.closed
}

// Close releases the client and the transport. Each release is attempted
// independently; failures are logged and never returned. Calling Close more
// than once, or on a nil session, does nothing.
func (s *Session) Close() {
	if s == nil || s.closed {
		return
	}
	s.closed = true

	if s.client != nil {
		s.release("UDS client", s.client.Close)
	}
	if s.transport != nil {
		s.release("DoIP client", s.transport.Close)
	}
}

func (s *Session) release(name string, closeFn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Closing %s panicked: %v", name, r)
		}
	}()
	if err := closeFn(); err != nil {
		s.logger.Error("Closing %s failed: %v", name, err)
		return
	}
	s.logger.Info("%s closed", name)
}
