package vehicleinfo

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tturner/udsinfo/internal/logging"
	"github.com/tturner/udsinfo/internal/uds"
)

var testTarget = Target{Address: "192.0.2.10", LogicalAddress: 0x0545}

func newTestManager(opener Opener, attempts int) (*Manager, *[]time.Duration, *bytes.Buffer) {
	var logs bytes.Buffer
	m := NewManager(opener, RetryPolicy{MaxAttempts: attempts, Delay: 10 * time.Second}, logging.NewWriterLogger(logging.LogLevelInfo, &logs))
	waits := &[]time.Duration{}
	m.wait = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return m, waits, &logs
}

func TestConnectSucceedsAfterFailures(t *testing.T) {
	opener := &fakeOpener{failTransport: 2, transport: &fakeTransport{}, client: &fakeClient{}}
	m, waits, logs := newTestManager(opener, 5)

	session, err := m.Connect(context.Background(), testTarget)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if session.Closed() {
		t.Error("new session should be open")
	}
	if opener.transportOpens != 3 {
		t.Errorf("transport opens: got %d, want 3", opener.transportOpens)
	}
	if len(*waits) != 2 {
		t.Errorf("waits: got %d, want 2", len(*waits))
	}
	for i := 1; i <= 2; i++ {
		want := "Conn attempt " + string(rune('0'+i)) + "/5 failed: dial TCP: connection refused"
		if !strings.Contains(logs.String(), want) {
			t.Errorf("logs missing %q:\n%s", want, logs.String())
		}
	}
}

func TestConnectFirstAttempt(t *testing.T) {
	opener := &fakeOpener{transport: &fakeTransport{}, client: &fakeClient{}}
	m, waits, _ := newTestManager(opener, 5)

	if _, err := m.Connect(context.Background(), testTarget); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if opener.transportOpens != 1 || len(*waits) != 0 {
		t.Errorf("opens/waits: got %d/%d, want 1/0", opener.transportOpens, len(*waits))
	}
}

func TestConnectExhaustsRetries(t *testing.T) {
	opener := &fakeOpener{failTransport: 10, transport: &fakeTransport{}, client: &fakeClient{}}
	m, waits, _ := newTestManager(opener, 5)

	session, err := m.Connect(context.Background(), testTarget)
	if session != nil {
		t.Error("session should be nil on failure")
	}
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect error: got %v, want ConnectError", err)
	}
	if connErr.Attempts != 5 {
		t.Errorf("attempts: got %d, want 5", connErr.Attempts)
	}
	if opener.transportOpens != 5 {
		t.Errorf("transport opens: got %d, want 5", opener.transportOpens)
	}
	if len(*waits) != 4 {
		t.Errorf("waits between attempts: got %d, want 4", len(*waits))
	}
	if opener.clientOpens != 0 {
		t.Error("client must not be opened when the transport never opened")
	}
}

func TestConnectWaitCancelled(t *testing.T) {
	opener := &fakeOpener{failTransport: 10}
	m := NewManager(opener, RetryPolicy{MaxAttempts: 5, Delay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Connect(ctx, testTarget)
	var connErr *ConnectError
	if !errors.As(err, &connErr) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect error: got %v, want ConnectError wrapping context.Canceled", err)
	}
	if opener.transportOpens != 1 {
		t.Errorf("transport opens: got %d, want 1", opener.transportOpens)
	}
}

func TestConnectClientOpenFailure(t *testing.T) {
	transport := &fakeTransport{}
	opener := &fakeOpener{transport: transport, clientErr: errors.New("invalid timeouts")}
	m, _, _ := newTestManager(opener, 5)

	_, err := m.Connect(context.Background(), testTarget)
	var openErr *ClientOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Connect error: got %v, want ClientOpenError", err)
	}
	if opener.transportOpens != 1 {
		t.Errorf("client open failure must not be retried: %d transport opens", opener.transportOpens)
	}
	if transport.closes != 1 {
		t.Errorf("transport closes: got %d, want 1", transport.closes)
	}
}

func TestSessionCloseIndependentReleases(t *testing.T) {
	tests := []struct {
		name      string
		transport *fakeTransport
		client    *fakeClient
	}{
		{"both succeed", &fakeTransport{}, &fakeClient{}},
		{"transport close fails", &fakeTransport{closeErr: errors.New("reset by peer")}, &fakeClient{}},
		{"transport close panics", &fakeTransport{closePanic: true}, &fakeClient{}},
		{"client close fails", &fakeTransport{}, &fakeClient{closeErr: errors.New("not open")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{target: testTarget, transport: tt.transport, client: tt.client}
			s.Close()
			s.Close()
			if tt.client.closes != 1 {
				t.Errorf("client closes: got %d, want 1", tt.client.closes)
			}
			if tt.transport.closes != 1 {
				t.Errorf("transport closes: got %d, want 1", tt.transport.closes)
			}
		})
	}
}

func TestSessionNilAndClosed(t *testing.T) {
	var s *Session
	s.Close()
	if !s.Closed() {
		t.Error("nil session should report closed")
	}

	open := &Session{transport: &fakeTransport{}, client: &fakeClient{}}
	open.Close()
	if _, err := open.Send(context.Background(), uds.NewReadDataByIdentifier(0xF18C)); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Send on closed session: got %v, want ErrSessionClosed", err)
	}
}

func TestParseLogicalAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"0x545", 0x0545, false},
		{"545", 0x0545, false},
		{"0X0E80", 0x0E80, false},
		{" ffff ", 0xFFFF, false},
		{"0x", 0, true},
		{"", 0, true},
		{"0x10000", 0, true},
		{"12g", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLogicalAddress(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogicalAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogicalAddress(%q) = 0x%04X, want 0x%04X", tt.in, got, tt.want)
		}
	}
}
