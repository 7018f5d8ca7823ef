package vehicleinfo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tturner/udsinfo/internal/logging"
	"github.com/tturner/udsinfo/internal/uds"
)

func newTestSession(client *fakeClient, transport *fakeTransport) *Session {
	return &Session{target: testTarget, transport: transport, client: client}
}

func TestRunMixedOutcomes(t *testing.T) {
	table := []IdentifierSpec{
		{Field: "A", DID: 0xF18C, Encoding: EncodingASCII, Length: 16},
		{Field: "B", DID: 0xF075, Encoding: EncodingASCII, Length: 10},
		{Field: "C", DID: 0xF011, Encoding: EncodingUnsigned},
	}
	client := &fakeClient{replies: map[uint16]fakeReply{
		0xF18C: {data: []byte("12345")},
		0xF075: {nrc: uds.RequestOutOfRange},
		0xF011: {data: []byte{0x00, 0x07}},
	}}
	transport := &fakeTransport{}
	observer := &recordingObserver{}

	record := NewReader(nil, observer).Run(context.Background(), newTestSession(client, transport), table)

	want := map[string]string{
		"A": "12345",
		"B": "UDS Error: ReadDataByIdentifier service execution returned a negative response RequestOutOfRange (0x31)",
		"C": "7",
	}
	for field, value := range want {
		got, ok := record.Get(field)
		if !ok {
			t.Fatalf("field %s missing", field)
		}
		if got.String() != value {
			t.Errorf("%s: got %q, want %q", field, got.String(), value)
		}
	}
	if record.Failures() != 1 {
		t.Errorf("failures: got %d, want 1", record.Failures())
	}
	if !slices.Equal(client.sent, []uint16{0xF18C, 0xF075, 0xF011}) {
		t.Errorf("request order: got %04X", client.sent)
	}
	if client.closes != 1 || transport.closes != 1 {
		t.Errorf("closes: client %d, transport %d, want 1/1", client.closes, transport.closes)
	}
	if !slices.Equal(observer.started, []string{"A", "B", "C"}) || len(observer.finished) != 3 {
		t.Errorf("observer: started %v, finished %v", observer.started, observer.finished)
	}
}

func TestRunKeySetMatchesTable(t *testing.T) {
	table := IdentificationTable()
	// every read fails: the record still carries every field
	client := &fakeClient{}
	record := NewReader(nil).Run(context.Background(), newTestSession(client, &fakeTransport{}), table)

	var fields []string
	for _, spec := range table {
		fields = append(fields, spec.Field)
	}
	if !slices.Equal(record.Fields(), fields) {
		t.Errorf("fields: got %v, want %v", record.Fields(), fields)
	}
	for _, field := range fields {
		o, _ := record.Get(field)
		if !strings.HasPrefix(o.String(), "Exception: ") {
			t.Errorf("%s: got %q, want Exception prefix", field, o.String())
		}
	}
}

func TestRunClassifiesFailures(t *testing.T) {
	table := []IdentifierSpec{
		{Field: "transport", DID: 0x0001},
		{Field: "short", DID: 0x0002},
		{Field: "echo", DID: 0x0003},
		{Field: "negativeWithoutError", DID: 0x0004},
		{Field: "panics", DID: 0x0005},
		{Field: "after", DID: 0x0006},
	}
	client := &fakeClient{replies: map[uint16]fakeReply{
		0x0001: {err: errors.New("read diagnostic message: connection reset by peer")},
		0x0002: {raw: &uds.Response{Service: uds.ReadDataByIdentifier, Positive: true, Data: []byte{0x00}}},
		0x0003: {raw: &uds.Response{Service: uds.ReadDataByIdentifier, Positive: true, Data: []byte{0x12, 0x34, 'x'}}},
		0x0004: {raw: &uds.Response{Service: uds.ReadDataByIdentifier, Code: uds.ConditionsNotCorrect}},
		0x0005: {panic: true},
		0x0006: {data: []byte("ok")},
	}}
	record := NewReader(nil).Run(context.Background(), newTestSession(client, &fakeTransport{}), table)

	prefixes := map[string]string{
		"transport":            "Exception: read diagnostic message",
		"short":                "Exception: invalid response",
		"echo":                 "Exception: unexpected response",
		"negativeWithoutError": "UDS Error: ",
		"panics":               "Exception: decoder blew up",
		"after":                "ok",
	}
	for field, prefix := range prefixes {
		o, ok := record.Get(field)
		if !ok {
			t.Fatalf("field %s missing", field)
		}
		if !strings.HasPrefix(o.String(), prefix) {
			t.Errorf("%s: got %q, want prefix %q", field, o.String(), prefix)
		}
	}
}

type panickingObserver struct{}

func (panickingObserver) ReadStarted(spec IdentifierSpec) {}
func (panickingObserver) ReadFinished(spec IdentifierSpec, outcome Outcome, elapsed time.Duration) {
	panic("observer failed")
}

func TestRunClosesSessionOnEscapingPanic(t *testing.T) {
	client := &fakeClient{replies: map[uint16]fakeReply{0xF18C: {data: []byte("SN")}}}
	transport := &fakeTransport{closeErr: errors.New("already closed")}
	session := newTestSession(client, transport)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("observer panic should escape Run")
			}
		}()
		NewReader(nil, panickingObserver{}).Run(context.Background(), session, IdentificationTable())
	}()

	if !session.Closed() {
		t.Error("session should be closed after an escaping panic")
	}
	if client.closes != 1 || transport.closes != 1 {
		t.Errorf("closes: client %d, transport %d, want 1/1", client.closes, transport.closes)
	}
}

func TestRunOnClosedSession(t *testing.T) {
	client := &fakeClient{replies: map[uint16]fakeReply{0xF18C: {data: []byte("SN")}}}
	session := newTestSession(client, &fakeTransport{})
	session.Close()

	record := NewReader(nil).Run(context.Background(), session, IdentificationTable()[:1])
	o, _ := record.Get("ecuSerialNumber")
	if o.String() != "Exception: session closed" {
		t.Errorf("closed session read: got %q", o.String())
	}
	if len(client.sent) != 0 {
		t.Error("closed session must not send requests")
	}
	if client.closes != 1 {
		t.Errorf("client closes: got %d, want 1", client.closes)
	}
}

func TestEnvelopeJSONOrder(t *testing.T) {
	record := NewRecord(3)
	record.Set("zeta", Decoded("1"))
	record.Set("alpha", Failed("UDS Error: x"))
	record.Set("mid", Decoded("SN 01"))

	data, err := json.Marshal(record.Envelope())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"type":"uds-vehicle-info","data":{"zeta":"1","alpha":"UDS Error: x","mid":"SN 01"}}`
	if string(data) != want {
		t.Errorf("JSON: got %s, want %s", data, want)
	}

	indented, err := json.MarshalIndent(record.Envelope(), "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}
	if !strings.Contains(string(indented), "\n    \"zeta\": \"1\",\n    \"alpha\"") {
		t.Errorf("indented JSON lost field order:\n%s", indented)
	}
}

func TestRunLogsDroppedASCIIBytes(t *testing.T) {
	table := []IdentifierSpec{
		{Field: "ecuSerialNumber", DID: 0xF18C, Encoding: EncodingASCII, Length: 16},
		{Field: "ecuTypeVariant", DID: 0xF18A, Encoding: EncodingASCII, Length: 8},
	}
	client := &fakeClient{replies: map[uint16]fakeReply{
		0xF18C: {data: []byte{'S', 0xC3, 'N', 0xA9, 0xFF, '1', 0x00, 0x00}},
		0xF18A: {data: []byte("TCU")},
	}}
	var logBuf bytes.Buffer
	logger := logging.NewWriterLogger(logging.LogLevelInfo, &logBuf)

	record := NewReader(logger).Run(context.Background(), newTestSession(client, &fakeTransport{}), table)

	if got, _ := record.Get("ecuSerialNumber"); got.String() != "SN1" {
		t.Errorf("decoded value: got %q, want %q", got.String(), "SN1")
	}
	if !strings.Contains(logBuf.String(), "DID 0xF18C: dropped 3 non-ASCII byte(s)") {
		t.Errorf("log missing decode warning:\n%s", logBuf.String())
	}
	if strings.Contains(logBuf.String(), "DID 0xF18A: dropped") {
		t.Errorf("clean ASCII value logged a decode warning:\n%s", logBuf.String())
	}
}

func TestRunRecordsRequestTimeoutAsException(t *testing.T) {
	table := []IdentifierSpec{
		{Field: "slow", DID: 0xF18C, Encoding: EncodingASCII},
		{Field: "next", DID: 0xF011, Encoding: EncodingUnsigned},
	}
	client := &fakeClient{replies: map[uint16]fakeReply{
		0xF18C: {err: &uds.TimeoutError{Service: uds.ReadDataByIdentifier, Elapsed: 5 * time.Second, Pending: 40}},
		0xF011: {data: []byte{0x07}},
	}}
	record := NewReader(nil).Run(context.Background(), newTestSession(client, &fakeTransport{}), table)

	slow, _ := record.Get("slow")
	if !strings.HasPrefix(slow.String(), "Exception: ReadDataByIdentifier request timed out") {
		t.Errorf("slow: got %q", slow.String())
	}
	if next, _ := record.Get("next"); next.String() != "7" {
		t.Errorf("next: got %q, want %q", next.String(), "7")
	}
}
