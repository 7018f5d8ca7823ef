package vehicleinfo

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/tturner/udsinfo/internal/uds"
)

type fakeTransport struct {
	closeErr   error
	closePanic bool
	closes     int
}

func (f *fakeTransport) Close() error {
	f.closes++
	if f.closePanic {
		panic("socket already torn down")
	}
	return f.closeErr
}

type fakeReply struct {
	data  []byte // positive response payload after the DID echo
	nrc   uint8
	err   error
	panic bool
	raw   *uds.Response
}

type fakeClient struct {
	replies  map[uint16]fakeReply
	closeErr error
	closes   int
	sent     []uint16
}

func (f *fakeClient) Send(ctx context.Context, req uds.Request) (uds.Response, error) {
	did := binary.BigEndian.Uint16(req.Data)
	f.sent = append(f.sent, did)
	reply, ok := f.replies[did]
	if !ok {
		return uds.Response{}, errors.New("read diagnostic message: i/o timeout")
	}
	switch {
	case reply.panic:
		panic("decoder blew up")
	case reply.raw != nil:
		return *reply.raw, nil
	case reply.err != nil:
		return uds.Response{}, reply.err
	case reply.nrc != 0:
		return uds.Response{Service: req.Service, Code: reply.nrc},
			&uds.NegativeResponseError{Service: req.Service, Code: reply.nrc}
	}
	data := binary.BigEndian.AppendUint16(nil, did)
	return uds.Response{Service: req.Service, Positive: true, Data: append(data, reply.data...)}, nil
}

func (f *fakeClient) Close() error {
	f.closes++
	return f.closeErr
}

// fakeOpener fails the first failTransport transport opens.
type fakeOpener struct {
	failTransport int
	clientErr     error
	transport     *fakeTransport
	client        *fakeClient

	transportOpens int
	clientOpens    int
}

func (f *fakeOpener) OpenTransport(ctx context.Context, target Target) (Transport, error) {
	f.transportOpens++
	if f.transportOpens <= f.failTransport {
		return nil, errors.New("dial TCP: connection refused")
	}
	return f.transport, nil
}

func (f *fakeOpener) OpenClient(ctx context.Context, target Target, transport Transport) (Client, error) {
	f.clientOpens++
	if f.clientErr != nil {
		return nil, f.clientErr
	}
	return f.client, nil
}

type recordingObserver struct {
	started  []string
	finished []string
}

func (r *recordingObserver) ReadStarted(spec IdentifierSpec) {
	r.started = append(r.started, spec.Field)
}

func (r *recordingObserver) ReadFinished(spec IdentifierSpec, outcome Outcome, elapsed time.Duration) {
	r.finished = append(r.finished, spec.Field+"="+outcome.String())
}
