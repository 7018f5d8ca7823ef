package vehicleinfo

import (
	"context"
	"fmt"

	"github.com/tturner/udsinfo/internal/doip"
	"github.com/tturner/udsinfo/internal/uds"
)

// DoIPOpener opens sessions over DoIP with a UDS client on top.
type DoIPOpener struct {
	// DoIP holds the transport options; Address and TargetAddress are
	// filled from the target.
	DoIP doip.Options
	UDS  uds.Config
}

// OpenTransport dials the ECU and activates routing.
func (o DoIPOpener) OpenTransport(ctx context.Context, target Target) (Transport, error) {
	opts := o.DoIP
	opts.Address = target.Address
	opts.TargetAddress = target.LogicalAddress
	t, err := doip.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// OpenClient opens a UDS client on an activated DoIP transport.
func (o DoIPOpener) OpenClient(ctx context.Context, target Target, transport Transport) (Client, error) {
	conn, ok := transport.(*doip.Transport)
	if !ok {
		return nil, fmt.Errorf("unsupported transport %T", transport)
	}
	client := uds.NewClient(conn, o.UDS)
	if err := client.Open(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
