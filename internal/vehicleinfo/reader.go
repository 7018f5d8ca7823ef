package vehicleinfo

// Batch read of the identification table over one session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tturner/udsinfo/internal/logging"
	"github.com/tturner/udsinfo/internal/uds"
)

// Observer is notified around every identifier read.
type Observer interface {
	ReadStarted(spec IdentifierSpec)
	ReadFinished(spec IdentifierSpec, outcome Outcome, elapsed time.Duration)
}

// Reader runs the identifier batch.
type Reader struct {
	logger    *logging.Logger
	observers []Observer
}

// NewReader creates a batch reader
func NewReader(logger *logging.Logger, observers ...Observer) *Reader {
	return &Reader{logger: logger, observers: observers}
}

// Run reads every identifier of table in order and closes the session before
// returning, on every exit path. Per-identifier failures are recorded in the
// returned record and never stop the batch.
func (r *Reader) Run(ctx context.Context, session *Session, table []IdentifierSpec) *Record {
	defer session.Close()

	record := NewRecord(len(table))
	for _, spec := range table {
		for _, o := range r.observers {
			o.ReadStarted(spec)
		}

		start := time.Now()
		outcome := r.read(ctx, session, spec)
		elapsed := time.Since(start)
		record.Set(spec.Field, outcome)

		for _, o := range r.observers {
			o.ReadFinished(spec, outcome, elapsed)
		}
	}
	return record
}

func (r *Reader) read(ctx context.Context, session *Session, spec IdentifierSpec) (outcome Outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Exception on DID 0x%04X: %v", spec.DID, p)
			outcome = Failed(fmt.Sprintf("%s%v", ExceptionPrefix, p))
		}
	}()

	r.logger.Info("Requesting DID 0x%04X", spec.DID)
	resp, err := session.Send(ctx, uds.NewReadDataByIdentifier(spec.DID))
	if err == nil && !resp.Positive {
		err = &uds.NegativeResponseError{Service: resp.Service, Code: resp.Code}
	}
	if err != nil {
		return r.failure(spec, err)
	}

	payload, err := uds.StripDataIdentifier(resp, spec.DID)
	if err != nil {
		return r.failure(spec, err)
	}

	value, dropped := decode(spec.Encoding, payload)
	if dropped > 0 {
		r.logger.Warn("DID 0x%04X: dropped %d non-ASCII byte(s) while decoding", spec.DID, dropped)
	}
	r.logger.Info("DID 0x%04X = %s", spec.DID, value)
	return Decoded(value)
}

func (r *Reader) failure(spec IdentifierSpec, err error) Outcome {
	var nrc *uds.NegativeResponseError
	if errors.As(err, &nrc) {
		r.logger.Error("Error reading DID 0x%04X: %v", spec.DID, err)
		return Failed(NegativeResponsePrefix + err.Error())
	}
	r.logger.Error("Exception on DID 0x%04X: %v", spec.DID, err)
	return Failed(ExceptionPrefix + err.Error())
}
