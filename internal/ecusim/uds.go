package ecusim

import (
	"encoding/binary"

	"github.com/tturner/udsinfo/internal/uds"
)

const positiveOffset = 0x40

// answer returns the UDS responses to one request, pending responses first.
// A nil result means no response is sent.
func (s *Server) answer(req []byte) [][]byte {
	if len(req) == 0 {
		return nil
	}
	sid := req[0]

	var final []byte
	switch sid {
	case uds.ReadDataByIdentifier:
		final = s.readDataByIdentifier(req)
	case uds.TesterPresent:
		if len(req) != 2 {
			final = negative(sid, uds.IncorrectMessageLengthOrInvalidFormat)
		} else if req[1]&0x80 != 0 {
			return nil
		} else {
			final = []byte{sid + positiveOffset, req[1] & 0x7F}
		}
	default:
		final = negative(sid, uds.ServiceNotSupported)
	}

	var out [][]byte
	for i := 0; i < s.config.ResponsePending; i++ {
		out = append(out, negative(sid, uds.RequestCorrectlyReceivedResponsePending))
	}
	return append(out, final)
}

func (s *Server) readDataByIdentifier(req []byte) []byte {
	if len(req) != 3 {
		return negative(req[0], uds.IncorrectMessageLengthOrInvalidFormat)
	}
	did := binary.BigEndian.Uint16(req[1:3])
	resp, ok := s.config.DataIdentifiers[did]
	if !ok {
		s.logger.Verbose("DID 0x%04X not configured", did)
		return negative(req[0], uds.RequestOutOfRange)
	}
	if resp.NRC != 0 {
		return negative(req[0], resp.NRC)
	}
	out := []byte{req[0] + positiveOffset, req[1], req[2]}
	return append(out, resp.Data...)
}

func negative(sid, code uint8) []byte {
	return []byte{uds.NegativeResponse, sid, code}
}
