package vehicleinfo

import (
	"fmt"
	"slices"
)

// Encoding is the decoding rule of a data identifier.
type Encoding int

const (
	// EncodingASCII is fixed-length ASCII padded with NUL bytes.
	EncodingASCII Encoding = iota
	// EncodingUnsigned is a big-endian unsigned integer rendered in base 10.
	EncodingUnsigned
)

func (e Encoding) String() string {
	switch e {
	case EncodingASCII:
		return "ascii"
	case EncodingUnsigned:
		return "uint-be"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// IdentifierSpec is one entry of the read table.
type IdentifierSpec struct {
	Field    string
	DID      uint16
	Encoding Encoding
	// Length is the nominal ASCII length. It is informational only.
	Length int
}

func (s IdentifierSpec) String() string {
	return fmt.Sprintf("%s (0x%04X)", s.Field, s.DID)
}

var identificationTable = []IdentifierSpec{
	{Field: "ecuSerialNumber", DID: 0xF18C, Encoding: EncodingASCII, Length: 16},
	{Field: "ecuTypeVariant", DID: 0xF075, Encoding: EncodingASCII, Length: 10},
	{Field: "systemSupplierIdentifier", DID: 0xF18A, Encoding: EncodingASCII, Length: 10},
	{Field: "vehicleManufacturerEcuHardwareNumber", DID: 0xF191, Encoding: EncodingASCII, Length: 10},
	{Field: "manufacturerSparePartNumber", DID: 0xF187, Encoding: EncodingASCII, Length: 10},
	{Field: "indexSrvData", DID: 0xF011, Encoding: EncodingUnsigned},
}

// IdentificationTable returns the ECU identification read table in read order.
func IdentificationTable() []IdentifierSpec {
	return slices.Clone(identificationTable)
}
