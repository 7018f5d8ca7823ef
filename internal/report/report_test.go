package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

var testTarget = vehicleinfo.Target{Address: "192.0.2.10", LogicalAddress: 0x0545}

func testRecord() *vehicleinfo.Record {
	record := vehicleinfo.NewRecord(3)
	record.Set("ecuSerialNumber", vehicleinfo.Decoded("SN4711"))
	record.Set("ecuTypeVariant", vehicleinfo.Failed("UDS Error: ReadDataByIdentifier service execution returned a negative response RequestOutOfRange (0x31)"))
	record.Set("indexSrvData", vehicleinfo.Decoded("7"))
	return record
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, testRecord()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if decoded.Type != "uds-vehicle-info" {
		t.Errorf("type = %q", decoded.Type)
	}
	if decoded.Data["indexSrvData"] != "7" || len(decoded.Data) != 3 {
		t.Errorf("data = %v", decoded.Data)
	}

	out := buf.String()
	if strings.Index(out, "ecuSerialNumber") > strings.Index(out, "ecuTypeVariant") {
		t.Error("fields should keep table order")
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("output should end with a newline: %q", out)
	}
}

func TestMarshalEnvelopeCompact(t *testing.T) {
	data, err := MarshalEnvelope(testRecord())
	if err != nil {
		t.Fatalf("MarshalEnvelope failed: %v", err)
	}
	if bytes.ContainsAny(data, "\n") {
		t.Errorf("envelope should be compact: %s", data)
	}
	if !bytes.HasPrefix(data, []byte(`{"type":"uds-vehicle-info","data":{"ecuSerialNumber":"SN4711",`)) {
		t.Errorf("unexpected envelope: %s", data)
	}
}

func TestJSONLeavesMarkupCharacters(t *testing.T) {
	record := vehicleinfo.NewRecord(1)
	record.Set("ecuTypeVariant", vehicleinfo.Decoded("A<B>&C"))

	var buf bytes.Buffer
	if err := WriteJSON(&buf, record); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"ecuTypeVariant": "A<B>&C"`) {
		t.Errorf("WriteJSON escaped markup characters:\n%s", buf.String())
	}

	data, err := MarshalEnvelope(record)
	if err != nil {
		t.Fatalf("MarshalEnvelope failed: %v", err)
	}
	want := `{"type":"uds-vehicle-info","data":{"ecuTypeVariant":"A<B>&C"}}`
	if string(data) != want {
		t.Errorf("MarshalEnvelope: got %s, want %s", data, want)
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(testTarget, testRecord())

	for _, want := range []string{
		"192.0.2.10 (LA 0x0545)",
		"ecuSerialNumber",
		"SN4711",
		"RequestOutOfRange",
		"2/3 identifiers read, 1 failed",
		"╭",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "ecuSerialNumber") > strings.Index(out, "indexSrvData") {
		t.Error("rows should keep table order")
	}
}

func TestWriteFormats(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{format: "json", want: `"type": "uds-vehicle-info"`},
		{format: "", want: `"type": "uds-vehicle-info"`},
		{format: "table", want: "identifiers read"},
		{format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := Write(&buf, tt.format, testTarget, testRecord())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}
