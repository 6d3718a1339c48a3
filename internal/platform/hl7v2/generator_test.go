package hl7v2

import (
	"strings"
	"testing"
	"time"
)

func testORU() ORU {
	return ORU{
		SendingApp:      "LABEXTRACT",
		SendingFacility: "ASIRI LABORATORIES",
		ControlID:       "3f1c2a9e",
		Timestamp:       time.Date(2024, 3, 12, 10, 15, 0, 0, time.UTC),
		Patient: Patient{
			ID:        "1234567",
			Family:    "Perera",
			Given:     "A.",
			BirthDate: time.Date(1990, 2, 1, 0, 0, 0, 0, time.UTC),
			Sex:       "F",
		},
		FillerOrder: "R-2024-001",
		ServiceCode: "LAB",
		ServiceName: "Laboratory report",
		ObservedAt:  time.Date(2024, 3, 12, 8, 30, 0, 0, time.UTC),
		Results: []Result{
			{Code: "TWCC", Name: "TOTAL WHITE CELL COUNT", ValueType: ValueNumeric, Value: "2.1", Units: "10^9/L", ReferenceRange: "4.0 - 11.0", AbnormalFlag: "L"},
			{Code: "NS1", Name: "DENGUE VIRUS NS1 ANTIGEN", Value: "POSITIVE", AbnormalFlag: "A"},
		},
	}
}

func TestGenerateORU_Segments(t *testing.T) {
	raw, err := GenerateORU(testORU())
	if err != nil {
		t.Fatalf("GenerateORU: %v", err)
	}
	segments := strings.Split(string(raw), "\r")
	if len(segments) != 5 {
		t.Fatalf("expected 5 segments, got %d: %q", len(segments), raw)
	}
	for i, want := range []string{"MSH|", "PID|", "OBR|", "OBX|1|", "OBX|2|"} {
		if !strings.HasPrefix(segments[i], want) {
			t.Errorf("segment %d: expected prefix %q, got %q", i, want, segments[i])
		}
	}
	if !strings.Contains(segments[0], "|20240312101500||ORU^R01|3f1c2a9e|P|2.5.1") {
		t.Errorf("unexpected MSH %q", segments[0])
	}
	if segments[1] != "PID|1||1234567||Perera^A.||19900201|F" {
		t.Errorf("unexpected PID %q", segments[1])
	}
	if segments[3] != `OBX|1|NM|TWCC^TOTAL WHITE CELL COUNT^L||2.1|10\S\9/L|4.0 - 11.0|L|||F` {
		t.Errorf("unexpected OBX %q", segments[3])
	}
	if segments[4] != "OBX|2|ST|NS1^DENGUE VIRUS NS1 ANTIGEN^L||POSITIVE|||A|||F" {
		t.Errorf("unexpected OBX %q", segments[4])
	}
}

func TestGenerateORU_Validation(t *testing.T) {
	o := testORU()
	o.ControlID = ""
	if _, err := GenerateORU(o); err == nil {
		t.Error("expected an error without a control id")
	}
	o = testORU()
	o.Results = nil
	if _, err := GenerateORU(o); err == nil {
		t.Error("expected an error without results")
	}
}

func TestEscapeHL7(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"10^9/L", `10\S\9/L`},
		{"a|b", `a\F\b`},
		{`back\slash`, `back\E\slash`},
		{"x~y&z", `x\R\y\T\z`},
	}
	for _, tt := range tests {
		got := escapeHL7(tt.in)
		if got != tt.want {
			t.Errorf("escapeHL7(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if back := unescapeHL7(got); back != tt.in {
			t.Errorf("unescapeHL7(%q) = %q, want %q", got, back, tt.in)
		}
	}
}

func TestGenerateORU_RoundTrip(t *testing.T) {
	in := testORU()
	raw, err := GenerateORU(in)
	if err != nil {
		t.Fatalf("GenerateORU: %v", err)
	}
	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Type != "ORU^R01" || msg.ControlID != in.ControlID || msg.Version != "2.5.1" {
		t.Errorf("unexpected header %+v", msg)
	}
	if !msg.Timestamp.Equal(in.Timestamp) {
		t.Errorf("expected timestamp %v, got %v", in.Timestamp, msg.Timestamp)
	}
	if msg.PatientID() != "1234567" {
		t.Errorf("expected patient 1234567, got %q", msg.PatientID())
	}

	results := msg.Results()
	if len(results) != len(in.Results) {
		t.Fatalf("expected %d results, got %d", len(in.Results), len(results))
	}
	first := results[0]
	if first.Units != "10^9/L" || first.Value != "2.1" || first.AbnormalFlag != "L" || first.Name != "TOTAL WHITE CELL COUNT" {
		t.Errorf("unexpected first result %+v", first)
	}
	if results[1].ValueType != ValueString || results[1].Status != "F" {
		t.Errorf("unexpected second result %+v", results[1])
	}
}
