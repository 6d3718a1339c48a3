package extraction

import (
	"testing"

	"github.com/ehr/labextract/internal/platform/hl7v2"
)

func TestToORU(t *testing.T) {
	e := sampleExtraction()
	o := ToORU(e)

	if o.ControlID != "5f0c1b7e3a444c1e9a53" {
		t.Errorf("unexpected control id %q", o.ControlID)
	}
	if o.SendingFacility != "ASIRI LABORATORIES" || o.FillerOrder != "R-77" {
		t.Errorf("unexpected header %q %q", o.SendingFacility, o.FillerOrder)
	}
	if o.Patient.ID != "p-42" || o.Patient.Sex != "F" || o.Patient.BirthDate.Format("2006-01-02") != "1990-02-01" {
		t.Errorf("unexpected patient %+v", o.Patient)
	}

	want := []struct {
		valueType, flag string
	}{
		{hl7v2.ValueNumeric, "L"},
		{hl7v2.ValueString, "A"},
		{hl7v2.ValueNumeric, "N"},
		{hl7v2.ValueString, ""},
	}
	if len(o.Results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(o.Results))
	}
	for i, w := range want {
		if o.Results[i].ValueType != w.valueType || o.Results[i].AbnormalFlag != w.flag {
			t.Errorf("result %d: expected %s/%q, got %s/%q", i, w.valueType, w.flag, o.Results[i].ValueType, o.Results[i].AbnormalFlag)
		}
	}
}

func TestToORU_PatientFromReport(t *testing.T) {
	e := sampleExtraction()
	e.PatientRef = nil
	if got := ToORU(e).Patient.ID; got != "1234567" {
		t.Errorf("expected the UHID as patient id, got %q", got)
	}
}

func TestEncodeHL7_RoundTrip(t *testing.T) {
	raw, err := EncodeHL7(sampleExtraction())
	if err != nil {
		t.Fatalf("EncodeHL7: %v", err)
	}
	msg, err := hl7v2.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Type != "ORU^R01" {
		t.Errorf("expected ORU^R01, got %s", msg.Type)
	}
	if msg.PatientID() != "p-42" {
		t.Errorf("expected patient p-42, got %s", msg.PatientID())
	}
	results := msg.Results()
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].Units != "10^9/L" || results[0].ReferenceRange != "150 - 450" {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[3].Value != "2 - 4" {
		t.Errorf("expected count value, got %q", results[3].Value)
	}
}
