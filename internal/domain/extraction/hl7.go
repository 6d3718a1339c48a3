package extraction

import (
	"strings"
	"time"

	"github.com/ehr/labextract/internal/labextract"
	"github.com/ehr/labextract/internal/platform/hl7v2"
)

const (
	hl7SendingApp = "LABEXTRACT"
	controlIDLen  = 20
)

var hl7Flags = map[string]string{
	InterpHigh:     "H",
	InterpLow:      "L",
	InterpNormal:   "N",
	InterpPositive: "A",
}

// ToORU maps an extraction to an ORU^R01 message with one OBX per value.
func ToORU(e *Extraction) hl7v2.ORU {
	facility := ""
	if e.Result.Report != nil {
		facility = e.Result.Report.Laboratory
	}
	o := hl7v2.ORU{
		SendingApp:      hl7SendingApp,
		SendingFacility: facility,
		ControlID:       controlID(e),
		Timestamp:       e.ExtractedAt,
		Patient:         hl7Patient(e),
		FillerOrder:     e.ID.String(),
		ServiceCode:     "LAB",
		ServiceName:     "Laboratory report",
		ObservedAt:      e.ExtractedAt,
		Results:         make([]hl7v2.Result, 0, len(e.Result.LabValues)),
	}
	if r := e.Result.Report; r != nil && r.ReferenceNo != "" {
		o.FillerOrder = r.ReferenceNo
	}
	for _, v := range e.Result.LabValues {
		o.Results = append(o.Results, hl7Result(v))
	}
	return o
}

// EncodeHL7 renders the extraction as a pipe-delimited HL7 v2.5.1 message.
func EncodeHL7(e *Extraction) ([]byte, error) {
	return hl7v2.GenerateORU(ToORU(e))
}

func controlID(e *Extraction) string {
	id := strings.ReplaceAll(e.ID.String(), "-", "")
	if len(id) > controlIDLen {
		id = id[:controlIDLen]
	}
	return id
}

func hl7Patient(e *Extraction) hl7v2.Patient {
	var p hl7v2.Patient
	if e.PatientRef != nil {
		p.ID = *e.PatientRef
	}
	r := e.Result.Report
	if r == nil {
		return p
	}
	if p.ID == "" {
		p.ID = r.UHID
	}
	p.Family = r.PatientName
	if dob, err := time.Parse("02/01/2006", r.DateOfBirth); err == nil {
		p.BirthDate = dob
	}
	switch r.Gender {
	case "female":
		p.Sex = "F"
	case "male":
		p.Sex = "M"
	}
	return p
}

func hl7Result(v labextract.Candidate) hl7v2.Result {
	r := hl7v2.Result{
		Code:           testCode(v.TestName),
		Name:           v.TestName,
		ValueType:      hl7v2.ValueString,
		Value:          v.Value,
		Units:          v.Unit,
		ReferenceRange: v.ReferenceRange,
		AbnormalFlag:   hl7Flags[interpret(v)],
	}
	if _, ok := numeric(v.Value); ok {
		r.ValueType = hl7v2.ValueNumeric
	}
	return r
}
