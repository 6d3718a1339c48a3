package hl7v2

import (
	"fmt"
	"strings"
	"time"
)

// Value types used in OBX-2.
const (
	ValueNumeric = "NM"
	ValueString  = "ST"
)

// Patient is the PID content of a result message.
type Patient struct {
	ID        string
	Family    string
	Given     string
	BirthDate time.Time
	Sex       string // M, F, O or U
}

// Result is one OBX segment.
type Result struct {
	Code           string
	Name           string
	CodingSystem   string
	ValueType      string
	Value          string
	Units          string
	ReferenceRange string
	AbnormalFlag   string // H, L, A, N or empty
	Status         string // defaults to F
}

// ORU describes an ORU^R01 unsolicited observation result.
type ORU struct {
	SendingApp      string
	SendingFacility string
	ControlID       string
	Timestamp       time.Time
	Patient         Patient
	FillerOrder     string
	ServiceCode     string
	ServiceName     string
	ObservedAt      time.Time
	Results         []Result
}

// GenerateORU renders o as an HL7 v2.5.1 ORU^R01 message with one OBX per
// result. Segments are separated by carriage returns.
func GenerateORU(o ORU) ([]byte, error) {
	if o.ControlID == "" {
		return nil, fmt.Errorf("hl7v2: control id is required")
	}
	if len(o.Results) == 0 {
		return nil, fmt.Errorf("hl7v2: at least one result is required")
	}
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	segments := make([]string, 0, len(o.Results)+3)
	segments = append(segments,
		buildMSH(o.SendingApp, o.SendingFacility, ts, "ORU^R01", o.ControlID),
		buildPID(o.Patient),
		buildOBR(o),
	)
	for i, r := range o.Results {
		segments = append(segments, buildOBX(i+1, r))
	}
	return []byte(strings.Join(segments, "\r")), nil
}

func buildMSH(app, facility string, ts time.Time, msgType, controlID string) string {
	if app == "" {
		app = "LABEXTRACT"
	}
	return fmt.Sprintf("MSH|^~\\&|%s|%s|||%s||%s|%s|P|2.5.1",
		escapeHL7(app), escapeHL7(facility), formatTS(ts), msgType, escapeHL7(controlID))
}

func buildPID(p Patient) string {
	name := ""
	if p.Family != "" || p.Given != "" {
		name = escapeHL7(p.Family) + "^" + escapeHL7(p.Given)
	}
	dob := ""
	if !p.BirthDate.IsZero() {
		dob = p.BirthDate.Format("20060102")
	}
	return fmt.Sprintf("PID|1||%s||%s||%s|%s", escapeHL7(p.ID), name, dob, p.Sex)
}

func buildOBR(o ORU) string {
	service := ""
	if o.ServiceCode != "" || o.ServiceName != "" {
		service = escapeHL7(o.ServiceCode) + "^" + escapeHL7(o.ServiceName) + "^L"
	}
	observed := ""
	if !o.ObservedAt.IsZero() {
		observed = formatTS(o.ObservedAt)
	}
	return fmt.Sprintf("OBR|1||%s|%s|||%s", escapeHL7(o.FillerOrder), service, observed)
}

func buildOBX(setID int, r Result) string {
	valueType := r.ValueType
	if valueType == "" {
		valueType = ValueString
	}
	system := r.CodingSystem
	if system == "" {
		system = "L"
	}
	status := r.Status
	if status == "" {
		status = "F"
	}
	id := escapeHL7(r.Code) + "^" + escapeHL7(r.Name) + "^" + system
	return fmt.Sprintf("OBX|%d|%s|%s||%s|%s|%s|%s|||%s",
		setID, valueType, id, escapeHL7(r.Value), escapeHL7(r.Units),
		escapeHL7(r.ReferenceRange), r.AbnormalFlag, status)
}

func formatTS(t time.Time) string {
	return t.UTC().Format("20060102150405")
}

var (
	escaper = strings.NewReplacer(
		`\`, `\E\`,
		"|", `\F\`,
		"^", `\S\`,
		"~", `\R\`,
		"&", `\T\`,
	)
	unescaper = strings.NewReplacer(
		`\E\`, `\`,
		`\F\`, "|",
		`\S\`, "^",
		`\R\`, "~",
		`\T\`, "&",
	)
)

// escapeHL7 replaces the delimiter characters with their escape sequences.
func escapeHL7(s string) string { return escaper.Replace(s) }

func unescapeHL7(s string) string { return unescaper.Replace(s) }
