package labextract

import (
	"strings"
	"testing"
)

const sectionDoc = "HEADER\nCOMPLETE BLOOD COUNT\nHAEMOGLOBIN 12.7\nURINE FULL REPORT\nPH 6.0\nCLINICAL CHEMISTRY\nCRP 2.8\nEND OF REPORT"

func TestExtractSection(t *testing.T) {
	sec, ok := ExtractSection(sectionDoc, []string{"urine full report", "urine"}, []string{"clinical chemistry", "end of report"})
	if !ok {
		t.Fatal("expected the section to be found")
	}
	if !strings.HasPrefix(sec.Text, "URINE FULL REPORT") {
		t.Errorf("expected section to start at the keyword, got %q", sec.Text)
	}
	if strings.Contains(sec.Text, "CLINICAL CHEMISTRY") || !strings.Contains(sec.Text, "PH 6.0") {
		t.Errorf("unexpected section text %q", sec.Text)
	}
	if sectionDoc[sec.Start:sec.End] != sec.Text {
		t.Error("expected offsets to refer to the document")
	}
}

func TestExtractSection_EarliestEndAfterStart(t *testing.T) {
	sec, ok := ExtractSection(sectionDoc, []string{"complete blood count"}, []string{"end of report", "urine"})
	if !ok {
		t.Fatal("expected the section to be found")
	}
	if got := strings.TrimSpace(sec.Text); got != "COMPLETE BLOOD COUNT\nHAEMOGLOBIN 12.7" {
		t.Errorf("unexpected section text %q", got)
	}
}

func TestExtractSection_RunsToEnd(t *testing.T) {
	sec, ok := ExtractSection(sectionDoc, []string{"clinical chemistry"}, []string{"serology"})
	if !ok {
		t.Fatal("expected the section to be found")
	}
	if sec.End != len(sectionDoc) {
		t.Errorf("expected section to run to the end, got end %d of %d", sec.End, len(sectionDoc))
	}
}

func TestExtractSection_Missing(t *testing.T) {
	if _, ok := ExtractSection(sectionDoc, []string{"serology"}, nil); ok {
		t.Error("expected no section")
	}
	if _, ok := ExtractSection(sectionDoc, nil, nil); ok {
		t.Error("expected no section without start keywords")
	}
}
