package hl7v2

import (
	"fmt"
	"strings"
	"time"
)

// Message is a parsed HL7 v2 message.
type Message struct {
	Type      string // MSH-9, e.g. "ORU^R01"
	ControlID string // MSH-10
	Version   string // MSH-12
	Timestamp time.Time
	Segments  []Segment
}

type Segment struct {
	Name   string
	Fields []Field
}

// Field keeps the raw value and its first repetition split into components.
type Field struct {
	Value      string
	Components []string
}

// Parse reads a message whose segments are separated by \r, \n or \r\n.
// The first segment must be MSH.
func Parse(raw []byte) (*Message, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("hl7v2: message is empty")
	}
	text := strings.NewReplacer("\r\n", "\r", "\n", "\r").Replace(string(raw))

	msg := &Message{}
	for _, line := range strings.Split(text, "\r") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(msg.Segments) == 0 && !strings.HasPrefix(line, "MSH") {
			return nil, fmt.Errorf("hl7v2: first segment must be MSH, got %q", line[:min(3, len(line))])
		}
		seg, err := parseSegment(line)
		if err != nil {
			return nil, fmt.Errorf("hl7v2: %w", err)
		}
		msg.Segments = append(msg.Segments, seg)
	}
	if len(msg.Segments) == 0 {
		return nil, fmt.Errorf("hl7v2: no segments found")
	}

	msh := &msg.Segments[0]
	msg.Type = msh.GetField(9)
	msg.ControlID = unescapeHL7(msh.GetField(10))
	msg.Version = msh.GetField(12)
	if ts := msh.GetField(7); ts != "" {
		if t, err := parseTS(ts); err == nil {
			msg.Timestamp = t
		}
	}
	return msg, nil
}

func parseSegment(line string) (Segment, error) {
	if len(line) < 3 {
		return Segment{}, fmt.Errorf("segment too short: %q", line)
	}
	name, rest, _ := strings.Cut(line, "|")
	seg := Segment{Name: name}

	// MSH-1 is the field separator itself, so MSH field n sits at index n-1
	// just like every other segment once it is prepended.
	if name == "MSH" {
		seg.Fields = append(seg.Fields, Field{Value: "|", Components: []string{"|"}})
	}
	if rest == "" && !strings.Contains(line, "|") {
		return seg, nil
	}
	for _, raw := range strings.Split(rest, "|") {
		first, _, _ := strings.Cut(raw, "~")
		seg.Fields = append(seg.Fields, Field{Value: raw, Components: strings.Split(first, "^")})
	}
	return seg, nil
}

func parseTS(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 14:
		return time.Parse("20060102150405", s[:14])
	case len(s) >= 8:
		return time.Parse("20060102", s[:8])
	default:
		return time.Time{}, fmt.Errorf("hl7v2: unrecognized timestamp %q", s)
	}
}

// GetSegment returns the first segment named name, or nil.
func (m *Message) GetSegment(name string) *Segment {
	for i := range m.Segments {
		if m.Segments[i].Name == name {
			return &m.Segments[i]
		}
	}
	return nil
}

func (m *Message) GetSegments(name string) []Segment {
	var out []Segment
	for _, seg := range m.Segments {
		if seg.Name == name {
			out = append(out, seg)
		}
	}
	return out
}

// GetField returns field index (1-based) of the segment, raw.
func (s *Segment) GetField(index int) string {
	if index < 1 || index > len(s.Fields) {
		return ""
	}
	return s.Fields[index-1].Value
}

// GetComponent returns component comp of field index, both 1-based, unescaped.
func (s *Segment) GetComponent(index, comp int) string {
	if index < 1 || index > len(s.Fields) {
		return ""
	}
	c := s.Fields[index-1].Components
	if comp < 1 || comp > len(c) {
		return ""
	}
	return unescapeHL7(c[comp-1])
}

// PatientID returns PID-3.1.
func (m *Message) PatientID() string {
	pid := m.GetSegment("PID")
	if pid == nil {
		return ""
	}
	return pid.GetComponent(3, 1)
}

// Results decodes every OBX segment back into a Result.
func (m *Message) Results() []Result {
	var out []Result
	for _, obx := range m.GetSegments("OBX") {
		out = append(out, Result{
			ValueType:      obx.GetField(2),
			Code:           obx.GetComponent(3, 1),
			Name:           obx.GetComponent(3, 2),
			CodingSystem:   obx.GetComponent(3, 3),
			Value:          unescapeHL7(obx.GetField(5)),
			Units:          unescapeHL7(obx.GetField(6)),
			ReferenceRange: unescapeHL7(obx.GetField(7)),
			AbnormalFlag:   obx.GetField(8),
			Status:         obx.GetField(11),
		})
	}
	return out
}
