package fhir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Meta         *Meta         `json:"meta,omitempty"`
	Identifier   *Identifier   `json:"identifier,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// NewCollectionBundle wraps resources in a collection Bundle. Each resource
// must carry resourceType and id; entries get a fullUrl of the form
// "<resourceType>/<id>".
func NewCollectionBundle(id string, ts time.Time, resources []map[string]interface{}) (*Bundle, error) {
	b := &Bundle{
		ResourceType: "Bundle",
		ID:           id,
		Type:         "collection",
		Timestamp:    &ts,
		Entry:        make([]BundleEntry, 0, len(resources)),
	}
	for i, r := range resources {
		rt, _ := r["resourceType"].(string)
		rid, _ := r["id"].(string)
		if rt == "" || rid == "" {
			return nil, fmt.Errorf("bundle entry %d: resourceType and id are required", i)
		}
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("bundle entry %d: %w", i, err)
		}
		b.Entry = append(b.Entry, BundleEntry{FullURL: FormatReference(rt, rid), Resource: raw})
	}
	total := len(b.Entry)
	b.Total = &total
	return b, nil
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}
