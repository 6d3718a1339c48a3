package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"limit=5&offset=10", 5, 10},
		{"limit=500", MaxLimit, 0},
		{"limit=-1&offset=-3", DefaultLimit, 0},
		{"limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/extractions?"+tt.query, nil)
			c := e.NewContext(req, httptest.NewRecorder())
			p := FromContext(c)
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("expected %d/%d, got %d/%d", tt.wantLimit, tt.wantOffset, p.Limit, p.Offset)
			}
		})
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	if r := NewResponse(nil, 45, Params{Limit: 20, Offset: 20}); !r.HasMore {
		t.Error("expected more results after offset 20 of 45")
	}
	if r := NewResponse(nil, 40, Params{Limit: 20, Offset: 20}); r.HasMore {
		t.Error("expected the last page to have no more results")
	}
}

func TestResponse_WithLinks(t *testing.T) {
	q := url.Values{"engine": {"asiri"}}
	r := NewResponse([]int{}, 45, Params{Limit: 20, Offset: 10}).WithLinks("/api/v1/extractions", q)
	if r.Links == nil {
		t.Fatal("expected links")
	}
	if r.Links.Next != "/api/v1/extractions?engine=asiri&limit=20&offset=30" {
		t.Errorf("unexpected next link %q", r.Links.Next)
	}
	if r.Links.Previous != "/api/v1/extractions?engine=asiri&limit=20&offset=0" {
		t.Errorf("unexpected previous link %q", r.Links.Previous)
	}
	if q.Get("offset") != "" {
		t.Error("WithLinks must not modify the caller's query values")
	}

	single := NewResponse(nil, 3, Params{Limit: 20}).WithLinks("/x", nil)
	if single.Links != nil {
		t.Errorf("expected no links for a single page, got %+v", single.Links)
	}
}
