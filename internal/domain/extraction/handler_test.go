package extraction

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	svc, _ := newTestService(t)
	return NewHandler(svc), echo.New()
}

func jsonBody(t *testing.T, v interface{}) *strings.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return strings.NewReader(string(b))
}

func postContext(e *echo.Echo, body *strings.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func idContext(e *echo.Echo, id string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected an HTTP error, got %v", err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d", code, he.Code)
	}
}

func createExtraction(t *testing.T, h *Handler, e *echo.Echo) *Extraction {
	t.Helper()
	c, rec := postContext(e, jsonBody(t, Request{Text: asiriReport}))
	if err := h.CreateExtraction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out Extraction
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &out
}

func TestHandler_CreateExtraction(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := postContext(e, jsonBody(t, Request{Text: asiriReport}))

	if err := h.CreateExtraction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var out Extraction
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ValueCount != 11 || len(out.Result.LabValues) != 11 {
		t.Errorf("expected 11 values, got %d", out.ValueCount)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/v1/extractions/"+out.ID.String() {
		t.Errorf("unexpected Location %q", loc)
	}
}

func TestHandler_CreateExtraction_BadRequest(t *testing.T) {
	h, e := newTestHandler(t)

	c, _ := postContext(e, strings.NewReader(`{"text":`))
	expectHTTPError(t, h.CreateExtraction(c), http.StatusBadRequest)

	c, _ = postContext(e, jsonBody(t, Request{Text: asiriReport, EngineID: "nope"}))
	expectHTTPError(t, h.CreateExtraction(c), http.StatusBadRequest)
}

func TestHandler_CreateExtraction_BlankDocument(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := postContext(e, jsonBody(t, Request{Text: "   "}))

	if err := h.CreateExtraction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var out Extraction
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ValueCount != 0 || out.Result.LabValues == nil {
		t.Errorf("expected an empty value list, got %+v", out.Result.LabValues)
	}
}

func TestHandler_CreateExtractionBatch(t *testing.T) {
	h, e := newTestHandler(t)
	body := jsonBody(t, batchRequest{Documents: []Request{{Text: asiriReport}, {Text: asiriReport, EngineID: "nope"}}})
	c, rec := postContext(e, body)

	if err := h.CreateExtractionBatch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusMultiStatus {
		t.Errorf("expected 207, got %d", rec.Code)
	}
	var out batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Succeeded != 1 || out.Failed != 1 || len(out.Items) != 2 {
		t.Errorf("unexpected batch response %+v", out)
	}
}

func TestHandler_CreateExtractionBatch_Empty(t *testing.T) {
	h, e := newTestHandler(t)
	c, _ := postContext(e, strings.NewReader(`{"documents":[]}`))
	expectHTTPError(t, h.CreateExtractionBatch(c), http.StatusBadRequest)
}

func TestHandler_GetExtraction(t *testing.T) {
	h, e := newTestHandler(t)
	created := createExtraction(t, h, e)

	c, rec := idContext(e, created.ID.String())
	if err := h.GetExtraction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetExtraction_Errors(t *testing.T) {
	h, e := newTestHandler(t)

	c, _ := idContext(e, "not-a-uuid")
	expectHTTPError(t, h.GetExtraction(c), http.StatusBadRequest)

	c, _ = idContext(e, uuid.New().String())
	expectHTTPError(t, h.GetExtraction(c), http.StatusNotFound)
}

func TestHandler_ListExtractions(t *testing.T) {
	h, e := newTestHandler(t)
	createExtraction(t, h, e)
	createExtraction(t, h, e)

	req := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	rec := httptest.NewRecorder()
	if err := h.ListExtractions(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		Total int `json:"total"`
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Total != 2 || out.Limit != 10 {
		t.Errorf("expected total 2 limit 10, got %+v", out)
	}

	req = httptest.NewRequest(http.MethodGet, "/?requires_attention=maybe", nil)
	expectHTTPError(t, h.ListExtractions(e.NewContext(req, httptest.NewRecorder())), http.StatusBadRequest)
}

func TestHandler_GetExtractionFHIR(t *testing.T) {
	h, e := newTestHandler(t)
	created := createExtraction(t, h, e)

	c, rec := idContext(e, created.ID.String())
	if err := h.GetExtractionFHIR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, mimeFHIR) {
		t.Errorf("expected content type %s, got %s", mimeFHIR, ct)
	}
	var bundle map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if bundle["resourceType"] != "Bundle" || bundle["type"] != "collection" {
		t.Errorf("unexpected bundle header %v %v", bundle["resourceType"], bundle["type"])
	}
	if entries, _ := bundle["entry"].([]interface{}); len(entries) != 12 {
		t.Errorf("expected 12 entries, got %d", len(entries))
	}
}

func TestHandler_GetExtractionHL7(t *testing.T) {
	h, e := newTestHandler(t)
	created := createExtraction(t, h, e)

	c, rec := idContext(e, created.ID.String())
	if err := h.GetExtractionHL7(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(rec.Body.String(), "MSH|^~\\&|LABEXTRACT|ASIRI LABORATORIES|") {
		t.Errorf("unexpected message start %q", rec.Body.String())
	}
	if got := strings.Count(rec.Body.String(), "\rOBX|"); got != 11 {
		t.Errorf("expected 11 OBX segments, got %d", got)
	}
}

func TestHandler_GetExtractionHL7_NoValues(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := postContext(e, jsonBody(t, Request{Text: "hello world"}))
	if err := h.CreateExtraction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var created Extraction
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	c, _ = idContext(e, created.ID.String())
	expectHTTPError(t, h.GetExtractionHL7(c), http.StatusUnprocessableEntity)
}

func TestHandler_GetExtractionXLSX(t *testing.T) {
	h, e := newTestHandler(t)
	created := createExtraction(t, h, e)

	c, rec := idContext(e, created.ID.String())
	if err := h.GetExtractionXLSX(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != mimeXLSX {
		t.Errorf("expected content type %s, got %s", mimeXLSX, ct)
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), created.ID.String()) {
		t.Errorf("expected the id in the file name, got %q", rec.Header().Get(echo.HeaderContentDisposition))
	}
	// xlsx files are zip archives
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Error("expected a zip payload")
	}
}

func TestHandler_Engines(t *testing.T) {
	h, e := newTestHandler(t)

	rec := httptest.NewRecorder()
	if err := h.ListEngines(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var infos []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("expected 2 engines, got %d", len(infos))
	}

	c, rec := idContext(e, "generic")
	if err := h.GetEngine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = idContext(e, "nope")
	expectHTTPError(t, h.GetEngine(c), http.StatusNotFound)
}

func TestHandler_DetectEngine(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := postContext(e, jsonBody(t, Request{Text: asiriReport}))

	if err := h.DetectEngine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out DetectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Selected != "asiri" || out.Detections[0].Score != 0.9 {
		t.Errorf("unexpected detection %+v", out)
	}
}

func TestHandler_ExtractionHistory(t *testing.T) {
	h, e := newTestHandler(t)
	created := createExtraction(t, h, e)

	c, rec := postContext(e, jsonBody(t, Request{Text: asiriReport}))
	if err := h.ExtractionHistory(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out []Extraction
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 || out[0].ID != created.ID {
		t.Errorf("expected the earlier extraction, got %v", out)
	}
}
