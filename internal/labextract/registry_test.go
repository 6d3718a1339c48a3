package labextract

import (
	"errors"
	"testing"
)

type stubEngine struct {
	id    string
	score float64
}

func (s stubEngine) Info() EngineInfo                { return EngineInfo{ID: s.id, Name: s.id, Version: "0"} }
func (s stubEngine) Extract(string) ExtractionResult { return ExtractionResult{EngineID: s.id} }
func (s stubEngine) CanHandle(string) float64        { return s.score }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubEngine{id: "a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e, err := r.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Info().ID != "a" {
		t.Errorf("expected engine a, got %s", e.Info().ID)
	}
}

func TestRegistry_DuplicateID(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubEngine{id: "a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(stubEngine{id: "a", score: 1}); err == nil {
		t.Error("expected an error for a duplicate id")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 engine, got %d", r.Len())
	}
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nil); err == nil {
		t.Error("expected an error for a nil engine")
	}
	if err := r.Register(stubEngine{}); err == nil {
		t.Error("expected an error for an empty id")
	}
}

func TestRegistry_UnknownEngine(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	if !errors.Is(err, ErrEngineNotRegistered) {
		t.Errorf("expected ErrEngineNotRegistered, got %v", err)
	}
}

func TestRegistry_ListOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		if err := r.Register(stubEngine{id: id}); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	infos := r.List()
	for i, want := range []string{"c", "a", "b"} {
		if infos[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, infos[i].ID)
		}
	}
}

func TestRegistry_Detect(t *testing.T) {
	r := NewRegistry()
	if _, _, ok := r.Detect("text"); ok {
		t.Error("expected no detection on an empty registry")
	}
	for _, e := range []stubEngine{{id: "low", score: 0.2}, {id: "first", score: 0.8}, {id: "tie", score: 0.8}} {
		if err := r.Register(e); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	e, score, ok := r.Detect("text")
	if !ok {
		t.Fatal("expected a detection")
	}
	if e.Info().ID != "first" || score != 0.8 {
		t.Errorf("expected first@0.8, got %s@%v", e.Info().ID, score)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	infos := r.List()
	if len(infos) != 2 || infos[0].ID != AsiriID || infos[1].ID != GenericID {
		t.Fatalf("unexpected engines %+v", infos)
	}

	e, score, ok := r.Detect(asiriReport)
	if !ok || e.Info().ID != AsiriID || score != 0.9 {
		t.Errorf("expected asiri@0.9, got %v@%v", e, score)
	}
	e, _, _ = r.Detect("TEST RESULT UNIT REFERENCE RANGE\nSERUM CREATININE 88")
	if e.Info().ID != GenericID {
		t.Errorf("expected the generic engine, got %s", e.Info().ID)
	}
}
