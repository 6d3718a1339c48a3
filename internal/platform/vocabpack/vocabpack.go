// Package vocabpack loads additional rule engines from JSON files. Each file
// holds one engine definition (vocabulary, layout patterns, sections and
// detection markers) and is validated against an embedded JSON Schema
// before it is compiled.
package vocabpack

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ehr/labextract/internal/labextract"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "labextract-pack.json"

var packSchema = mustCompile()

func mustCompile() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("vocabpack: add schema: %v", err))
	}
	return compiler.MustCompile(schemaURL)
}

// Parse validates data against the pack schema and decodes it.
func Parse(data []byte) (labextract.EngineSpec, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return labextract.EngineSpec{}, fmt.Errorf("decode pack: %w", err)
	}
	if err := packSchema.Validate(doc); err != nil {
		return labextract.EngineSpec{}, fmt.Errorf("pack does not match schema: %w", err)
	}

	var spec labextract.EngineSpec
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return labextract.EngineSpec{}, fmt.Errorf("decode pack: %w", err)
	}
	return spec, nil
}

// LoadFile reads and parses one pack file.
func LoadFile(path string) (labextract.EngineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return labextract.EngineSpec{}, fmt.Errorf("read pack %s: %w", path, err)
	}
	spec, err := Parse(data)
	if err != nil {
		return labextract.EngineSpec{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return spec, nil
}

// LoadDir parses every *.json file in dir in file-name order. Any invalid
// file fails the whole load.
func LoadDir(dir string) ([]labextract.EngineSpec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pack directory %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	specs := make([]labextract.EngineSpec, 0, len(names))
	for _, name := range names {
		spec, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Register compiles every pack in dir and adds it to reg. It returns the ids
// registered, in order.
func Register(reg *labextract.Registry, dir string, opts ...labextract.Option) ([]string, error) {
	specs, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		engine, err := labextract.NewRuleEngine(spec, opts...)
		if err != nil {
			return ids, fmt.Errorf("pack %s: %w", spec.ID, err)
		}
		if err := reg.Register(engine); err != nil {
			return ids, fmt.Errorf("pack %s: %w", spec.ID, err)
		}
		ids = append(ids, spec.ID)
	}
	return ids, nil
}
