/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cratemeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// Value is the generic extra-metadata type. Decoding into it is lossless:
// objects become map[string]any, arrays []any and numbers json.Number.
type Value = any

// Root is the decoded `cargo metadata --format-version=1` document.
// M is the type the per-package `metadata` table decodes into.
type Root[M any] struct {
	Packages        []Package[M] `json:"packages"`
	TargetDirectory string       `json:"target_directory"`
}

// Package describes one workspace member as reported by cargo
type Package[M any] struct {
	Name         string   `json:"name"`
	Authors      []string `json:"authors"`
	Version      string   `json:"version"`
	Description  *string  `json:"description"`
	ManifestPath string   `json:"manifest_path"`
	Targets      []Target `json:"targets"`
	// Metadata is nil when the manifest has no [package.metadata] table.
	Metadata *M `json:"metadata"`
}

// Target describes one build target of a package
type Target struct {
	Kind       []string `json:"kind"`
	CrateTypes []string `json:"crate_types"`
	Name       string   `json:"name"`
}

// libraryKinds are the target kinds cargo emits for library targets.
var libraryKinds = []string{"lib", "rlib", "dylib", "cdylib", "staticlib", "proc-macro"}

// Decode validates data against the metadata schema and decodes it.
// Unknown fields are ignored; missing required fields and extra-metadata
// that does not fit M fail with a KindDecode error.
func Decode[M any](data []byte) (*Root[M], error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root Root[M]
	if err := dec.Decode(&root); err != nil {
		return nil, newError(KindDecode, "decode", "", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, newError(KindDecode, "decode", "", errors.New("trailing data after metadata document"))
	}
	if root.Packages == nil {
		root.Packages = []Package[M]{}
	}
	return &root, nil
}

// UnmarshalJSON reads only the exact field names of the metadata schema.
func (r *Root[M]) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	var out Root[M]
	if err := decodeField(fields, "packages", &out.Packages); err != nil {
		return err
	}
	if err := decodeField(fields, "target_directory", &out.TargetDirectory); err != nil {
		return err
	}
	*r = out
	return nil
}

// UnmarshalJSON reads only the exact field names of the metadata schema.
func (p *Package[M]) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	var out Package[M]
	for _, f := range []struct {
		key string
		dst any
	}{
		{"name", &out.Name},
		{"authors", &out.Authors},
		{"version", &out.Version},
		{"description", &out.Description},
		{"manifest_path", &out.ManifestPath},
		{"targets", &out.Targets},
		{"metadata", &out.Metadata},
	} {
		if err := decodeField(fields, f.key, f.dst); err != nil {
			return err
		}
	}
	*p = out
	return nil
}

// UnmarshalJSON reads only the exact field names of the metadata schema.
func (t *Target) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	var out Target
	if err := decodeField(fields, "kind", &out.Kind); err != nil {
		return err
	}
	if err := decodeField(fields, "crate_types", &out.CrateTypes); err != nil {
		return err
	}
	if err := decodeField(fields, "name", &out.Name); err != nil {
		return err
	}
	*t = out
	return nil
}

// objectFields splits a JSON object into its raw members, keyed case-sensitively.
func objectFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// decodeField decodes fields[key] into dst, leaving dst untouched when absent.
func decodeField(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	return nil
}

// Encode renders r back into the metadata schema.
func (r *Root[M]) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, newError(KindDecode, "encode", "", err)
	}
	return data, nil
}

// Package returns the first package with the given name.
func (r *Root[M]) Package(name string) (*Package[M], bool) {
	for i := range r.Packages {
		if r.Packages[i].Name == name {
			return &r.Packages[i], true
		}
	}
	return nil, false
}

// Library returns the package's library target, if it has one.
func (p *Package[M]) Library() (*Target, bool) {
	for i := range p.Targets {
		for _, k := range libraryKinds {
			if p.Targets[i].IsKind(k) {
				return &p.Targets[i], true
			}
		}
	}
	return nil, false
}

// IsKind reports whether kind is among the target's kinds.
func (t *Target) IsKind(kind string) bool {
	for _, k := range t.Kind {
		if k == kind {
			return true
		}
	}
	return false
}

// Narrow returns a copy of r holding only the packages named name whose
// manifest_path equals manifestPath byte for byte, in their original order.
func (r *Root[M]) Narrow(name, manifestPath string) *Root[M] {
	return &Root[M]{
		Packages:        filterPackages(r.Packages, name, manifestPath),
		TargetDirectory: r.TargetDirectory,
	}
}

// filterPackages keeps the packages whose name and manifest path match exactly.
func filterPackages[M any](pkgs []Package[M], name, manifestPath string) []Package[M] {
	kept := make([]Package[M], 0, 1)
	for _, p := range pkgs {
		if p.Name == name && p.ManifestPath == manifestPath {
			kept = append(kept, p)
		}
	}
	return kept
}
