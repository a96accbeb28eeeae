/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/cratemeta/pkg/cratemeta"
)

// Document is one metadata query result
type Document struct {
	// Manifest is the manifest path the query ran against
	Manifest string
	// Root is the decoded (and possibly narrowed) metadata
	Root *cratemeta.Root[cratemeta.Value]
	// Raw is the tool's stdout, used by the raw format
	Raw []byte
}

// Write renders docs to w in the given format.
// A single document is rendered bare; several become a list.
func Write(w io.Writer, format string, docs []Document) error {
	switch format {
	case "json", "":
		return writeJSON(w, docs)
	case "yaml":
		return writeYAML(w, docs)
	case "toml":
		return writeTOML(w, docs)
	case "table":
		return writeTable(w, docs)
	case "raw":
		return writeRaw(w, docs)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeJSON(w io.Writer, docs []Document) error {
	var v interface{}
	if len(docs) == 1 {
		v = docs[0].Root
	} else {
		roots := make([]*cratemeta.Root[cratemeta.Value], 0, len(docs))
		for _, d := range docs {
			roots = append(roots, d.Root)
		}
		v = roots
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeYAML(w io.Writer, docs []Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, d := range docs {
		tree, err := genericTree(d.Root)
		if err != nil {
			return err
		}
		if err := enc.Encode(tree); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
	}
	return enc.Close()
}

func writeTOML(w io.Writer, docs []Document) error {
	var tree interface{}
	if len(docs) == 1 {
		t, err := genericTree(docs[0].Root)
		if err != nil {
			return err
		}
		tree = t
	} else {
		list := make([]interface{}, 0, len(docs))
		for _, d := range docs {
			t, err := genericTree(d.Root)
			if err != nil {
				return err
			}
			list = append(list, t)
		}
		tree = map[string]interface{}{"workspaces": list}
	}

	data, err := toml.Marshal(dropNulls(tree))
	if err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func writeRaw(w io.Writer, docs []Document) error {
	for _, d := range docs {
		raw := bytes.TrimRight(d.Raw, "\n")
		if _, err := w.Write(raw); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

var tableHeader = []string{"NAME", "VERSION", "TARGETS", "MANIFEST"}

func writeTable(w io.Writer, docs []Document) error {
	rows := [][]string{tableHeader}
	for _, d := range docs {
		for _, p := range d.Root.Packages {
			targets := make([]string, 0, len(p.Targets))
			for _, t := range p.Targets {
				targets = append(targets, fmt.Sprintf("%s(%s)", t.Name, strings.Join(t.Kind, "|")))
			}
			rows = append(rows, []string{p.Name, p.Version, strings.Join(targets, ","), p.ManifestPath})
		}
	}

	widths := make([]int, len(tableHeader))
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				line.WriteString(cell)
				break
			}
			line.WriteString(runewidth.FillRight(cell, widths[i]))
			line.WriteString("  ")
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

// genericTree converts a root to maps and slices keyed by the JSON field
// names, which is what the YAML and TOML encoders expect.
func genericTree(root *cratemeta.Root[cratemeta.Value]) (interface{}, error) {
	data, err := root.Encode()
	if err != nil {
		return nil, err
	}
	var tree interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to convert metadata: %w", err)
	}
	return tree, nil
}

// dropNulls removes null map values and list items; TOML cannot express them.
func dropNulls(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = dropNulls(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(t))
		for _, val := range t {
			if val == nil {
				continue
			}
			out = append(out, dropNulls(val))
		}
		return out
	default:
		return v
	}
}
