// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package nidm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knakk/rdf"
	"github.com/piprate/json-gold/ld"
)

// RDF serialization formats handled by the aggregator.
const (
	formatTurtle = "turtle"
	formatJSONLD = "json-ld"
)

// guessFormat maps a file extension to an RDF serialization. Unknown
// extensions return "".
func guessFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttl", ".turtle", ".n3":
		return formatTurtle
	case ".json", ".jsonld", ".json-ld":
		return formatJSONLD
	}
	return ""
}

// Graph holds a deduplicated set of RDF triples merged from multiple
// serialized sources.
type Graph struct {
	triples map[string]rdf.Triple
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{triples: make(map[string]rdf.Triple)}
}

// Len returns the number of distinct triples.
func (g *Graph) Len() int {
	return len(g.triples)
}

func (g *Graph) add(ts []rdf.Triple) {
	for _, t := range ts {
		g.triples[t.Serialize(rdf.NTriples)] = t
	}
}

// sorted returns the triples in a stable order for serialization.
func (g *Graph) sorted() []rdf.Triple {
	keys := make([]string, 0, len(g.triples))
	for k := range g.triples {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ts := make([]rdf.Triple, len(keys))
	for i, k := range keys {
		ts[i] = g.triples[k]
	}
	return ts
}

// ntriples returns the whole graph as an N-Triples document.
func (g *Graph) ntriples() string {
	var b strings.Builder
	for _, t := range g.sorted() {
		b.WriteString(t.Serialize(rdf.NTriples))
	}
	return b.String()
}

// ParseFile merges the triples of one Turtle or JSON-LD file into the
// graph. The serialization is guessed from the extension.
func (g *Graph) ParseFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	switch guessFormat(path) {
	case formatTurtle:
		dec := rdf.NewTripleDecoder(bytes.NewReader(data), rdf.Turtle)
		ts, err := dec.DecodeAll()
		if err != nil {
			return fmt.Errorf("parsing turtle %s: %w", path, err)
		}
		g.add(ts)
	case formatJSONLD:
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing JSON-LD %s: %w", path, err)
		}
		proc := ld.NewJsonLdProcessor()
		opts := ld.NewJsonLdOptions("")
		opts.Format = "application/n-quads"
		quads, err := proc.ToRDF(doc, opts)
		if err != nil {
			return fmt.Errorf("converting JSON-LD %s to RDF: %w", path, err)
		}
		dec := rdf.NewTripleDecoder(strings.NewReader(quads.(string)), rdf.NTriples)
		ts, err := dec.DecodeAll()
		if err != nil {
			return fmt.Errorf("parsing quads from %s: %w", path, err)
		}
		g.add(ts)
	default:
		return fmt.Errorf("unsupported RDF format for %s", path)
	}
	return nil
}

// WriteTurtle serializes the graph as Turtle to path.
func (g *Graph) WriteTurtle(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	enc := rdf.NewTripleEncoder(f, rdf.Turtle)
	for _, t := range g.sorted() {
		if err := enc.Encode(t); err != nil {
			f.Close()
			return fmt.Errorf("encoding turtle: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing turtle encoder: %w", err)
	}
	return f.Close()
}

// WriteJSONLD serializes the graph as expanded JSON-LD to path.
func (g *Graph) WriteJSONLD(path string) error {
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	doc, err := proc.FromRDF(g.ntriples(), opts)
	if err != nil {
		return fmt.Errorf("converting graph to JSON-LD: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON-LD: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
