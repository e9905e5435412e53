package resmap

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// NodeRecord describes one cluster at one resolution level.
type NodeRecord struct {
	// Name uniquely identifies the node across all levels.
	Name string `json:"name"`

	// Value is the merge value the rung is derived from: the percentage
	// similarity at which the cluster holds together. Singleton clusters
	// use 100.
	Value float64 `json:"value"`

	// Size is the cluster's item count.
	Size int `json:"size"`

	// Quality is the cluster's normalized quality score, used for labels.
	Quality float64 `json:"quality,omitempty"`

	// MissingFraction is mass already unaccounted for upstream, before any
	// min-size filtering performed by [Assign].
	MissingFraction float64 `json:"missing_fraction,omitempty"`

	// Resolution tags the level the cluster was emitted at.
	Resolution int `json:"resolution,omitempty"`
}

// LinkRecord is one parent-to-child containment relation.
type LinkRecord struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// Document is the serialized resolution-map input: the stitched records for
// one multi-resolution run.
type Document struct {
	Nodes []NodeRecord `json:"nodes"`
	Links []LinkRecord `json:"links"`
}

// WriteDocument encodes a document as indented JSON.
func WriteDocument(doc Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteDocumentFile writes a document to a JSON file at path.
func WriteDocumentFile(doc Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteDocument(doc, f)
}

// ReadDocument decodes a document from r.
func ReadDocument(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

// ReadDocumentFile reads a document from a JSON file at path.
func ReadDocumentFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadDocument(f)
}
