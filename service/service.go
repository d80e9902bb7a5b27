// Package service defines the Service Host Adapter: the boundary between
// the caliper facade and whatever external system consumes its data —
// a metadata Writer (CSV file, Redis, OTel spans, or none) plus a
// Registry a writer can use to resolve attribute names for its output.
package service

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/gocaliper/caliper/attribute"
	"github.com/gocaliper/caliper/node"
	"github.com/gocaliper/caliper/query"
)

// Registry is the subset of attribute.Registry a Writer needs to turn
// attribute ids back into names for human-readable output.
type Registry interface {
	Get(id int) (*attribute.Attribute, bool)
}

// Record is one packed-context snapshot handed to a Writer, tagged with
// the node it was captured at.
type Record struct {
	EnvironmentID int
	NodeID        int
	Context       []query.Record
}

// Writer persists metadata produced by the facade. WriteMetadata
// reports false (never an error — per spec §8 scenario 6, an unknown or
// failing writer degrades to "false", it does not abort the caller) when
// the record could not be written.
type Writer interface {
	// Name identifies the writer for config.Output matching and logging.
	Name() string

	// WriteMetadata persists one record, returning false on failure.
	WriteMetadata(rec Record) bool

	// Close releases any resources (file handles, connections).
	Close() error
}

// New resolves a config.Output name to a concrete Writer. An unrecognized
// name returns a NoneWriter and false, matching spec §8 scenario 6's
// "unknown writer name" path — callers that care should check the bool
// themselves; the returned writer is always safe to use.
func New(name string, reg Registry, w io.Writer) (Writer, bool) {
	switch name {
	case "", "csv":
		return NewCSVWriter(reg, w), true
	case "none":
		return NoneWriter{}, true
	default:
		return NoneWriter{}, false
	}
}

// NoneWriter discards everything and always reports success, matching
// write_metadata()'s documented "output=none always returns true"
// contract.
type NoneWriter struct{}

func (NoneWriter) Name() string                { return "none" }
func (NoneWriter) WriteMetadata(Record) bool   { return true }
func (NoneWriter) Close() error                { return nil }

// CSVWriter renders each record as one CSV row: environment id, node id,
// then attribute-name=value pairs. This is the default writer — the
// simplest concrete implementation of write_metadata, with no external
// dependency.
type CSVWriter struct {
	mu  sync.Mutex
	reg Registry
	out io.Writer
}

// NewCSVWriter creates a CSVWriter. reg resolves attribute ids to names;
// if nil, raw numeric ids are written instead.
func NewCSVWriter(reg Registry, out io.Writer) *CSVWriter {
	return &CSVWriter{reg: reg, out: out}
}

func (w *CSVWriter) Name() string { return "csv" }

func (w *CSVWriter) WriteMetadata(rec Record) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder
	b.WriteString(strconv.Itoa(rec.EnvironmentID))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(rec.NodeID))

	for _, r := range rec.Context {
		name := strconv.Itoa(r.AttributeID)
		if w.reg != nil {
			if a, ok := w.reg.Get(r.AttributeID); ok {
				name = a.Name
			}
		}
		b.WriteByte(',')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(string(r.Value)))
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w.out, b.String())
	return err == nil
}

func (w *CSVWriter) Close() error { return nil }

// NodeLabel formats a node trie path component for CSV/debug output,
// e.g. `request_id="42"`. Used by cmd/calipertool's dump/nodes commands.
func NodeLabel(reg Registry, info node.NodeInfo) string {
	if info.ID == node.Root {
		return "<root>"
	}
	name := strconv.Itoa(info.AttributeID)
	if reg != nil {
		if a, ok := reg.Get(info.AttributeID); ok {
			name = a.Name
		}
	}
	if info.Value != nil {
		return fmt.Sprintf("%s=%q", name, string(info.Value))
	}
	return name
}
