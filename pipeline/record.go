package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"path"
)

// Common metadata keys set by sources and stages.
const (
	MetaSource = "source" // absolute path of the file the record was read from
	MetaRoot   = "root"   // root directory the record path is relative to
)

// Record is one file flowing through a pipeline. It is immutable: accessors
// return copies and the With* methods return new records, so two stages
// never share a buffer.
type Record struct {
	path    string
	content []byte
	meta    map[string]string
}

// NewRecord creates a record with a slash-separated relative path.
// The content is copied.
func NewRecord(p string, content []byte) Record {
	return Record{path: cleanPath(p), content: bytes.Clone(content)}
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	c := path.Clean("/" + p)
	return c[1:]
}

// Path returns the relative, slash-separated path of the record.
func (r Record) Path() string { return r.path }

// Ext returns the extension of the record path, including the dot.
func (r Record) Ext() string { return path.Ext(r.path) }

// Content returns a copy of the record content.
func (r Record) Content() []byte { return bytes.Clone(r.content) }

// Len returns the content length in bytes.
func (r Record) Len() int { return len(r.content) }

// Reader returns a read-only reader over the content.
func (r Record) Reader() io.Reader { return bytes.NewReader(r.content) }

// Meta returns the metadata value for key.
func (r Record) Meta(key string) (string, bool) {
	v, ok := r.meta[key]
	return v, ok
}

// MetaMap returns a copy of all metadata.
func (r Record) MetaMap() map[string]string {
	return maps.Clone(r.meta)
}

// WithPath returns a copy of r with a new path.
func (r Record) WithPath(p string) Record {
	r.path = cleanPath(p)
	return r
}

// WithContent returns a copy of r with new content. The content is copied.
func (r Record) WithContent(content []byte) Record {
	r.content = bytes.Clone(content)
	return r
}

// WithMeta returns a copy of r with key set to value.
func (r Record) WithMeta(key, value string) Record {
	m := make(map[string]string, len(r.meta)+1)
	maps.Copy(m, r.meta)
	m[key] = value
	r.meta = m
	return r
}

// Equal reports whether two records have the same path, content and metadata.
func (r Record) Equal(o Record) bool {
	return r.path == o.path && bytes.Equal(r.content, o.content) && maps.Equal(r.meta, o.meta)
}

func (r Record) String() string {
	return fmt.Sprintf("%s (%d bytes)", r.path, len(r.content))
}
