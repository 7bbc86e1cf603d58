// Package fetch implements the multi-URL retrieval pipeline: ordered
// failover over a definition's URL chain and normalization of the
// heterogeneous responses into text or bytes.
package fetch

// ResultKind discriminates the variants of a raw fetch result.
type ResultKind int

// Raw fetch result variants.
const (
	ResultNone ResultKind = iota
	ResultJSON
	ResultText
	ResultBytes
)

// Result is the tagged union a raw fetch produces: a decoded JSON value,
// trimmed text, or raw bytes. The zero Result is the "none" variant
// returned by probe-only requests.
type Result struct {
	kind ResultKind
	json any
	text string
	data []byte
}

// JSONResult wraps a decoded JSON document.
func JSONResult(v any) Result { return Result{kind: ResultJSON, json: v} }

// TextResult wraps a text payload.
func TextResult(s string) Result { return Result{kind: ResultText, text: s} }

// BytesResult wraps a binary payload.
func BytesResult(b []byte) Result { return Result{kind: ResultBytes, data: b} }

// Kind returns the populated variant.
func (r Result) Kind() ResultKind { return r.kind }

// JSON returns the decoded JSON value; valid only for ResultJSON.
func (r Result) JSON() any { return r.json }

// Text returns the text payload; valid only for ResultText.
func (r Result) Text() string { return r.text }

// Bytes returns the binary payload; valid only for ResultBytes.
func (r Result) Bytes() []byte { return r.data }
