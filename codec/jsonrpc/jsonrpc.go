// Package jsonrpc implements the JSON-RPC wire codec of spec.md §4.5:
// an incremental Formatter that always emits strict, valid JSON, paired
// with a Parser that tolerates a deliberately wider grammar on read —
// line (//) and block (/* */) comments, single-quoted strings, trailing
// commas before a closing bracket, and unquoted identifier-like object
// keys. spec.md's Open Question on this asymmetry is resolved in favor
// of "be conservative in what you emit, liberal in what you accept":
// every other implementation's strict output still parses, and
// hand-edited config-like request bodies don't need to be JSON-perfect.
package jsonrpc

// FormatFlags controls the Formatter's output shape. None of these
// affect what the Parser accepts.
type FormatFlags struct {
	// Beautify inserts newlines and indentation between elements.
	Beautify bool
	// PlainKey emits object keys unquoted when they are a valid bare
	// identifier (matches what the Parser accepts back), quoting them
	// regardless when they are not.
	PlainKey bool
}
