package jsonrpc

import (
	"encoding/json"
	"strconv"

	"github.com/polyrpc/polyrpc/codec"
)

type frameKind int

const (
	frameArray frameKind = iota
	frameObject
)

type frame struct {
	kind  frameKind
	count int
}

// Formatter implements codec.Formatter, emitting strict JSON
// incrementally. It never buffers a whole tree: every call writes
// directly to the sink, tracking only the small amount of state needed
// to place commas and brackets correctly (spec.md §4.2).
type Formatter struct {
	w     codec.ByteSink
	flags FormatFlags
	stack []frame
	err   error
}

// NewFormatter returns a Formatter writing to w under flags.
func NewFormatter(w codec.ByteSink, flags FormatFlags) *Formatter {
	return &Formatter{w: w, flags: flags}
}

func (f *Formatter) write(s string) {
	if f.err != nil {
		return
	}
	_, f.err = f.w.Write([]byte(s))
}

func (f *Formatter) depth() int { return len(f.stack) }

func (f *Formatter) newline() {
	if !f.flags.Beautify {
		return
	}
	f.write("\n")
	for i := 0; i < f.depth(); i++ {
		f.write("  ")
	}
}

// beforeValue emits the comma/newline/key prelude for the value about
// to be written and bumps the enclosing frame's element count. Call it
// immediately before writing any scalar, null, or container-open token.
func (f *Formatter) beforeValue(name string) {
	if len(f.stack) == 0 {
		return
	}
	top := &f.stack[len(f.stack)-1]
	if top.count > 0 {
		f.write(",")
	}
	f.newline()
	if top.kind == frameObject {
		f.writeKey(name)
	}
	top.count++
}

func (f *Formatter) writeKey(name string) {
	if f.flags.PlainKey && isPlainIdent(name) {
		f.write(name)
		f.write(":")
		return
	}
	f.write(quoteJSON(name))
	f.write(":")
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func quoteJSON(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func (f *Formatter) AddValueString(name, typeName, value string) error {
	f.beforeValue(name)
	f.write(quoteJSON(value))
	return f.err
}

func (f *Formatter) AddValueWideString(name, typeName string, value []rune) error {
	return f.AddValueString(name, typeName, string(value))
}

func (f *Formatter) AddValueBool(name, typeName string, value bool) error {
	f.beforeValue(name)
	if value {
		f.write("true")
	} else {
		f.write("false")
	}
	return f.err
}

func (f *Formatter) AddValueInt(name, typeName string, value int64) error {
	f.beforeValue(name)
	f.write(strconv.FormatInt(value, 10))
	return f.err
}

func (f *Formatter) AddValueUint(name, typeName string, value uint64) error {
	f.beforeValue(name)
	f.write(strconv.FormatUint(value, 10))
	return f.err
}

func (f *Formatter) AddValueFloat(name, typeName string, value float64) error {
	f.beforeValue(name)
	f.write(strconv.FormatFloat(value, 'g', -1, 64))
	return f.err
}

func (f *Formatter) AddNull(name, typeName string) error {
	f.beforeValue(name)
	f.write("null")
	return f.err
}

func (f *Formatter) BeginArray(name, typeName string) error {
	f.beforeValue(name)
	f.write("[")
	f.stack = append(f.stack, frame{kind: frameArray})
	return f.err
}

func (f *Formatter) FinishArray() error {
	fr := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	if fr.count > 0 {
		f.newline()
	}
	f.write("]")
	return f.err
}

func (f *Formatter) BeginObject(name, typeName string) error {
	f.beforeValue(name)
	f.write("{")
	f.stack = append(f.stack, frame{kind: frameObject})
	return f.err
}

func (f *Formatter) BeginMember(name string) error { return f.err }
func (f *Formatter) FinishMember() error           { return f.err }

func (f *Formatter) FinishObject() error {
	fr := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	if fr.count > 0 {
		f.newline()
	}
	f.write("}")
	return f.err
}

func (f *Formatter) Finish() error { return f.err }
