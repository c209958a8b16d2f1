package xmlrpc

import (
	"encoding/xml"
	"strconv"

	"github.com/polyrpc/polyrpc/codec"
)

// Formatter implements codec.Formatter, writing one `<value>…</value>`
// element tree per top-level Decompose call. It writes directly to the
// sink as each call arrives — no buffering of the whole tree, per
// spec.md §4.2.
type Formatter struct {
	w     codec.ByteSink
	alias AliasTable
	err   error
}

// NewFormatter returns a Formatter writing to w, using alias to resolve
// typeName overrides (nil for none).
func NewFormatter(w codec.ByteSink, alias AliasTable) *Formatter {
	return &Formatter{w: w, alias: alias}
}

func (f *Formatter) write(s string) {
	if f.err != nil {
		return
	}
	_, f.err = f.w.Write([]byte(s))
}

func (f *Formatter) writeEscaped(s string) {
	if f.err != nil {
		return
	}
	f.err = xml.EscapeText(asWriter{f}, []byte(s))
}

// asWriter adapts Formatter's error-sticky write to io.Writer for
// xml.EscapeText.
type asWriter struct{ f *Formatter }

func (w asWriter) Write(p []byte) (int, error) {
	w.f.write(string(p))
	return len(p), w.f.err
}

func (f *Formatter) openValue() {
	f.write("<" + tagValue + ">")
}

func (f *Formatter) closeValue() {
	f.write("</" + tagValue + ">")
}

func (f *Formatter) scalarTag(def, typeName string) string {
	return f.alias.Resolve(typeName, def)
}

func (f *Formatter) writeScalar(tag, body string) {
	f.openValue()
	f.write("<" + tag + ">")
	f.write(body)
	f.write("</" + tag + ">")
	f.closeValue()
}

func (f *Formatter) AddValueString(name, typeName, value string) error {
	tag := f.scalarTag(tagString, typeName)
	f.openValue()
	f.write("<" + tag + ">")
	f.writeEscaped(value)
	f.write("</" + tag + ">")
	f.closeValue()
	return f.err
}

func (f *Formatter) AddValueWideString(name, typeName string, value []rune) error {
	return f.AddValueString(name, typeName, string(value))
}

func (f *Formatter) AddValueBool(name, typeName string, value bool) error {
	tag := f.scalarTag(tagBoolean, typeName)
	if value {
		f.writeScalar(tag, "1")
	} else {
		f.writeScalar(tag, "0")
	}
	return f.err
}

func (f *Formatter) AddValueInt(name, typeName string, value int64) error {
	tag := f.scalarTag(tagInt, typeName)
	f.writeScalar(tag, strconv.FormatInt(value, 10))
	return f.err
}

func (f *Formatter) AddValueUint(name, typeName string, value uint64) error {
	tag := f.scalarTag(tagInt, typeName)
	f.writeScalar(tag, strconv.FormatUint(value, 10))
	return f.err
}

func (f *Formatter) AddValueFloat(name, typeName string, value float64) error {
	tag := f.scalarTag(tagDouble, typeName)
	f.writeScalar(tag, strconv.FormatFloat(value, 'g', -1, 64))
	return f.err
}

// AddNull emits the conventional `<nil/>` extension element. Standard
// XML-RPC has no null scalar; this is the one vocabulary element this
// package adds beyond spec.md §4.4's table, matching the de facto
// convention most XML-RPC implementations already use.
func (f *Formatter) AddNull(name, typeName string) error {
	f.openValue()
	f.write("<nil/>")
	f.closeValue()
	return f.err
}

func (f *Formatter) BeginArray(name, typeName string) error {
	f.openValue()
	f.write("<" + tagArray + "><" + tagData + ">")
	return f.err
}

func (f *Formatter) FinishArray() error {
	f.write("</" + tagData + "></" + tagArray + ">")
	f.closeValue()
	return f.err
}

func (f *Formatter) BeginObject(name, typeName string) error {
	f.openValue()
	f.write("<" + tagStruct + ">")
	return f.err
}

func (f *Formatter) BeginMember(name string) error {
	f.write("<" + tagMember + "><" + tagName + ">")
	f.writeEscaped(name)
	f.write("</" + tagName + ">")
	return f.err
}

func (f *Formatter) FinishMember() error {
	f.write("</" + tagMember + ">")
	return f.err
}

func (f *Formatter) FinishObject() error {
	f.write("</" + tagStruct + ">")
	f.closeValue()
	return f.err
}

func (f *Formatter) Finish() error { return f.err }
