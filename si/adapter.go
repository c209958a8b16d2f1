package si

import "github.com/polyrpc/polyrpc/codec"

// BuilderFormatter adapts a codec.Builder (the Composer's shape) to the
// codec.Formatter interface a Decomposer drives. It exists so a
// Decomposer can walk one tree directly into a Composer — useful for
// tests and for any in-process call path that skips the wire entirely.
// Real wire codecs implement Formatter directly against their own byte
// sink instead of going through this adapter.
type BuilderFormatter struct {
	b codec.Builder
}

// NewBuilderFormatter returns a Formatter that forwards every call to b.
func NewBuilderFormatter(b codec.Builder) *BuilderFormatter {
	return &BuilderFormatter{b: b}
}

func (a *BuilderFormatter) AddValueString(name, typeName, value string) error {
	return a.b.SetValueString(name, typeName, value)
}
func (a *BuilderFormatter) AddValueWideString(name, typeName string, value []rune) error {
	return a.b.SetValueWideString(name, typeName, value)
}
func (a *BuilderFormatter) AddValueBool(name, typeName string, value bool) error {
	return a.b.SetValueBool(name, typeName, value)
}
func (a *BuilderFormatter) AddValueInt(name, typeName string, value int64) error {
	return a.b.SetValueInt(name, typeName, value)
}
func (a *BuilderFormatter) AddValueUint(name, typeName string, value uint64) error {
	return a.b.SetValueUint(name, typeName, value)
}
func (a *BuilderFormatter) AddValueFloat(name, typeName string, value float64) error {
	return a.b.SetValueFloat(name, typeName, value)
}
func (a *BuilderFormatter) AddNull(name, typeName string) error {
	return a.b.SetNull(name, typeName)
}
func (a *BuilderFormatter) BeginArray(name, typeName string) error {
	return a.b.BeginArray(name, typeName)
}
func (a *BuilderFormatter) FinishArray() error { return a.b.EndArray() }
func (a *BuilderFormatter) BeginObject(name, typeName string) error {
	return a.b.BeginObject(name, typeName)
}
func (a *BuilderFormatter) BeginMember(name string) error { return a.b.BeginMember(name) }
func (a *BuilderFormatter) FinishMember() error           { return a.b.EndMember() }
func (a *BuilderFormatter) FinishObject() error           { return a.b.EndObject() }
func (a *BuilderFormatter) Finish() error                 { return nil }
