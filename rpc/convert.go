package rpc

import (
	"reflect"

	"github.com/polyrpc/polyrpc/si"
)

// ValueToSI converts a Go value into a SerializationInfo tree. A value
// implementing si.Marshaler is asked to describe itself directly (the
// one user-visible extension point, per spec.md §4.1); everything else
// goes through a reflect-based default mapping: structs become Object
// nodes keyed by field name (or an `rpc:"name"` tag), slices/arrays
// become Array nodes, maps with string keys become Object nodes, and
// scalars map onto the matching si.Scalar arm.
func ValueToSI(v any) (*si.Info, error) {
	if v == nil {
		return si.NewVoid(), nil
	}
	if m, ok := v.(si.Marshaler); ok {
		return m.MarshalSI(), nil
	}
	return reflectToSI(reflect.ValueOf(v))
}

// copySIInto copies src's category, type name, scalar, and members into
// dst using only si's public API, leaving dst's own Name untouched —
// that's how a freshly built subtree (from reflectToSI, or from a
// Marshaler) gets attached under the name a struct field or array
// index already gave it via AddMember.
func copySIInto(dst, src *si.Info) error {
	dst.SetTypeName(src.TypeName())
	switch src.Category() {
	case si.Void:
		dst.SetNull()
		return nil
	case si.Value:
		return dst.SetScalar(src.Scalar())
	case si.Array:
		for _, m := range src.Members() {
			if err := copySIInto(dst.AddMember(""), m); err != nil {
				return err
			}
		}
		return nil
	case si.Object:
		for _, m := range src.Members() {
			if err := copySIInto(dst.AddMember(m.Name()), m); err != nil {
				return err
			}
		}
		return nil
	default:
		return si.NewSerializationError("unknown category during conversion")
	}
}

func reflectToSI(rv reflect.Value) (*si.Info, error) {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return si.NewVoid(), nil
		}
		rv = rv.Elem()
	}
	if rv.IsValid() && rv.CanInterface() {
		if m, ok := rv.Interface().(si.Marshaler); ok {
			return m.MarshalSI(), nil
		}
	}
	switch rv.Kind() {
	case reflect.Bool:
		return si.NewValue(si.Scalar{Kind: si.ScalarBool, B: rv.Bool()}), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return si.NewValue(si.Scalar{Kind: si.ScalarInt, I: rv.Int()}), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return si.NewValue(si.Scalar{Kind: si.ScalarUint, U: rv.Uint()}), nil
	case reflect.Float32, reflect.Float64:
		return si.NewValue(si.Scalar{Kind: si.ScalarFloat, F: rv.Float()}), nil
	case reflect.String:
		return si.NewValue(si.Scalar{Kind: si.ScalarString, Str: rv.String()}), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return si.NewVoid(), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return si.NewValue(si.Scalar{Kind: si.ScalarString, Str: string(b)}), nil
		}
		arr := si.NewArray()
		for i := 0; i < rv.Len(); i++ {
			child, err := reflectToSI(rv.Index(i))
			if err != nil {
				return nil, err
			}
			if err := copySIInto(arr.AddMember(""), child); err != nil {
				return nil, err
			}
		}
		return arr, nil
	case reflect.Map:
		if rv.IsNil() {
			return si.NewVoid(), nil
		}
		obj := si.NewObject()
		iter := rv.MapRange()
		for iter.Next() {
			child, err := reflectToSI(iter.Value())
			if err != nil {
				return nil, err
			}
			if err := copySIInto(obj.AddMember(toString(iter.Key())), child); err != nil {
				return nil, err
			}
		}
		return obj, nil
	case reflect.Struct:
		obj := si.NewObject()
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := fieldName(f)
			if name == "-" {
				continue
			}
			child, err := reflectToSI(rv.Field(i))
			if err != nil {
				return nil, err
			}
			if err := copySIInto(obj.AddMember(name), child); err != nil {
				return nil, err
			}
		}
		return obj, nil
	case reflect.Invalid:
		return si.NewVoid(), nil
	default:
		return nil, si.NewSerializationError("cannot convert kind " + rv.Kind().String() + " to SerializationInfo")
	}
}

func toString(rv reflect.Value) string {
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	info, err := reflectToSI(rv)
	if err != nil {
		return ""
	}
	s, _ := info.GetString()
	return s
}

func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("rpc"); ok && tag != "" {
		return tag
	}
	return f.Name
}

// SIToValue populates out (a non-nil pointer) from a SerializationInfo
// tree. A target implementing si.Unmarshaler is handed the tree
// directly; everything else is the reflect-based inverse of ValueToSI.
func SIToValue(info *si.Info, out any) error {
	if u, ok := out.(si.Unmarshaler); ok {
		return u.UnmarshalSI(info)
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return si.NewSerializationError("SIToValue: out must be a non-nil pointer")
	}
	return siIntoReflect(info, rv.Elem())
}

func siIntoReflect(info *si.Info, rv reflect.Value) error {
	if info == nil || info.IsNull() {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return siIntoReflect(info, rv.Elem())
	}
	if rv.CanAddr() {
		if u, ok := rv.Addr().Interface().(si.Unmarshaler); ok {
			return u.UnmarshalSI(info)
		}
	}
	switch rv.Kind() {
	case reflect.Bool:
		v, err := info.GetBool()
		if err != nil {
			return err
		}
		rv.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := info.GetInt()
		if err != nil {
			return err
		}
		rv.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := info.GetUint()
		if err != nil {
			return err
		}
		rv.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := info.GetFloat()
		if err != nil {
			return err
		}
		rv.SetFloat(v)
	case reflect.String:
		v, err := info.GetString()
		if err != nil {
			return err
		}
		rv.SetString(v)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			v, err := info.GetString()
			if err != nil {
				return err
			}
			rv.SetBytes([]byte(v))
			return nil
		}
		members := info.Members()
		out := reflect.MakeSlice(rv.Type(), len(members), len(members))
		for i, m := range members {
			if err := siIntoReflect(m, out.Index(i)); err != nil {
				return err
			}
		}
		rv.Set(out)
	case reflect.Map:
		out := reflect.MakeMap(rv.Type())
		for _, m := range info.Members() {
			key := reflect.ValueOf(m.Name())
			val := reflect.New(rv.Type().Elem()).Elem()
			if err := siIntoReflect(m, val); err != nil {
				return err
			}
			out.SetMapIndex(key, val)
		}
		rv.Set(out)
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := fieldName(f)
			if name == "-" {
				continue
			}
			if m := info.FindMember(name); m != nil {
				if err := siIntoReflect(m, rv.Field(i)); err != nil {
					return err
				}
			}
		}
	default:
		return si.NewSerializationError("cannot populate kind " + rv.Kind().String() + " from SerializationInfo")
	}
	return nil
}
