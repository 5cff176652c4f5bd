package catalog

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

// Record is an immutable catalog entity: an id plus typed fields.
//
// Field values are string, float64, bool, []string, time.Time or, for a
// populated reference, a nested Record.
type Record struct {
	kind   Kind
	id     string
	fields map[string]any
}

// New validates raw field values against the schema of kind and normalizes
// them to their canonical Go types.
func New(kind Kind, id string, raw map[string]any) (Record, error) {
	if !kind.IsValid() {
		return Record{}, fmt.Errorf("unknown kind %q", kind)
	}
	if id == "" {
		return Record{}, fmt.Errorf("%s id is required", kind)
	}
	schema := SchemaOf(kind)
	fields := make(map[string]any, len(raw))
	for name, v := range raw {
		if v == nil {
			continue
		}
		f, ok := schema.Lookup(name)
		if !ok {
			return Record{}, fmt.Errorf("%s: unknown field %q", kind, name)
		}
		nv, err := normalize(f, v)
		if err != nil {
			return Record{}, fmt.Errorf("%s.%s: %w", kind, name, err)
		}
		fields[name] = nv
	}
	return Record{kind: kind, id: id, fields: fields}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(kind Kind, id string, fields map[string]any) Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return Record{kind: kind, id: id, fields: fields}
}

// Kind returns the kind of the record.
func (r Record) Kind() Kind { return r.kind }

// ID returns the record identifier.
func (r Record) ID() string { return r.id }

// Get returns the raw value of a field.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// String returns a string field, or "" if absent or not a string.
func (r Record) String(name string) string {
	s, _ := r.fields[name].(string)
	return s
}

// Number returns a numeric field, or 0 if absent.
func (r Record) Number(name string) float64 {
	n, _ := r.fields[name].(float64)
	return n
}

// Time returns a time field.
func (r Record) Time(name string) (time.Time, bool) {
	t, ok := r.fields[name].(time.Time)
	return t, ok
}

// Ref returns the referenced id of a reference field, whether it holds an
// id or a populated record.
func (r Record) Ref(name string) string {
	switch v := r.fields[name].(type) {
	case string:
		return v
	case Record:
		return v.id
	default:
		return ""
	}
}

// Display returns the field the ranker orders by.
func (r Record) Display() string { return r.String(r.kind.SearchField()) }

// Fields returns a copy of the field map.
func (r Record) Fields() map[string]any {
	out := maps.Clone(r.fields)
	if out == nil {
		return map[string]any{}
	}
	for k, v := range out {
		if l, ok := v.([]string); ok {
			out[k] = slices.Clone(l)
		}
	}
	return out
}

// WithField returns a copy of r with one field replaced.
func (r Record) WithField(name string, v any) Record {
	fields := maps.Clone(r.fields)
	if fields == nil {
		fields = map[string]any{}
	}
	fields[name] = v
	return Record{kind: r.kind, id: r.id, fields: fields}
}

func normalize(f Field, v any) (any, error) {
	switch f.Type {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case Number:
		return ToFloat(v)
	case Time:
		return ParseTime(v)
	case StringList:
		return toStringList(v)
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case Ref:
		switch ref := v.(type) {
		case string:
			if ref == "" {
				return nil, fmt.Errorf("empty reference")
			}
			return ref, nil
		case Record:
			if ref.kind != f.To {
				return nil, fmt.Errorf("reference to %s, got %s", f.To, ref.kind)
			}
			return ref, nil
		default:
			return nil, fmt.Errorf("expected reference id, got %T", v)
		}
	default:
		return nil, fmt.Errorf("unsupported field type %s", f.Type)
	}
}

// ToFloat converts a numeric value of any Go numeric type to float64.
func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("non-finite number")
		}
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// ParseTime accepts a time.Time, an RFC 3339 string, a YYYY-MM-DD date or
// epoch milliseconds.
func ParseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC(), nil
		}
		ts, err := time.Parse(time.DateOnly, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time %q", t)
		}
		return ts, nil
	default:
		ms, err := ToFloat(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("expected time, got %T", v)
		}
		return FromMillis(ms), nil
	}
}

// Millis returns t as epoch milliseconds, the numeric time representation
// every backend stores and aggregates.
func Millis(t time.Time) float64 { return float64(t.UnixMilli()) }

// FromMillis converts epoch milliseconds back to a UTC time.
func FromMillis(ms float64) time.Time { return time.UnixMilli(int64(ms)).UTC() }

func toStringList(v any) ([]string, error) {
	switch l := v.(type) {
	case []string:
		return slices.Clone(l), nil
	case string:
		return []string{l}, nil
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected list of strings, got element %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", v)
	}
}
