package lang

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindMap
	KindHash
	KindConfidence
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindHash:
		return "hash"
	case KindConfidence:
		return "confidence"
	default:
		return "unknown"
	}
}

// Value is the tagged union every graph node consumes and produces:
// Null, Bool, Int, Float, String, Bytes, Array, Map, Hash, or Confidence.
// Exactly one of the typed fields is meaningful, selected by Kind.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	bytes  []byte
	arr    []Value
	m      map[string]Value
	hash   Hash
	conf   Confidence
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(v bool) Value          { return Value{kind: KindBool, b: v} }
func Int(v int64) Value          { return Value{kind: KindInt, i: v} }
func Float(v float64) Value      { return Value{kind: KindFloat, f: v} }
func String(v string) Value      { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value       { return Value{kind: KindBytes, bytes: v} }
func Array(v []Value) Value      { return Value{kind: KindArray, arr: v} }
func Map(v map[string]Value) Value {
	return Value{kind: KindMap, m: v}
}
func HashValue(v Hash) Value       { return Value{kind: KindHash, hash: v} }
func ConfidenceValue(v Confidence) Value { return Value{kind: KindConfidence, conf: v} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload, ok is false for non-Bool values.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt returns the integer payload, ok is false for non-Int values.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns the numeric payload, coercing Int and Confidence to
// float64 the way the arithmetic ops require.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	case KindConfidence:
		return v.conf.Value(), true
	default:
		return 0, false
	}
}

// AsString returns the string payload, ok is false for non-String values.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsBytes returns the raw byte payload, ok is false for non-Bytes values.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.bytes, true
}

// AsArray returns the element slice, ok is false for non-Array values.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// AsMap returns the field map, ok is false for non-Map values.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// AsHash returns the content hash payload, ok is false for non-Hash values.
func (v Value) AsHash() (Hash, bool) {
	if v.kind != KindHash {
		return Hash{}, false
	}
	return v.hash, true
}

// AsConfidence returns the confidence payload, ok is false for non-Confidence values.
func (v Value) AsConfidence() (Confidence, bool) {
	if v.kind != KindConfidence {
		return Confidence{}, false
	}
	return v.conf, true
}

// Truthy applies the value's truthiness rules:
//
//	Null              -> false
//	Bool(b)           -> b
//	Int(n)            -> n != 0
//	Float(f)          -> f != 0.0
//	String(s)         -> s != ""
//	Bytes(b)          -> len(b) != 0
//	Array(a)          -> len(a) != 0
//	Map(m)            -> len(m) != 0
//	Hash, Confidence  -> true (always non-empty content)
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindBytes:
		return len(v.bytes) != 0
	case KindArray:
		return len(v.arr) != 0
	case KindMap:
		return len(v.m) != 0
	case KindHash, KindConfidence:
		return true
	default:
		return false
	}
}

// Equal reports structural equality between two values, comparing floats
// with exact bit equality (operations that need tolerance do so themselves).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBytes:
		if len(v.bytes) != len(o.bytes) {
			return false
		}
		for i := range v.bytes {
			if v.bytes[i] != o.bytes[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, mv := range v.m {
			ov, ok := o.m[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	case KindHash:
		return v.hash == o.hash
	case KindConfidence:
		return v.conf == o.conf
	default:
		return false
	}
}

// wireValue is the JSON projection of Value used for content hashing and
// wire transfer: {"kind": "...", fields...}.
type wireValue struct {
	Kind  string           `json:"kind"`
	Bool  *bool            `json:"bool,omitempty"`
	Int   *int64           `json:"int,omitempty"`
	Float *float64         `json:"float,omitempty"`
	Str   *string          `json:"string,omitempty"`
	Bytes []byte           `json:"bytes,omitempty"`
	Arr   []Value          `json:"array,omitempty"`
	Map   map[string]Value `json:"map,omitempty"`
	Hash  *string          `json:"hash,omitempty"`
	Conf  *float64         `json:"confidence,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.kind.String()}
	switch v.kind {
	case KindBool:
		w.Bool = &v.b
	case KindInt:
		w.Int = &v.i
	case KindFloat:
		w.Float = &v.f
	case KindString:
		w.Str = &v.s
	case KindBytes:
		w.Bytes = v.bytes
	case KindArray:
		w.Arr = v.arr
	case KindMap:
		w.Map = v.m
	case KindHash:
		hex := v.hash.Hex()
		w.Hash = &hex
	case KindConfidence:
		f := v.conf.Value()
		w.Conf = &f
	}
	return json.Marshal(w)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "null", "":
		*v = Null()
	case "bool":
		if w.Bool == nil {
			return fmt.Errorf("lang: bool value missing field")
		}
		*v = Bool(*w.Bool)
	case "int":
		if w.Int == nil {
			return fmt.Errorf("lang: int value missing field")
		}
		*v = Int(*w.Int)
	case "float":
		if w.Float == nil {
			return fmt.Errorf("lang: float value missing field")
		}
		*v = Float(*w.Float)
	case "string":
		if w.Str == nil {
			return fmt.Errorf("lang: string value missing field")
		}
		*v = String(*w.Str)
	case "bytes":
		*v = Bytes(w.Bytes)
	case "array":
		*v = Array(w.Arr)
	case "map":
		*v = Map(w.Map)
	case "hash":
		if w.Hash == nil {
			return fmt.Errorf("lang: hash value missing field")
		}
		h, err := HashFromHex(*w.Hash)
		if err != nil {
			return err
		}
		*v = HashValue(h)
	case "confidence":
		if w.Conf == nil {
			return fmt.Errorf("lang: confidence value missing field")
		}
		*v = ConfidenceValue(NewConfidence(*w.Conf))
	default:
		return fmt.Errorf("lang: unknown value kind %q", w.Kind)
	}
	return nil
}

// ContentHash computes the content-addressed identity of v: its canonical
// JSON encoding, hashed. Map keys are sorted by encoding/json already; this
// helper exists so callers don't have to reach for json.Marshal directly.
func (v Value) ContentHash() (Hash, error) {
	return HashJSON(v)
}

// sortedMapKeys is a small helper used by ops that need deterministic
// iteration order over a Value map (e.g. MergeMap, CreateMap diagnostics).
func sortedMapKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
