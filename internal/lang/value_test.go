package lang

import "testing"

func TestValueTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null(), false},
		{"bool true", Bool(true), true},
		{"bool false", Bool(false), false},
		{"int zero", Int(0), false},
		{"int nonzero", Int(1), true},
		{"float zero", Float(0), false},
		{"float nonzero", Float(0.1), true},
		{"empty string", String(""), false},
		{"nonempty string", String("x"), true},
		{"empty bytes", Bytes(nil), false},
		{"nonempty bytes", Bytes([]byte{1}), true},
		{"empty array", Array(nil), false},
		{"nonempty array", Array([]Value{Int(1)}), true},
		{"empty map", Map(nil), false},
		{"nonempty map", Map(map[string]Value{"a": Int(1)}), true},
		{"hash always truthy", HashValue(ZeroHash), true},
		{"confidence always truthy", ConfidenceValue(NewConfidence(0)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Truthy(); got != tt.want {
				t.Errorf("Truthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueEqual(t *testing.T) {
	if !String("a").Equal(String("a")) {
		t.Error("equal strings should compare equal")
	}
	if String("a").Equal(String("b")) {
		t.Error("different strings should not compare equal")
	}
	if !Int(1).Equal(Int(1)) {
		t.Error("equal ints should compare equal")
	}
	if Int(1).Equal(Float(1)) {
		t.Error("different kinds should never compare equal")
	}
	arr1 := Array([]Value{Int(1), String("a")})
	arr2 := Array([]Value{Int(1), String("a")})
	if !arr1.Equal(arr2) {
		t.Error("structurally equal arrays should compare equal")
	}
	m1 := Map(map[string]Value{"x": Int(1)})
	m2 := Map(map[string]Value{"x": Int(1)})
	if !m1.Equal(m2) {
		t.Error("structurally equal maps should compare equal")
	}
}

func TestValueAsFloatCoercion(t *testing.T) {
	if f, ok := Int(5).AsFloat(); !ok || f != 5 {
		t.Fatalf("Int(5).AsFloat() = (%v, %v), want (5, true)", f, ok)
	}
	if f, ok := Float(5.5).AsFloat(); !ok || f != 5.5 {
		t.Fatalf("Float(5.5).AsFloat() = (%v, %v), want (5.5, true)", f, ok)
	}
	if f, ok := ConfidenceValue(NewConfidence(0.75)).AsFloat(); !ok || f != 0.75 {
		t.Fatalf("Confidence(0.75).AsFloat() = (%v, %v), want (0.75, true)", f, ok)
	}
	if _, ok := String("x").AsFloat(); ok {
		t.Fatal("String should not coerce to float")
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	values := []Value{
		Null(),
		Bool(true),
		Int(42),
		Float(3.14),
		String("hello"),
		Bytes([]byte{1, 2, 3}),
		Array([]Value{Int(1), String("a")}),
		Map(map[string]Value{"k": Int(1)}),
		HashValue(HashBytes([]byte("x"))),
		ConfidenceValue(NewConfidence(0.42)),
	}

	for _, v := range values {
		b, err := v.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON(%v): %v", v.Kind(), err)
		}
		var out Value
		if err := out.UnmarshalJSON(b); err != nil {
			t.Fatalf("UnmarshalJSON(%v): %v", v.Kind(), err)
		}
		if !out.Equal(v) {
			t.Fatalf("round-trip mismatch for kind %v: got %+v, want %+v", v.Kind(), out, v)
		}
	}
}

func TestValueContentHashStable(t *testing.T) {
	v := Map(map[string]Value{"a": Int(1), "b": String("x")})
	h1, err := v.ContentHash()
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	h2, err := v.ContentHash()
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	if h1 != h2 {
		t.Fatal("ContentHash not stable across calls for the same value")
	}
}
