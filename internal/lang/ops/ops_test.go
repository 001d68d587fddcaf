package ops

import (
	"context"
	"testing"

	"github.com/rakunlabs/pcgate/internal/lang"
)

func call(t *testing.T, reg *lang.Registry, name string, inputs []lang.Value, params map[string]any) lang.Value {
	t.Helper()
	op, ok := reg.Get(name)
	if !ok {
		t.Fatalf("op %q not registered", name)
	}
	v, err := op.Execute(context.Background(), inputs, params)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func TestRegisterPopulatesVocabulary(t *testing.T) {
	reg := Register(lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig))
	want := []string{
		"Identity", "StartsWith", "EndsWith", "Contains", "ExtractFirstWord",
		"ExtractParams", "Concat", "Split", "Trim", "ToLower", "ToUpper", "Length", "StringFormat",
		"GetField", "SetField", "Multiply", "Add", "Subtract", "Divide",
		"Equals", "NotEquals", "GreaterThan", "LessThan", "And", "Or", "Not", "If",
		"Hash", "Sign", "Verify", "Timestamp", "ClassifyIntent",
		"LoadState", "SaveState", "CreateMap", "MergeMap", "ArrayPush", "ArrayGet",
		"JsonParse", "JsonGet", "HttpGet", "HttpPost",
	}
	for _, name := range want {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("expected op %q to be registered", name)
		}
	}
}

func TestStringOps(t *testing.T) {
	reg := Register(lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig))

	if v := call(t, reg, "StartsWith", []lang.Value{lang.String("hello world")}, map[string]any{"prefix": "hello"}); !v.Truthy() {
		t.Error("StartsWith should match prefix")
	}
	if v := call(t, reg, "ToUpper", []lang.Value{lang.String("abc")}, nil); s, _ := v.AsString(); s != "ABC" {
		t.Errorf("ToUpper = %q, want ABC", s)
	}
	if v := call(t, reg, "Concat", []lang.Value{lang.String("a"), lang.String("b")}, nil); s, _ := v.AsString(); s != "ab" {
		t.Errorf("Concat = %q, want ab", s)
	}
	if v := call(t, reg, "Length", []lang.Value{lang.String("abcd")}, nil); n, _ := v.AsInt(); n != 4 {
		t.Errorf("Length = %d, want 4", n)
	}
	if v := call(t, reg, "ExtractFirstWord", []lang.Value{lang.String("ping the server")}, nil); s, _ := v.AsString(); s != "ping" {
		t.Errorf("ExtractFirstWord = %q, want ping", s)
	}
}

func TestArithOps(t *testing.T) {
	reg := Register(lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig))

	if v := call(t, reg, "Add", []lang.Value{lang.Int(2), lang.Int(3)}, nil); f, _ := v.AsFloat(); f != 5 {
		t.Errorf("Add = %v, want 5", f)
	}
	if v := call(t, reg, "Divide", []lang.Value{lang.Int(1), lang.Int(0)}, nil); f, _ := v.AsFloat(); f != 0 {
		t.Errorf("Divide by zero = %v, want 0", f)
	}
}

func TestCompareOps(t *testing.T) {
	reg := Register(lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig))

	if v := call(t, reg, "Equals", []lang.Value{lang.Int(1), lang.Int(1)}, nil); !v.Truthy() {
		t.Error("Equals(1,1) should be true")
	}
	if v := call(t, reg, "GreaterThan", []lang.Value{lang.Int(2), lang.Int(1)}, nil); !v.Truthy() {
		t.Error("GreaterThan(2,1) should be true")
	}
}

func TestLogicOps(t *testing.T) {
	reg := Register(lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig))

	if v := call(t, reg, "And", []lang.Value{lang.Bool(true), lang.Bool(true)}, nil); !v.Truthy() {
		t.Error("And(true,true) should be true")
	}
	if v := call(t, reg, "And", []lang.Value{lang.Bool(true), lang.Bool(false)}, nil); v.Truthy() {
		t.Error("And(true,false) should be false")
	}
	v := call(t, reg, "If", []lang.Value{lang.Bool(true), lang.String("yes"), lang.String("no")}, nil)
	if s, _ := v.AsString(); s != "yes" {
		t.Errorf("If(true,...) = %q, want yes", s)
	}
}

func TestIfRequiresThreeArgs(t *testing.T) {
	reg := Register(lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig))
	op, _ := reg.Get("If")
	_, err := op.Execute(context.Background(), []lang.Value{lang.Bool(true)}, nil)
	if err == nil {
		t.Fatal("expected error when If is called with fewer than 3 inputs")
	}
}

func TestCollectionOps(t *testing.T) {
	reg := Register(lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig))

	m := lang.Map(map[string]lang.Value{"x": lang.Int(1)})
	v := call(t, reg, "GetField", []lang.Value{m}, map[string]any{"field": "x"})
	if n, _ := v.AsInt(); n != 1 {
		t.Errorf("GetField(x) = %v, want 1", n)
	}

	arr := call(t, reg, "ArrayPush", []lang.Value{lang.Array([]lang.Value{lang.Int(1)}), lang.Int(2)}, nil)
	a, _ := arr.AsArray()
	if len(a) != 2 {
		t.Fatalf("ArrayPush produced %d elements, want 2", len(a))
	}

	got := call(t, reg, "ArrayGet", []lang.Value{arr}, map[string]any{"index": float64(1)})
	if n, _ := got.AsInt(); n != 2 {
		t.Errorf("ArrayGet(1) = %v, want 2", n)
	}

	outOfRange := call(t, reg, "ArrayGet", []lang.Value{arr}, map[string]any{"index": float64(99)})
	if !outOfRange.IsNull() {
		t.Errorf("ArrayGet out of range should be Null, got %+v", outOfRange)
	}
}

func TestCryptoOps(t *testing.T) {
	interp := lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig)
	reg := Register(interp)

	h := call(t, reg, "Hash", []lang.Value{lang.String("data")}, nil)
	if _, ok := h.AsHash(); !ok {
		t.Fatal("Hash op should return a Hash value")
	}

	op, _ := reg.Get("Sign")
	if _, err := op.Execute(context.Background(), []lang.Value{lang.String("msg")}, nil); err == nil {
		t.Fatal("Sign should error when no Signer is configured")
	}

	interp.Signer = func(msg []byte) ([]byte, error) { return append([]byte("sig:"), msg...), nil }
	v := call(t, reg, "Sign", []lang.Value{lang.String("msg")}, nil)
	if _, ok := v.AsBytes(); !ok {
		t.Fatal("Sign should return Bytes once a Signer is configured")
	}
}

func TestClassifyIntentLexical(t *testing.T) {
	reg := Register(lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig))
	params := map[string]any{
		"buckets": map[string]any{
			"greeting": []any{"hello", "hi"},
			"farewell": []any{"bye"},
		},
		"order": []any{"greeting", "farewell"},
	}

	v := call(t, reg, "ClassifyIntent", []lang.Value{lang.String("hi there")}, params)
	m, _ := v.AsMap()
	intent, _ := m["intent"].AsString()
	if intent != "greeting" {
		t.Errorf("ClassifyIntent = %q, want greeting", intent)
	}

	v = call(t, reg, "ClassifyIntent", []lang.Value{lang.String("nothing matches")}, params)
	m, _ = v.AsMap()
	intent, _ = m["intent"].AsString()
	if intent != "unknown" {
		t.Errorf("ClassifyIntent(no match) = %q, want unknown", intent)
	}
}

func TestJSONOps(t *testing.T) {
	reg := Register(lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig))

	parsed := call(t, reg, "JsonParse", []lang.Value{lang.String(`{"results": ["a", "b"], "count": 2}`)}, nil)
	m, ok := parsed.AsMap()
	if !ok {
		t.Fatalf("JsonParse should produce a Map value")
	}
	if n, _ := m["count"].AsFloat(); n != 2 {
		t.Errorf("JsonParse count = %v, want 2", n)
	}

	got := call(t, reg, "JsonGet", []lang.Value{parsed}, map[string]any{"path": "results.0"})
	if s, _ := got.AsString(); s != "a" {
		t.Errorf("JsonGet(results.0) = %q, want a", s)
	}

	missing := call(t, reg, "JsonGet", []lang.Value{parsed}, map[string]any{"path": "nope"})
	if !missing.IsNull() {
		t.Errorf("JsonGet of a missing path should be Null, got %+v", missing)
	}
}

func TestStateOps(t *testing.T) {
	interp := lang.NewInterpreter(lang.NewRegistry(), lang.DefaultConfig)
	reg := Register(interp)

	call(t, reg, "SaveState", []lang.Value{lang.String("k"), lang.String("v")}, nil)
	got := call(t, reg, "LoadState", []lang.Value{lang.String("k")}, nil)
	if s, _ := got.AsString(); s != "v" {
		t.Errorf("LoadState(k) = %q, want v", s)
	}
}
