package interp

import (
	"reflect"
	"testing"
)

func TestResolve_ExactTokenPreservesType(t *testing.T) {
	data := map[string]any{"x": 42}
	got := Resolve(data, "${x}")
	if got != 42 {
		t.Fatalf("got %#v (%T), want int 42", got, got)
	}
}

func TestResolve_PartialTokenCoercesToString(t *testing.T) {
	data := map[string]any{"hostname": "srv1"}
	got := Resolve(data, "https://${hostname}/healthz")
	if got != "https://srv1/healthz" {
		t.Fatalf("got %q", got)
	}
}

func TestResolve_NestedPath(t *testing.T) {
	data := map[string]any{
		"body": map[string]any{"token": "xyz"},
	}
	got := Resolve(data, "${body.token}")
	if got != "xyz" {
		t.Fatalf("got %#v", got)
	}
}

func TestResolve_UnresolvedPathExactTokenIsNil(t *testing.T) {
	data := map[string]any{}
	got := Resolve(data, "${missing}")
	if got != nil {
		t.Fatalf("got %#v, want nil", got)
	}
}

func TestResolve_UnresolvedPathPartialIsEmptyString(t *testing.T) {
	data := map[string]any{}
	got := Resolve(data, "prefix-${missing}-suffix")
	if got != "prefix--suffix" {
		t.Fatalf("got %q", got)
	}
}

func TestResolve_SequencePreservesOrder(t *testing.T) {
	data := map[string]any{"a": 1, "b": 2}
	got := Resolve(data, []any{"${a}", "${b}", "literal"})
	want := []any{1, 2, "literal"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestResolve_MappingPreservesKeys(t *testing.T) {
	data := map[string]any{"a": 1}
	got := Resolve(data, map[string]any{"k": "${a}"})
	want := map[string]any{"k": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestResolve_NoTokensIsIdempotent(t *testing.T) {
	data := map[string]any{}
	value := map[string]any{"a": []any{"x", 1, true}, "b": "plain"}
	got := Resolve(data, value)
	if !reflect.DeepEqual(got, value) {
		t.Fatalf("got %#v, want %#v", got, value)
	}
}

func TestResolve_OtherScalarsUnchanged(t *testing.T) {
	data := map[string]any{}
	if got := Resolve(data, 7); got != 7 {
		t.Fatalf("got %#v", got)
	}
	if got := Resolve(data, true); got != true {
		t.Fatalf("got %#v", got)
	}
	if got := Resolve(data, nil); got != nil {
		t.Fatalf("got %#v", got)
	}
}
