package jsoncodec

import (
	"strings"
	"testing"
)

type testPayload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := testPayload{ID: 42, Name: "unitcast"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out testPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Fatalf("expected round trip to match, got %#v", out)
	}

	indented, err := MarshalIndent(in, "", "  ")
	if err != nil {
		t.Fatalf("marshal indent failed: %v", err)
	}
	if !strings.Contains(string(indented), "\n  \"id\"") {
		t.Fatalf("expected indented output, got %s", string(indented))
	}
}

func TestUnmarshalString(t *testing.T) {
	var out testPayload
	if err := UnmarshalString(`{"id":7,"name":"a&b"}`, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out.ID != 7 || out.Name != "a&b" {
		t.Fatalf("unexpected payload: %#v", out)
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte(`{"a":1}`)) {
		t.Fatal("expected object to be valid")
	}
	if Valid([]byte(`{"a":`)) {
		t.Fatal("expected truncated document to be invalid")
	}
}
