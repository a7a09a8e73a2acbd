package stringindex

import "testing"

func TestPutGet(t *testing.T) {
	ix := New()
	ix.Put("stop_a", 42)
	got, ok := ix.Get("stop_a")
	if !ok || got != 42 {
		t.Fatalf("got (%d, %v), want (42, true)", got, ok)
	}
}

func TestGetUnknown(t *testing.T) {
	ix := New()
	if _, ok := ix.Get("missing"); ok {
		t.Fatalf("expected unknown key to miss")
	}
}

func TestDelete(t *testing.T) {
	ix := New()
	ix.Put("x", 1)
	ix.Delete("x")
	if _, ok := ix.Get("x"); ok {
		t.Fatalf("expected deleted key to miss")
	}
}

func TestBuildFromSlice(t *testing.T) {
	ix := BuildFromSlice([]string{"s0", "s1", "", "s3"})
	if got, _ := ix.Get("s1"); got != 1 {
		t.Fatalf("expected s1 -> 1, got %d", got)
	}
	if _, ok := ix.Get(""); ok {
		t.Fatalf("empty string must not be indexed")
	}
	if ix.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", ix.Len())
	}
}
