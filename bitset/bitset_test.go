package bitset

import "testing"

func TestSetUnsetIsIdentity(t *testing.T) {
	b := New(128)
	b.Set(5)
	b.Unset(5)
	if b.Test(5) {
		t.Fatalf("expected 5 to be unset")
	}
}

func TestNextSet(t *testing.T) {
	b := New(200)
	b.Set(3)
	b.Set(64)
	b.Set(199)

	got := []uint32{}
	for i := b.NextSet(0); i != None; i = b.NextSet(i + 1) {
		got = append(got, i)
	}
	want := []uint32{3, 64, 199}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestNextSetNoneWhenEmpty(t *testing.T) {
	b := New(64)
	if got := b.NextSet(0); got != None {
		t.Fatalf("expected None, got %d", got)
	}
}

func TestClearResetsAll(t *testing.T) {
	b := New(64)
	b.Set(1)
	b.Set(2)
	b.Clear()
	if b.NextSet(0) != None {
		t.Fatalf("expected empty bitset after Clear")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := New(64)
	b.Set(1)
	c := b.Clone()
	c.Set(2)
	if b.Test(2) {
		t.Fatalf("mutating clone must not affect original")
	}
	if !c.Test(1) || !c.Test(2) {
		t.Fatalf("clone should carry original bits plus new ones")
	}
}
