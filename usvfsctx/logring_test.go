package usvfsctx

import "testing"

func TestLogRingBeforeFull(t *testing.T) {
	r := NewLogRing(3)
	r.Add("a")
	r.Add("b")

	got := r.Drain()
	want := []string{"a", "b"}

	if len(got) != len(want) {
		t.Fatalf("Drain() = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLogRingWrapsOldestFirst(t *testing.T) {
	r := NewLogRing(3)
	r.Add("a")
	r.Add("b")
	r.Add("c")
	r.Add("d") // overwrites "a"

	got := r.Drain()
	want := []string{"b", "c", "d"}

	if len(got) != len(want) {
		t.Fatalf("Drain() = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
