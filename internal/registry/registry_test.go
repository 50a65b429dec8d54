package registry

import (
	"errors"
	"testing"

	"github.com/hathitrust/feed/internal/ingesterr"
)

func TestRegistryLookup(t *testing.T) {
	r := New[string]("TestKind")
	r.Register("yale", "yale-descriptor")
	r.Register("uc1", "uc1-descriptor")

	got, err := r.Lookup("yale")
	if err != nil {
		t.Fatalf("Lookup(yale): %v", err)
	}
	if got != "yale-descriptor" {
		t.Fatalf("Lookup(yale) = %q, want yale-descriptor", got)
	}

	if _, err := r.Lookup("nonexistent"); err == nil {
		t.Fatalf("Lookup(nonexistent): expected error, got nil")
	} else {
		var ie *ingesterr.Error
		if !errors.As(err, &ie) || ie.Kind != ingesterr.UnknownSubclass {
			t.Fatalf("Lookup(nonexistent): expected UnknownSubclass, got %v", err)
		}
	}
}

func TestRegistryEnumerateSorted(t *testing.T) {
	r := New[int]("TestKind")
	r.Register("zzz", 1)
	r.Register("aaa", 2)
	r.Register("mmm", 3)

	got := r.Enumerate()
	want := []string{"aaa", "mmm", "zzz"}
	if len(got) != len(want) {
		t.Fatalf("Enumerate() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Enumerate()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	r := New[int]("TestKind")
	r.Register("dup", 1)
	r.Register("dup", 2)
}
