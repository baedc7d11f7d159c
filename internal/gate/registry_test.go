package gate

import (
	"context"
	"testing"
)

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	remove := r.Add("req-1", cancel)
	defer remove()

	if !r.Cancel("req-1") {
		t.Fatal("Cancel must report true for an in-flight request")
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatal("context not canceled")
	}
	if r.Cancel("req-1") {
		t.Fatal("second cancel must report false")
	}
}

func TestRegistryCancelUnknown(t *testing.T) {
	r := NewRegistry()
	if r.Cancel("ghost") {
		t.Fatal("Cancel must report false for unknown IDs")
	}
}

func TestRegistryEnumeration(t *testing.T) {
	r := NewRegistry()
	_, c1 := context.WithCancel(context.Background())
	_, c2 := context.WithCancel(context.Background())
	remove1 := r.Add("b", c1)
	r.Add("a", c2)

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("IDs = %v, want [a b]", ids)
	}

	remove1()
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}
