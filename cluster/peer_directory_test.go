package cluster

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestRegisterAndAddress(t *testing.T) {
	d := NewPeerDirectory()
	id := uuid.New()

	if err := d.Register(id, "10.0.0.1:9000"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	addr, err := d.Address(id)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if addr != "10.0.0.1:9000" {
		t.Fatalf("Address = %q, want 10.0.0.1:9000", addr)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	d := NewPeerDirectory()
	id := uuid.New()
	if err := d.Register(id, "a"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := d.Register(id, "b"); err == nil {
		t.Fatal("expected an error re-registering the same peer ID")
	}
}

func TestUnregisterRemovesPeer(t *testing.T) {
	d := NewPeerDirectory()
	id := uuid.New()
	d.Register(id, "a")
	if err := d.Unregister(id); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, err := d.Address(id); err == nil {
		t.Fatal("expected an error looking up an unregistered peer")
	}
}

func TestPeerIDsAndCount(t *testing.T) {
	d := NewPeerDirectory()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		d.Register(id, fmt.Sprintf("host-%d:9000", i))
	}
	if d.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", d.Count())
	}
	got := d.PeerIDs()
	if len(got) != 3 {
		t.Fatalf("PeerIDs() length = %d, want 3", len(got))
	}
}
