package peer

import (
	"testing"

	"github.com/google/uuid"

	"github.com/adamwoolhether/tangle/foundation/crypto"
)

func TestSet_AddIsIdempotent(t *testing.T) {
	s := NewSet()
	id := uuid.New()
	p := New(id, "127.0.0.1:9000")

	if !s.Add(p) {
		t.Fatal("first add should report newly added")
	}
	if s.Add(p) {
		t.Fatal("second add of the same id should report already present")
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}
}

func TestSet_RemoveDropsPeerAndKey(t *testing.T) {
	s := NewSet()
	id := uuid.New()
	s.Add(New(id, "127.0.0.1:9000"))

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}
	s.SetKey(id, kp.Public)

	s.Remove(id)

	if s.Known(id) {
		t.Fatal("expected peer to be unknown after Remove")
	}
	if _, ok := s.Key(id); ok {
		t.Fatal("expected key to be gone after Remove")
	}
	if s.KeyCount() != 0 {
		t.Fatalf("KeyCount() = %d, want 0", s.KeyCount())
	}
}

func TestSet_CopyExcludesSelf(t *testing.T) {
	s := NewSet()
	self := uuid.New()
	other := uuid.New()

	s.Add(New(self, "self:9000"))
	s.Add(New(other, "other:9000"))

	copied := s.Copy(self)
	if len(copied) != 1 {
		t.Fatalf("Copy() returned %d peers, want 1", len(copied))
	}
	if copied[0].ID != other {
		t.Fatalf("Copy()[0].ID = %s, want %s", copied[0].ID, other)
	}
}

func TestSet_KeyCount(t *testing.T) {
	s := NewSet()
	a, b := uuid.New(), uuid.New()
	s.Add(New(a, "a"))
	s.Add(New(b, "b"))

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}
	s.SetKey(a, kp.Public)

	if s.KeyCount() != 1 {
		t.Fatalf("KeyCount() = %d, want 1", s.KeyCount())
	}

	got, ok := s.Key(a)
	if !ok || got != kp.Public {
		t.Fatal("Key(a) did not return the key set via SetKey")
	}
}

func TestSet_FindAccount(t *testing.T) {
	s := NewSet()
	id := uuid.New()
	s.Add(New(id, "host:1"))

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}
	s.SetKey(id, kp.Public)

	hash := string(crypto.AccountIDFromPublicKey(kp.Public))

	got, err := s.FindAccount(hash)
	if err != nil {
		t.Fatalf("FindAccount: %s", err)
	}
	if got != kp.Public {
		t.Fatal("FindAccount returned a different key than was set")
	}

	if _, err := s.FindAccount("not-a-real-hash"); err == nil {
		t.Fatal("expected an error resolving an unknown account hash")
	}
}

func TestPeer_Match(t *testing.T) {
	id := uuid.New()
	p := New(id, "host:1")

	if !p.Match(id) {
		t.Fatal("expected Match against its own id to be true")
	}
	if p.Match(uuid.New()) {
		t.Fatal("expected Match against an unrelated id to be false")
	}
}
