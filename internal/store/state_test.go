package store

import (
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) (*State, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestTrainedFlag_DefaultsFalseAndPersists(t *testing.T) {
	s, path := openTemp(t)

	if s.Trained() {
		t.Fatal("fresh store reports trained")
	}
	if err := s.SetTrained(true); err != nil {
		t.Fatalf("SetTrained: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if !reopened.Trained() {
		t.Fatal("trained flag lost across reopen")
	}
	if err := reopened.SetTrained(false); err != nil {
		t.Fatalf("SetTrained(false): %v", err)
	}
	if reopened.Trained() {
		t.Fatal("flag still true after SetTrained(false)")
	}
}

func TestGetSetDelete(t *testing.T) {
	s, _ := openTemp(t)
	defer func() { _ = s.Close() }()

	if _, ok, err := s.Get("ns", "k"); err != nil || ok {
		t.Fatalf("Get missing = ok %v err %v", ok, err)
	}
	if err := s.Set("ns", "k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("ns", "k", "v2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := s.Get("ns", "k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("Get = %q %v %v, want v2", v, ok, err)
	}
	if _, ok, _ := s.Get("other", "k"); ok {
		t.Fatal("namespaces leak into each other")
	}
	if err := s.Delete("ns", "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("ns", "k"); ok {
		t.Fatal("key survived Delete")
	}
}

func TestMemoryFlag(t *testing.T) {
	var m MemoryFlag
	if m.Trained() {
		t.Fatal("zero MemoryFlag reports trained")
	}
	_ = m.SetTrained(true)
	if !m.Trained() {
		t.Fatal("MemoryFlag did not record true")
	}
}
