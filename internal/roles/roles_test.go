package roles

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsCatalog(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"coder", "reviewer", "researcher", "tester"} {
		if !reg.Has(name) {
			t.Errorf("missing built-in role %q", name)
		}
	}

	reviewer, _ := reg.Get("reviewer")
	if reviewer.Mode != "ask" {
		t.Errorf("reviewer should be read-only (ask mode), got %q", reviewer.Mode)
	}
	coder, _ := reg.Get("coder")
	if coder.Mode != "agent" {
		t.Errorf("coder should be in agent mode, got %q", coder.Mode)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	content := `roles:
  coder:
    description: Rust specialist
    instructions: Write idiomatic Rust.
    budget-multiplier: 2.0
  security:
    description: Security auditor
    instructions: Audit for vulnerabilities.
    mode: ask
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	if err := reg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	coder, _ := reg.Get("coder")
	if coder.Description != "Rust specialist" {
		t.Errorf("overlay should replace coder, got %q", coder.Description)
	}
	if coder.Name != "coder" {
		t.Errorf("name should come from the map key, got %q", coder.Name)
	}
	if coder.Mode != "agent" {
		t.Errorf("missing mode defaults to agent, got %q", coder.Mode)
	}

	security, ok := reg.Get("security")
	if !ok {
		t.Fatal("overlay should add the security role")
	}
	if security.Mode != "ask" {
		t.Errorf("declared mode kept, got %q", security.Mode)
	}

	// Untouched built-ins survive an overlay.
	if !reg.Has("tester") {
		t.Error("tester should survive the overlay")
	}
}

func TestLoadFileMissingIsNotError(t *testing.T) {
	reg := NewRegistry()
	if err := reg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("missing file must not error, got %v", err)
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	if err := os.WriteFile(path, []byte("roles: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry()
	if err := reg.LoadFile(path); err == nil {
		t.Error("malformed YAML should error")
	}
}

func TestMultipliers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	content := `roles:
  researcher:
    description: Research
    budget-multiplier: 1.5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	if err := reg.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	got := reg.Multipliers()
	if got["researcher"] != 1.5 {
		t.Errorf("expected researcher multiplier 1.5, got %v", got["researcher"])
	}
	if _, ok := got["coder"]; ok {
		t.Error("roles without a multiplier must not appear")
	}
}

func TestNamesSorted(t *testing.T) {
	names := NewRegistry().Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}
