package variables

import (
	"fmt"
	"sync"
	"testing"
)

func TestScopePriority(t *testing.T) {
	tests := []struct {
		name     string
		scopes   map[Scope]any
		expected any
	}{
		{
			name:     "global only",
			scopes:   map[Scope]any{ScopeGlobal: "g"},
			expected: "g",
		},
		{
			name:     "profile beats global",
			scopes:   map[Scope]any{ScopeGlobal: "g", ScopeProfile: "p"},
			expected: "p",
		},
		{
			name:     "override beats profile",
			scopes:   map[Scope]any{ScopeGlobal: "g", ScopeProfile: "p", ScopeOverride: "o"},
			expected: "o",
		},
		{
			name:     "extracted beats everything",
			scopes:   map[Scope]any{ScopeGlobal: "g", ScopeProfile: "p", ScopeOverride: "o", ScopeExtracted: "e"},
			expected: "e",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			for scope, v := range tt.scopes {
				if err := m.Set(scope, "key", v); err != nil {
					t.Fatalf("Set(%v) failed: %v", scope, err)
				}
			}
			got := m.Get("key", nil)
			if got != tt.expected {
				t.Errorf("Get(key) = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetDefault(t *testing.T) {
	m := NewManager()
	if got := m.Get("missing", "fallback"); got != "fallback" {
		t.Errorf("Get(missing) = %v, want fallback", got)
	}
	if m.Has("missing") {
		t.Error("Has(missing) = true, want false")
	}
}

func TestAllCaching(t *testing.T) {
	m := NewManager()
	if err := m.Set(ScopeGlobal, "a", 1); err != nil {
		t.Fatal(err)
	}

	first := m.All()
	second := m.All()
	if fmt.Sprintf("%p", first) != fmt.Sprintf("%p", second) {
		t.Error("All() rebuilt the merged view without an intervening write")
	}

	v := m.Version()
	if err := m.Set(ScopeExtracted, "b", 2); err != nil {
		t.Fatal(err)
	}
	if m.Version() == v {
		t.Error("Set did not bump the version counter")
	}

	third := m.All()
	if len(third) != 2 {
		t.Errorf("All() after write has %d entries, want 2", len(third))
	}
	if third["b"] != 2 {
		t.Errorf("All()[b] = %v, want 2", third["b"])
	}
}

func TestAllPriorityMerge(t *testing.T) {
	m := NewManager()
	m.Set(ScopeGlobal, "x", "g")
	m.Set(ScopeProfile, "x", "p")
	m.Set(ScopeOverride, "x", "o")
	m.Set(ScopeExtracted, "x", "e")

	if got := m.All()["x"]; got != "e" {
		t.Errorf("All()[x] = %v, want e", got)
	}
}

func TestClear(t *testing.T) {
	m := NewManager()
	m.Set(ScopeExtracted, "token", "abc")
	m.Set(ScopeGlobal, "token", "base")

	if err := m.Clear(ScopeExtracted); err != nil {
		t.Fatal(err)
	}
	if got := m.Get("token", nil); got != "base" {
		t.Errorf("Get(token) after Clear = %v, want base", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	m := NewManager()
	m.Set(ScopeGlobal, "base", "kept")
	m.Set(ScopeExtracted, "id", 1)

	snap := m.TakeSnapshot()

	m.Set(ScopeExtracted, "id", 2)
	m.Set(ScopeExtracted, "leak", true)

	m.Restore(snap)

	if got := m.Get("id", nil); got != 1 {
		t.Errorf("Get(id) after Restore = %v, want 1", got)
	}
	if m.Has("leak") {
		t.Error("Restore kept a value written after the snapshot")
	}
	if got := m.Get("base", nil); got != "kept" {
		t.Errorf("Get(base) after Restore = %v, want kept", got)
	}
}

func TestClone(t *testing.T) {
	m := NewManager()
	m.Set(ScopeGlobal, "shared", "orig")

	clone := m.Clone()
	clone.Set(ScopeGlobal, "shared", "changed")
	clone.Set(ScopeExtracted, "new", 1)

	if got := m.Get("shared", nil); got != "orig" {
		t.Errorf("clone write leaked into original: %v", got)
	}
	if m.Has("new") {
		t.Error("clone extracted write leaked into original")
	}
}

func TestConcurrentSetAndRead(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Set(ScopeExtracted, fmt.Sprintf("k%d", n), n)
			m.All()
			m.Get("k0", nil)
		}(i)
	}
	wg.Wait()

	if len(m.All()) != 20 {
		t.Errorf("All() has %d entries, want 20", len(m.All()))
	}
}
