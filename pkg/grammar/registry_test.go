package grammar

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const luaGrammar = `name: lua
version: 1.0.0
description: Lua dash comments
patterns:
  string: '.*?'
  eol: '\s*'
  h2: '\s*%{h2prefix}\s*%{string:doc}%{eol}'
  h3: '\s*%{h3prefix}\s*%{string:doc}%{eol}'
  doc: '\s*%{docprefix}\s?%{string:doc}%{eol}'
  blank: '%{eol}'
  h2prefix: '----'
  h3prefix: '---'
  docprefix: '--'
rules: [h2, h3, blank, doc]
`

func writeGrammar(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(luaGrammar))
	if err != nil {
		t.Fatalf("ParseDefinition() error = %v", err)
	}
	if def.Name != "lua" || def.Version != "1.0.0" {
		t.Errorf("got %s %s, want lua 1.0.0", def.Name, def.Version)
	}
	if !def.IsCompiled() {
		t.Fatal("definition should be compiled")
	}

	m := def.Grammar().Classify("---- module: Utilities.")
	if m.Tag != TagH2 || m.Capture("doc") != "module: Utilities." {
		t.Errorf("Classify() = %v %q", m.Tag, m.Capture("doc"))
	}
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name      string
		def       Definition
		wantError bool
	}{
		{
			name:      "valid",
			def:       Definition{Name: "x", Version: "1", Patterns: PatternSet{"h2": "x"}, Rules: []string{"h2"}},
			wantError: false,
		},
		{
			name:      "missing name",
			def:       Definition{Version: "1", Patterns: PatternSet{"h2": "x"}, Rules: []string{"h2"}},
			wantError: true,
		},
		{
			name:      "missing version",
			def:       Definition{Name: "x", Patterns: PatternSet{"h2": "x"}, Rules: []string{"h2"}},
			wantError: true,
		},
		{
			name:      "no patterns",
			def:       Definition{Name: "x", Version: "1", Rules: []string{"h2"}},
			wantError: true,
		},
		{
			name:      "no rules",
			def:       Definition{Name: "x", Version: "1", Patterns: PatternSet{"h2": "x"}},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestParseDefinitionErrors(t *testing.T) {
	cyclic := `name: bad
version: 1.0.0
patterns:
  h2: '%{a}'
  a: '%{h2}'
rules: [h2]
`
	if _, err := ParseDefinition([]byte(cyclic)); !errors.Is(err, ErrCycle) {
		t.Errorf("ParseDefinition(cyclic) error = %v, want ErrCycle", err)
	}

	if _, err := ParseDefinition([]byte("name: [unclosed")); err == nil {
		t.Error("ParseDefinition(invalid YAML) should fail")
	}

	if _, err := ParseDefinition([]byte("name: empty\nversion: 1.0.0\n")); err == nil {
		t.Error("ParseDefinition(no patterns) should fail")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeGrammar(t, dir, "lua.yaml", luaGrammar)

	def, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if def.Name != "lua" {
		t.Errorf("Name = %q, want lua", def.Name)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) should fail")
	}
}

func TestNewRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}

	g, err := r.Grammar(DefaultDialect)
	if err != nil {
		t.Fatalf("Grammar(%q) error = %v", DefaultDialect, err)
	}
	if g != Default() {
		t.Error("built-in c dialect should share the default grammar")
	}

	hash, err := r.Grammar("hash")
	if err != nil {
		t.Fatalf("Grammar(hash) error = %v", err)
	}
	if got := hash.Classify("### x: y").Tag; got != TagH2 {
		t.Errorf("hash Classify() = %v, want h2", got)
	}

	if _, err := r.Grammar("cobol"); err == nil {
		t.Error("Grammar(unknown) should fail")
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	def := &Definition{Name: "custom", Version: "1.0.0", Patterns: PatternSet{"h2": `##.*`}, Rules: []string{"h2"}}
	if err := r.Register(def); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if r.Count() != 3 {
		t.Errorf("Count() = %d, want 3", r.Count())
	}

	if err := r.Register(nil); err == nil {
		t.Error("Register(nil) should return error")
	}

	same := &Definition{Name: "custom", Version: "1.0.0", Patterns: PatternSet{"h2": `##.*`}, Rules: []string{"h2"}}
	if err := r.Register(same); err == nil {
		t.Error("Register() duplicate version should return error")
	}

	newer := &Definition{Name: "custom", Version: "2.0.0", Patterns: PatternSet{"h2": `==.*`}, Rules: []string{"h2"}}
	if err := r.Register(newer); err != nil {
		t.Errorf("Register() new version error = %v", err)
	}
	got, _ := r.Get("custom")
	if got.Version != "2.0.0" {
		t.Errorf("Version = %s, want 2.0.0", got.Version)
	}

	cyclic := &Definition{Name: "loop", Version: "1.0.0", Patterns: PatternSet{"h2": `%{h2}`}, Rules: []string{"h2"}}
	if err := r.Register(cyclic); !errors.Is(err, ErrCycle) {
		t.Errorf("Register(cyclic) error = %v, want ErrCycle", err)
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	if err := r.Unregister("hash"); err != nil {
		t.Errorf("Unregister() error = %v", err)
	}
	if _, ok := r.Get("hash"); ok {
		t.Error("hash should be gone")
	}
	if err := r.Unregister("hash"); err == nil {
		t.Error("Unregister() twice should return error")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	defs := r.List()
	if len(defs) != 2 {
		t.Fatalf("List() returned %d, want 2", len(defs))
	}
	if defs[0].Name != "c" || defs[1].Name != "hash" {
		t.Errorf("List() = %s, %s; want sorted c, hash", defs[0].Name, defs[1].Name)
	}
	for _, d := range defs {
		if !d.Builtin {
			t.Errorf("%s should be marked builtin", d.Name)
		}
	}
}

func TestRegistryLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeGrammar(t, dir, "lua.yaml", luaGrammar)
	writeGrammar(t, dir, "notes.txt", "ignored")

	r, err := NewRegistryWithDirectory(dir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error = %v", err)
	}
	if _, ok := r.Get("lua"); !ok {
		t.Error("lua grammar not loaded")
	}
	if r.Count() != 3 {
		t.Errorf("Count() = %d, want 3", r.Count())
	}
}

func TestRegistryLoadDirectoryMissing(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadDirectory(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("LoadDirectory(missing) error = %v", err)
	}
}

func TestRegistryLoadDirectoryErrors(t *testing.T) {
	dir := t.TempDir()
	writeGrammar(t, dir, "bad.yml", "name: bad\nversion: 1.0.0\npatterns:\n  h2: '%{h2}'\nrules: [h2]\n")

	r := NewRegistry()
	if err := r.LoadDirectory(dir); err == nil {
		t.Error("LoadDirectory() should report the cyclic grammar")
	}

	file := writeGrammar(t, dir, "plain", "x")
	if err := r.LoadDirectory(file); err == nil {
		t.Error("LoadDirectory(file) should fail")
	}
}

func TestRegistryReload(t *testing.T) {
	dir := t.TempDir()
	path := writeGrammar(t, dir, "lua.yaml", luaGrammar)

	r, err := NewRegistryWithDirectory(dir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error = %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if _, ok := r.Get("lua"); ok {
		t.Error("lua should be gone after reload")
	}
	if _, ok := r.Get(DefaultDialect); !ok {
		t.Error("built-in dialects should survive reload")
	}

	if err := NewRegistry().Reload(); err == nil {
		t.Error("Reload() without directory should fail")
	}
}

func TestRegistryWatch(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistryWithDirectory(dir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error = %v", err)
	}

	events := make(chan string, 10)
	r.SetOnChange(func(event string, def *Definition) {
		if def != nil && def.Name == "lua" {
			events <- event
		}
	})

	if err := r.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer r.StopWatch()

	path := writeGrammar(t, dir, "lua.yaml", luaGrammar)
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for create event")
	}
	if _, ok := r.Get("lua"); !ok {
		t.Fatal("lua should be registered after create")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-events:
			if event != "remove" {
				continue
			}
			if _, ok := r.Get("lua"); ok {
				t.Error("lua should be removed")
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for remove event")
		}
	}
}

func TestRegistryWatchWithoutDirectory(t *testing.T) {
	if err := NewRegistry().Watch(); err == nil {
		t.Error("Watch() without directory should fail")
	}
}

func TestRegistryFileShadowsBuiltin(t *testing.T) {
	dir := t.TempDir()
	path := writeGrammar(t, dir, "c.yaml", `name: c
version: 2.0.0
patterns:
  string: '.*?'
  h2: '//!%{string:doc}'
rules: [h2]
`)

	r, err := NewRegistryWithDirectory(dir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error = %v", err)
	}
	def, _ := r.Get("c")
	if def.Version != "2.0.0" || def.Origin() != path {
		t.Fatalf("c = %s from %s, want 2.0.0 from %s", def.Version, def.Origin(), path)
	}

	var removed *Definition
	r.SetOnChange(func(event string, def *Definition) {
		if event == "remove" {
			removed = def
		}
	})
	r.handleFileRemove(path)

	if removed == nil || removed.Version != "2.0.0" {
		t.Errorf("remove callback got %+v, want the file dialect", removed)
	}
	def, ok := r.Get("c")
	if !ok {
		t.Fatal("built-in c should be restored when its override is removed")
	}
	if !def.Builtin || def.Version != "1.0.0" || def.Origin() != "builtin" {
		t.Errorf("c = %s (%s), want built-in 1.0.0", def.Version, def.Origin())
	}
	if got := def.Grammar().Classify("/*** Widget: x */").Tag; got != TagH2 {
		t.Errorf("restored grammar Classify() = %v, want h2", got)
	}
}

func TestRegistryFileRenamesDialect(t *testing.T) {
	dir := t.TempDir()
	path := writeGrammar(t, dir, "lua.yaml", luaGrammar)
	r, err := NewRegistryWithDirectory(dir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error = %v", err)
	}

	writeGrammar(t, dir, "lua.yaml", strings.Replace(luaGrammar, "name: lua", "name: moon", 1))
	r.handleFileChange(path, "modify")

	if _, ok := r.Get("lua"); ok {
		t.Error("lua should be dropped once its file declares another name")
	}
	if def, ok := r.Get("moon"); !ok || def.Source != path {
		t.Errorf("moon = %+v, want loaded from %s", def, path)
	}
}

func TestRegistryGrammarNotFound(t *testing.T) {
	if _, err := NewRegistry().Grammar("cobol"); !errors.Is(err, ErrDialectNotFound) {
		t.Errorf("Grammar(cobol) error = %v, want ErrDialectNotFound", err)
	}
}
