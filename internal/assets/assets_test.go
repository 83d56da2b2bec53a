package assets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Faultbox/modelpack/internal/model"
	"github.com/Faultbox/modelpack/pkg/formats"
)

func TestManagerResolve(t *testing.T) {
	base := t.TempDir()
	override := t.TempDir()
	touch(t, base, "models/wood.png")
	touch(t, base, "models/wood_normal.tga")
	touch(t, override, "models/wood.dds")

	m := NewManager()
	if err := m.AddRoot(base); err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	if err := m.AddRoot(override); err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}

	h, ok := m.Resolve("models/wood")
	if !ok || h == 0 {
		t.Fatalf("Resolve(models/wood) = %d, %v", h, ok)
	}
	if path, _ := m.Path(h); path != filepath.Join(override, "models", "wood.dds") {
		t.Errorf("later root should win, got %s", path)
	}

	again, _ := m.Resolve("models/wood")
	if again != h {
		t.Errorf("handle changed across lookups: %d then %d", h, again)
	}

	n, ok := m.Resolve("models/wood_normal")
	if !ok || n == h {
		t.Errorf("normal map handle = %d, %v", n, ok)
	}

	if _, ok := m.Resolve("models/stone"); ok {
		t.Error("missing texture should not resolve")
	}

	hits, misses := m.Stats()
	if hits != 1 || misses != 3 {
		t.Errorf("stats = %d hits %d misses, want 1/3", hits, misses)
	}
}

func TestManagerAddRootErrors(t *testing.T) {
	dir := t.TempDir()
	file := touch(t, dir, "plain.png")

	m := NewManager()
	if err := m.AddRoot(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing root")
	}
	if err := m.AddRoot(file); err == nil {
		t.Error("expected error for file root")
	}
}

func TestManagerRegisterAndPath(t *testing.T) {
	m := NewManager()
	h := m.Register(model.DefaultDiffuse, "builtin/white.png")

	if got, ok := m.Resolve(model.DefaultDiffuse); !ok || got != h {
		t.Errorf("Resolve(default) = %d, %v, want %d", got, ok, h)
	}
	if _, ok := m.Path(0); ok {
		t.Error("handle 0 is never valid")
	}
	if _, ok := m.Path(h + 1); ok {
		t.Error("unassigned handle should not have a path")
	}

	m.Close()
	if _, ok := m.Resolve(model.DefaultDiffuse); ok {
		t.Error("Close should forget registered keys")
	}
}

func TestManagerBindsModelTextures(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "models/hero.png")
	touch(t, root, "models/hero_specular.png")

	m := NewManager()
	if err := m.AddRoot(root); err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	normal := m.Register(model.DefaultNormal, "builtin/flat.png")

	var h formats.H3D
	h.Materials = []formats.Material{{Name: "hero"}}
	h.Materials[0].Textures[formats.TexDiffuse] = "models/hero"
	mdl := model.New(h, nil)

	if err := mdl.BindTextures(m); err != nil {
		t.Fatalf("BindTextures failed: %v", err)
	}
	g, _ := mdl.SRUs(0)
	if path, _ := m.Path(g[formats.TexSpecular]); filepath.Base(path) != "hero_specular.png" {
		t.Errorf("specular bound to %s", path)
	}
	if g[formats.TexNormal] != normal {
		t.Errorf("normal = %d, want default %d", g[formats.TexNormal], normal)
	}
}

func TestManagerRegisterDefaults(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "default_normal.png")

	m := NewManager()
	if err := m.AddRoot(root); err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	m.RegisterDefaults("(builtin)")

	for _, key := range []string{model.DefaultDiffuse, model.DefaultSpecular} {
		h, ok := m.Resolve(key)
		if !ok {
			t.Fatalf("%s not registered", key)
		}
		if path, _ := m.Path(h); path != "(builtin)" {
			t.Errorf("%s bound to %q, want the placeholder", key, path)
		}
	}
	h, _ := m.Resolve(model.DefaultNormal)
	if path, _ := m.Path(h); filepath.Base(path) != "default_normal.png" {
		t.Errorf("a default found on disk must win, got %q", path)
	}

	// A material with no textures at all now binds.
	var c formats.H3D
	c.Materials = []formats.Material{{Name: "bare"}}
	if err := model.New(c, nil).BindTextures(m); err != nil {
		t.Errorf("BindTextures failed: %v", err)
	}
}

func TestManagerConcurrentResolve(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "rock.png")

	m := NewManager()
	if err := m.AddRoot(root); err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}

	var wg sync.WaitGroup
	handles := make([]model.SRU, 8)
	for i := range handles {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles[i], _ = m.Resolve("rock")
		}()
	}
	wg.Wait()

	for _, h := range handles {
		if h != handles[0] || h == 0 {
			t.Fatalf("handles = %v, want one shared non-zero handle", handles)
		}
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	c.Set("a", 7)

	if h, ok := c.Get("a"); !ok || h != 7 {
		t.Errorf("Get(a) = %d, %v", h, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) should miss")
	}

	c.Clear()
	if hits, misses := c.Stats(); hits != 0 || misses != 0 {
		t.Errorf("stats after Clear = %d/%d", hits, misses)
	}
}

// Helper functions

func touch(t *testing.T, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
