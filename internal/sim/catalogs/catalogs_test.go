package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRepoConfigs(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	steel, ok := c.Item("STEEL")
	if !ok || steel.Mass != 0.5 || steel.StackLimit != 75 {
		t.Fatalf("unexpected STEEL def: %+v ok=%v", steel, ok)
	}
	if _, ok := c.Recipes.ByID["make_table"]; !ok {
		t.Fatalf("missing make_table recipe")
	}
	if c.Items.DefsDigest == "" || c.Items.PaletteDigest == "" {
		t.Fatalf("expected digests")
	}
}

func TestLoadRejectsUnknownRecipeInput(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "items.json"), []byte(`[{"id":"WOOD","mass":1}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "recipes.json"), []byte(`[{"recipe_id":"r","inputs":[{"item":"GOLD","count":1}]}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for unknown input")
	}
}

func TestLoadDefaultsStackLimitAndOptionalRecipes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "items.json"), []byte(`[{"id":"WOOD","mass":1}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d, _ := c.Item("WOOD"); d.StackLimit != 75 {
		t.Fatalf("stack limit default: %+v", d)
	}
	if len(c.Recipes.ByID) != 0 {
		t.Fatalf("expected no recipes")
	}
}
