package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRepoTuning(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.Haul.MaxHaulContesters != 5 || tu.Haul.BundleSearchRadius != 8 {
		t.Fatalf("unexpected haul tuning: %+v", tu.Haul)
	}
	if tu.Agent.CarryLimit != 75 || tu.Agent.MassLimit != 35 {
		t.Fatalf("unexpected agent defaults: %+v", tu.Agent)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("haul:\n  bundle_search_radius: 12\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.Haul.BundleSearchRadius != 12 || tu.Haul.MaxHaulContesters != 5 || tu.StepsPerTick != 16 {
		t.Fatalf("unexpected: %+v", tu)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("haul:\n  max_haul_contesters: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}
