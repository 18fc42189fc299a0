package runtime

import "testing"

func TestStateNamesRoundTrip(t *testing.T) {
	for s := StateReserveTarget; s <= StateTerminated; s++ {
		name := s.String()
		if name == "UNKNOWN" {
			t.Fatalf("state %d has no name", s)
		}
		back, ok := ParseState(name)
		if !ok || back != s {
			t.Fatalf("ParseState(%q) = %v, %v", name, back, ok)
		}
	}
	if _, ok := ParseState("NAP"); ok {
		t.Fatalf("unknown name parsed")
	}
}

func TestParamsDefaults(t *testing.T) {
	p := Params{}.withDefaults()
	if p.MaxClaimants != 5 || p.BundleRadius != 8 || p.StepsPerTick != 16 {
		t.Fatalf("defaults: %+v", p)
	}
	p = Params{MaxClaimants: 2, BundleRadius: 3, StepsPerTick: 4}.withDefaults()
	if p.MaxClaimants != 2 || p.BundleRadius != 3 || p.StepsPerTick != 4 {
		t.Fatalf("overrides lost: %+v", p)
	}
}
