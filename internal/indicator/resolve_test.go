package indicator

import "testing"

func TestResolve_SingleDefinition(t *testing.T) {
	ind := &Indicator{
		Name:        "graduation_rate",
		Definitions: []Definition{{Name: "graduation_rate", Version: 2}},
	}

	res := ind.Resolve()
	if !res.Found() {
		t.Fatalf("expected Found, got %+v", res)
	}
	if res.Definition.Version != 2 {
		t.Fatalf("expected version 2, got %d", res.Definition.Version)
	}
}

func TestResolve_MultipleDefinitionsIsAmbiguous(t *testing.T) {
	ind := &Indicator{
		Name: "graduation_rate",
		Definitions: []Definition{
			{Name: "graduation_rate", Version: 1},
			{Name: "graduation_rate", Version: 2},
		},
	}

	res := ind.Resolve()
	if !res.Ambiguous {
		t.Fatalf("expected Ambiguous, got %+v", res)
	}
	if res.Found() {
		t.Fatalf("Ambiguous resolution must not report Found")
	}
	if res.Definition != nil {
		t.Fatalf("Ambiguous resolution must not carry a definition")
	}
}

func TestResolve_NoDefinitions(t *testing.T) {
	ind := &Indicator{Name: "empty"}

	res := ind.Resolve()
	if res.Found() || res.Ambiguous {
		t.Fatalf("expected zero Resolution, got %+v", res)
	}
}
