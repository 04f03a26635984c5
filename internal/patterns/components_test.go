package patterns

import "testing"

func TestComponentEngineUnion(t *testing.T) {
	ce := NewComponentEngine()

	if !ce.Union("a", "b") {
		t.Fatal("expected first union to merge")
	}
	if ce.Union("b", "a") {
		t.Error("expected repeated union to be a no-op")
	}
	ce.Union("c", "d")
	ce.Union("b", "c")

	if ce.Find("a") != ce.Find("d") {
		t.Error("a and d should share a root after transitive unions")
	}
	if got := ce.Size("d"); got != 4 {
		t.Errorf("expected component size 4, got %d", got)
	}
}

func TestComponentEngineComponentsOrdering(t *testing.T) {
	ce := NewComponentEngine()
	ce.Add("z")
	ce.Union("m", "n")
	ce.Union("b", "a")
	ce.Union("a", "c")

	comps := ce.Components()
	if len(comps) != 3 {
		t.Fatalf("expected 3 components, got %d", len(comps))
	}

	tests := []struct {
		idx  int
		want []string
	}{
		{0, []string{"a", "b", "c"}},
		{1, []string{"m", "n"}},
		{2, []string{"z"}},
	}
	for _, tt := range tests {
		got := comps[tt.idx]
		if len(got) != len(tt.want) {
			t.Errorf("component %d: expected %v, got %v", tt.idx, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("component %d: expected %v, got %v", tt.idx, tt.want, got)
				break
			}
		}
	}
	if ce.Total() != 3 {
		t.Errorf("expected 3 total components, got %d", ce.Total())
	}
}
