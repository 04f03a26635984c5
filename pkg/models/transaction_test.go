package models

import "testing"

func TestParseRiskLevel(t *testing.T) {
	cases := map[string]RiskLevel{"low": RiskLow, " High ": RiskHigh, "CRITICAL": RiskCritical, "medium": RiskMedium}
	for in, want := range cases {
		got, ok := ParseRiskLevel(in)
		if !ok || got != want {
			t.Errorf("ParseRiskLevel(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseRiskLevel("severe"); ok {
		t.Error("unknown level should not parse")
	}
}

func TestRankOrdering(t *testing.T) {
	if !(RiskLow.Rank() < RiskMedium.Rank() && RiskMedium.Rank() < RiskHigh.Rank() && RiskHigh.Rank() < RiskCritical.Rank()) {
		t.Fatal("levels must rank LOW < MEDIUM < HIGH < CRITICAL")
	}
	if RiskLevel("bogus").Rank() != 0 {
		t.Error("unknown level should rank as LOW")
	}
}
