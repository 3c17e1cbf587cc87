package observer

import "testing"

func TestCalculateKnownModel(t *testing.T) {
	calc := NewCostCalculator(nil)
	// 1M input at $3.00 + 1M output at $15.00
	got := calc.Calculate("claude-3-5-sonnet-20240620", 1_000_000, 1_000_000)
	if got != 18.00 {
		t.Errorf("cost = %v, want 18.00", got)
	}
}

func TestCalculateUnknownModel(t *testing.T) {
	calc := NewCostCalculator(nil)
	if got := calc.Calculate("mystery-model", 1000, 1000); got != 0.0 {
		t.Errorf("cost = %v, want 0", got)
	}
}

func TestCalculateProportional(t *testing.T) {
	calc := NewCostCalculator(nil)
	got := calc.Calculate("claude-3-5-haiku-20241022", 500_000, 0)
	if got != 0.40 {
		t.Errorf("cost = %v, want 0.40", got)
	}
}

func TestCalculateOverrides(t *testing.T) {
	calc := NewCostCalculator(map[string]ModelPricing{
		"custom-model":               {InputPerMillion: 1.0, OutputPerMillion: 2.0},
		"claude-3-5-sonnet-20240620": {InputPerMillion: 10.0, OutputPerMillion: 20.0},
	})
	if got := calc.Calculate("custom-model", 1_000_000, 0); got != 1.0 {
		t.Errorf("custom cost = %v, want 1.0", got)
	}
	if got := calc.Calculate("claude-3-5-sonnet-20240620", 1_000_000, 0); got != 10.0 {
		t.Errorf("override cost = %v, want 10.0", got)
	}
	// Untouched defaults remain.
	if got := calc.Calculate("claude-3-opus-20240229", 1_000_000, 0); got != 15.0 {
		t.Errorf("default cost = %v, want 15.0", got)
	}
}
