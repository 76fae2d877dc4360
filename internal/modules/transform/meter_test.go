package transform

import (
	"testing"

	appcfg "github.com/timmydarcy44/lms-beyond-v3-sub006/internal/config"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/money"
	"go.uber.org/zap"
)

func testPricing() appcfg.PricingConfig {
	return appcfg.PricingConfig{
		Default:         "0.004",
		SpeechSurcharge: "0.015",
		Actions: map[string]string{
			"rephrase": "0.002",
			"audio":    "0.010",
		},
	}
}

func TestUsageMeterCost(t *testing.T) {
	m, err := newUsageMeter(nil, testPricing(), zap.NewNop())
	if err != nil {
		t.Fatalf("newUsageMeter: %v", err)
	}

	tests := []struct {
		name   string
		action Action
		speech bool
		want   string
	}{
		{name: "priced action", action: ActionRephrase, want: "0.002"},
		{name: "unpriced action uses default", action: ActionMindmap, want: "0.004"},
		{name: "speech surcharge", action: ActionAudio, speech: true, want: "0.025"},
		{name: "audio without artifact has no surcharge", action: ActionAudio, want: "0.010"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Cost(tt.action, tt.speech)
			if got.Cmp(money.MustParse(tt.want)) != 0 {
				t.Errorf("Cost(%s, %v) = %s, want %s", tt.action, tt.speech, got, tt.want)
			}
		})
	}
}

func TestUsageMeterRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*appcfg.PricingConfig)
	}{
		{name: "unknown action", mut: func(c *appcfg.PricingConfig) { c.Actions["summarize"] = "0.001" }},
		{name: "bad decimal", mut: func(c *appcfg.PricingConfig) { c.Actions["rephrase"] = "free" }},
		{name: "bad default", mut: func(c *appcfg.PricingConfig) { c.Default = "" }},
		{name: "bad surcharge", mut: func(c *appcfg.PricingConfig) { c.SpeechSurcharge = "1,5" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testPricing()
			tt.mut(&cfg)
			if _, err := newUsageMeter(nil, cfg, zap.NewNop()); err == nil {
				t.Error("expected a config error")
			}
		})
	}
}
