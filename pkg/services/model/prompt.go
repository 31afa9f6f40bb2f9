package model

import (
	"fmt"
	"strings"

	"github.com/de-tools/market-pulse/pkg/models/domain"
)

const systemPrompt = `You are a senior equity-market risk analyst. Your style is calm,
objective and data-driven. Based on the structured market data provided,
produce a daily risk report. Respond STRICTLY with valid JSON using this
schema, with no text outside the JSON object:
{
  "scenarios": [
    {"label": "base", "probability": 0.6, "kind": "base", "narrative": "..."},
    {"label": "optimistic", "probability": 0.25, "kind": "optimistic", "narrative": "..."},
    {"label": "pessimistic", "probability": 0.15, "kind": "pessimistic", "narrative": "..."}
  ],
  "narrative": "full free-form report text"
}
Probabilities are fractions in [0,1]. The narrative covers the core
tensions in the data, position sizing advice and the key levels to watch.`

var reportTitles = map[domain.RunMode]string{
	domain.RunModePreMarket:  "intraday review (morning session)",
	domain.RunModeMidday:     "midday summary",
	domain.RunModePostMarket: "post-market review",
	domain.RunModeManual:     "ad-hoc review",
}

var forecastTitles = map[domain.RunMode]string{
	domain.RunModePreMarket:  "projection for the morning close",
	domain.RunModeMidday:     "projection for the afternoon session",
	domain.RunModePostMarket: "projection for the next session",
	domain.RunModeManual:     "projection for the next session",
}

// BuildPrompt renders the snapshot into the system and user prompts for
// the model call.
func BuildPrompt(date string, mode domain.RunMode, snap domain.MarketSnapshot) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce a %s for %s. Title the scenario section %q.\n\n",
		reportTitles[mode], date, forecastTitles[mode])
	fmt.Fprintf(&b, "[Index]\n- Close: %.2f (%.2f%%)\n", snap.IndexClose, snap.IndexChangePct)
	fmt.Fprintf(&b, "[Liquidity]\n- Total turnover: %s trillion\n- Main net inflow: %s bn | Retail net inflow: %s bn\n",
		snap.TurnoverTrillions, snap.MainNetInflow.StringFixed(2), snap.RetailNetInflow.StringFixed(2))
	fmt.Fprintf(&b, "[Leverage]\n- Market leverage ratio: %.2f%%\n", snap.LeverageRatio)
	fmt.Fprintf(&b, "[Sentiment]\n- Win rate: %.1f%%\n", snap.WinRate)
	fmt.Fprintf(&b, "[Sector heat]\n- Strongest: %s\n- Weakest: %s\n",
		joinSectors(snap.Sectors.Strong), joinSectors(snap.Sectors.Weak))
	return systemPrompt, b.String()
}

func joinSectors(sectors []domain.SectorHeat) string {
	if len(sectors) == 0 {
		return "n/a"
	}
	parts := make([]string, 0, len(sectors))
	for _, s := range sectors {
		parts = append(parts, fmt.Sprintf("%s (%.1f)", s.Name, s.Value))
	}
	return strings.Join(parts, ", ")
}
