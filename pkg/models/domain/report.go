package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date key format used across the service.
const DateLayout = "2006-01-02"

// Report is the persisted daily output for a single calendar date.
type Report struct {
	Date         string         `json:"date"`
	GeneratedAt  time.Time      `json:"generated_at"`
	RunMode      RunMode        `json:"run_mode"`
	Snapshot     MarketSnapshot `json:"market_snapshot"`
	Scenarios    []Scenario     `json:"scenarios"`
	NarrativeRaw string         `json:"narrative_raw"`
}

// Scenario is a single forward-looking outcome from the model response.
// Probabilities are stored as received and never normalized.
type Scenario struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Kind        string  `json:"kind,omitempty"`
	Narrative   string  `json:"narrative"`
}

// MarketSnapshot holds the fetched market figures a report is built from.
type MarketSnapshot struct {
	IndexClose        float64         `json:"index_close"`
	IndexChangePct    float64         `json:"index_change_pct"`
	TurnoverTrillions string          `json:"turnover_trillions"`
	LeverageRatio     float64         `json:"leverage_ratio"`
	MainNetInflow     decimal.Decimal `json:"main_net_inflow"`
	RetailNetInflow   decimal.Decimal `json:"retail_net_inflow"`
	WinRate           float64         `json:"win_rate"`
	Sectors           SectorBreakdown `json:"sectors"`
}

// SectorBreakdown splits sector heat into the strongest and weakest names.
type SectorBreakdown struct {
	Strong []SectorHeat `json:"strong"`
	Weak   []SectorHeat `json:"weak"`
}

// SectorHeat is a sector name with its heat score.
type SectorHeat struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}
