package api

import "time"

// Report is the wire form of a stored report document.
type Report struct {
	Date         string         `json:"date"`
	GeneratedAt  time.Time      `json:"generated_at"`
	RunMode      string         `json:"run_mode"`
	Snapshot     MarketSnapshot `json:"market_snapshot"`
	Scenarios    []Scenario     `json:"scenarios"`
	NarrativeRaw string         `json:"narrative_raw"`
}

type Scenario struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Kind        string  `json:"kind,omitempty"`
	Narrative   string  `json:"narrative"`
}

type MarketSnapshot struct {
	IndexClose        float64         `json:"index_close"`
	IndexChangePct    float64         `json:"index_change_pct"`
	TurnoverTrillions string          `json:"turnover_trillions"`
	LeverageRatio     float64         `json:"leverage_ratio"`
	MainNetInflow     string          `json:"main_net_inflow"`
	RetailNetInflow   string          `json:"retail_net_inflow"`
	WinRate           float64         `json:"win_rate"`
	Sectors           SectorBreakdown `json:"sectors"`
}

type SectorBreakdown struct {
	Strong []SectorHeat `json:"strong"`
	Weak   []SectorHeat `json:"weak"`
}

type SectorHeat struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ReportList is the response of the report listing endpoint.
type ReportList struct {
	Dates []string `json:"dates"`
}

// RunRequest triggers a synchronous generation run.
type RunRequest struct {
	Date string `json:"date,omitempty"`
	Mode string `json:"mode,omitempty"`
}

// RunAccepted acknowledges an asynchronous trigger: the job handle the
// dashboard follows up on via the progress stream.
type RunAccepted struct {
	JobID  string `json:"job_id"`
	Date   string `json:"date"`
	Mode   string `json:"mode"`
	Status string `json:"status"`
}

// ProgressEvent is one streamed progress update for a generation run.
type ProgressEvent struct {
	Percent  int     `json:"percent"`
	Title    string  `json:"title"`
	Detail   string  `json:"detail,omitempty"`
	Terminal bool    `json:"terminal,omitempty"`
	Error    string  `json:"error,omitempty"`
	Report   *Report `json:"report,omitempty"`
}

// ScheduleConfig is the wire form of the schedule configuration.
type ScheduleConfig struct {
	Times []string `json:"schedule_times"`
}

// ConfigResponse wraps the schedule configuration with the active
// deployment environment.
type ConfigResponse struct {
	Config ScheduleConfig `json:"config"`
	Env    string         `json:"env"`
}
