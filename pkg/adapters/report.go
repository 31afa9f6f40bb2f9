package adapters

import (
	"github.com/de-tools/market-pulse/pkg/models/api"
	"github.com/de-tools/market-pulse/pkg/models/domain"
)

// MapDomainReportToAPI converts a stored report document to its wire form.
func MapDomainReportToAPI(r *domain.Report) *api.Report {
	if r == nil {
		return nil
	}

	scenarios := make([]api.Scenario, 0, len(r.Scenarios))
	for _, s := range r.Scenarios {
		scenarios = append(scenarios, api.Scenario{
			Label:       s.Label,
			Probability: s.Probability,
			Kind:        s.Kind,
			Narrative:   s.Narrative,
		})
	}

	return &api.Report{
		Date:         r.Date,
		GeneratedAt:  r.GeneratedAt,
		RunMode:      string(r.RunMode),
		Snapshot:     mapSnapshot(r.Snapshot),
		Scenarios:    scenarios,
		NarrativeRaw: r.NarrativeRaw,
	}
}

func mapSnapshot(s domain.MarketSnapshot) api.MarketSnapshot {
	return api.MarketSnapshot{
		IndexClose:        s.IndexClose,
		IndexChangePct:    s.IndexChangePct,
		TurnoverTrillions: s.TurnoverTrillions,
		LeverageRatio:     s.LeverageRatio,
		MainNetInflow:     s.MainNetInflow.String(),
		RetailNetInflow:   s.RetailNetInflow.String(),
		WinRate:           s.WinRate,
		Sectors: api.SectorBreakdown{
			Strong: mapSectors(s.Sectors.Strong),
			Weak:   mapSectors(s.Sectors.Weak),
		},
	}
}

func mapSectors(in []domain.SectorHeat) []api.SectorHeat {
	out := make([]api.SectorHeat, 0, len(in))
	for _, sh := range in {
		out = append(out, api.SectorHeat{Name: sh.Name, Value: sh.Value})
	}
	return out
}

// MapDomainProgressToAPI converts a progress event to its wire form.
func MapDomainProgressToAPI(ev domain.ProgressEvent) api.ProgressEvent {
	return api.ProgressEvent{
		Percent:  ev.Percent,
		Title:    ev.Title,
		Detail:   ev.Detail,
		Terminal: ev.Terminal,
		Error:    ev.Err,
		Report:   MapDomainReportToAPI(ev.Report),
	}
}

// MapDomainScheduleToAPI converts the schedule config to its wire form.
func MapDomainScheduleToAPI(cfg domain.ScheduleConfig) api.ScheduleConfig {
	return api.ScheduleConfig{Times: cfg.Times}
}
