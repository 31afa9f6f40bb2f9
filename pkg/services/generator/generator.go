package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/de-tools/market-pulse/pkg/services/market"
	"github.com/de-tools/market-pulse/pkg/services/model"
	"github.com/de-tools/market-pulse/pkg/store/report"
	"github.com/rs/zerolog"
)

// EmitFunc receives progress events for one generation run.
type EmitFunc = func(domain.ProgressEvent)

// Generator orchestrates one generation run: fetch market data, call
// the model, validate, persist.
type Generator struct {
	fetcher   market.Fetcher
	completer model.Completer
	store     report.Store

	// DebugCapture mirrors stage progress into the per-date debug log.
	DebugCapture bool
}

func New(fetcher market.Fetcher, completer model.Completer, store report.Store) *Generator {
	return &Generator{
		fetcher:   fetcher,
		completer: completer,
		store:     store,
	}
}

// Generate produces and persists the report for date. Progress events
// are strictly non-decreasing in percent and end at 100: "done" on
// success, "failed" otherwise. No partial document is ever written.
func (g *Generator) Generate(
	ctx context.Context,
	date string,
	mode domain.RunMode,
	emit EmitFunc,
) (*domain.Report, error) {
	logger := zerolog.Ctx(ctx).With().Str("date", date).Str("mode", string(mode)).Logger()

	g.step(date, emit, domain.ProgressEvent{Percent: 5, Title: "start", Detail: "fetching market data"})

	snap, err := g.fetcher.Fetch(ctx, date)
	if err != nil {
		return nil, g.fail(date, emit, &logger, err)
	}
	g.step(date, emit, domain.ProgressEvent{Percent: 25, Title: "market data", Detail: "snapshot fetched"})

	system, user := model.BuildPrompt(date, mode, snap)
	g.step(date, emit, domain.ProgressEvent{Percent: 40, Title: "model", Detail: "calling generative model"})

	raw, err := g.completer.Complete(ctx, system, user)
	if err != nil {
		return nil, g.fail(date, emit, &logger, err)
	}
	g.step(date, emit, domain.ProgressEvent{Percent: 85, Title: "model", Detail: "model response received"})

	scenarios, narrative, err := model.Parse(raw)
	if err != nil {
		return nil, g.fail(date, emit, &logger, err)
	}
	g.step(date, emit, domain.ProgressEvent{Percent: 95, Title: "validate", Detail: "response validated"})

	doc := &domain.Report{
		Date:         date,
		GeneratedAt:  time.Now(),
		RunMode:      mode,
		Snapshot:     snap,
		Scenarios:    scenarios,
		NarrativeRaw: narrative,
	}
	if err := g.store.Write(date, doc); err != nil {
		return nil, g.fail(date, emit, &logger, err)
	}

	logger.Info().Int("scenarios", len(scenarios)).Msg("report generated")
	g.step(date, emit, domain.ProgressEvent{
		Percent:  100,
		Title:    "done",
		Detail:   "report persisted",
		Terminal: true,
		Report:   doc,
	})
	return doc, nil
}

func (g *Generator) step(date string, emit EmitFunc, ev domain.ProgressEvent) {
	if g.DebugCapture {
		line := fmt.Sprintf("[%3d%%] %s: %s", ev.Percent, ev.Title, ev.Detail)
		if ev.Err != "" {
			line += " error=" + ev.Err
		}
		// Capture failures are not worth failing the run over.
		_ = g.store.AppendDebugLog(date, line)
	}
	if emit != nil {
		emit(ev)
	}
}

func (g *Generator) fail(date string, emit EmitFunc, logger *zerolog.Logger, err error) error {
	logger.Error().Err(err).Msg("report generation failed")
	g.step(date, emit, domain.ProgressEvent{
		Percent:  100,
		Title:    "failed",
		Detail:   err.Error(),
		Terminal: true,
		Err:      err.Error(),
	})
	return err
}
