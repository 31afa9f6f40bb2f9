package generator

import (
	"context"
	"fmt"
	"testing"

	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/de-tools/market-pulse/pkg/services/market"
	"github.com/de-tools/market-pulse/pkg/services/model"
	"github.com/de-tools/market-pulse/pkg/store/report"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, date string) (domain.MarketSnapshot, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(domain.MarketSnapshot), args.Error(1)
}

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

func testSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		IndexClose:      4077.72,
		IndexChangePct:  -0.2,
		LeverageRatio:   2.53,
		MainNetInflow:   decimal.NewFromFloat(-633.24),
		RetailNetInflow: decimal.NewFromFloat(576.26),
		WinRate:         40.9,
	}
}

const validCompletion = `{
	"scenarios": [{"label": "base", "probability": 0.6, "kind": "base", "narrative": "range-bound"}],
	"narrative": "full report"
}`

func collectEvents(events *[]domain.ProgressEvent) EmitFunc {
	return func(ev domain.ProgressEvent) {
		*events = append(*events, ev)
	}
}

func requireWellFormed(t *testing.T, events []domain.ProgressEvent) {
	t.Helper()
	require.NotEmpty(t, events)
	terminals := 0
	last := -1
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Percent, last, "percent must be non-decreasing")
		last = ev.Percent
		if ev.Terminal {
			terminals++
		}
	}
	assert.Equal(t, 100, events[len(events)-1].Percent)
	assert.True(t, events[len(events)-1].Terminal)
	assert.Equal(t, 1, terminals, "exactly one terminal event")
}

func TestGenerator_Success(t *testing.T) {
	store, err := report.NewFileStore(t.TempDir())
	require.NoError(t, err)

	fetcher := new(mockFetcher)
	completer := new(mockCompleter)
	fetcher.On("Fetch", mock.Anything, "2026-01-08").Return(testSnapshot(), nil)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(validCompletion, nil)

	var events []domain.ProgressEvent
	gen := New(fetcher, completer, store)
	doc, err := gen.Generate(context.Background(), "2026-01-08", domain.RunModeManual, collectEvents(&events))
	require.NoError(t, err)

	requireWellFormed(t, events)
	assert.Equal(t, "done", events[len(events)-1].Title)
	require.NotNil(t, events[len(events)-1].Report)

	assert.True(t, store.Exists("2026-01-08"))
	stored, err := store.Read("2026-01-08")
	require.NoError(t, err)
	assert.Equal(t, doc.Scenarios, stored.Scenarios)
	assert.Equal(t, "base", stored.Scenarios[0].Label)
	assert.Equal(t, "full report", stored.NarrativeRaw)
	assert.Equal(t, domain.RunModeManual, stored.RunMode)
}

func TestGenerator_DataUnavailable(t *testing.T) {
	store, err := report.NewFileStore(t.TempDir())
	require.NoError(t, err)

	fetcher := new(mockFetcher)
	completer := new(mockCompleter)
	fetcher.On("Fetch", mock.Anything, "2026-01-10").
		Return(domain.MarketSnapshot{}, fmt.Errorf("%w: market closed", market.ErrDataUnavailable))

	var events []domain.ProgressEvent
	gen := New(fetcher, completer, store)
	_, err = gen.Generate(context.Background(), "2026-01-10", domain.RunModePreMarket, collectEvents(&events))
	require.ErrorIs(t, err, market.ErrDataUnavailable)

	requireWellFormed(t, events)
	assert.Equal(t, "failed", events[len(events)-1].Title)
	assert.False(t, store.Exists("2026-01-10"), "no partial document on failure")
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerator_ModelTransportError(t *testing.T) {
	store, err := report.NewFileStore(t.TempDir())
	require.NoError(t, err)

	fetcher := new(mockFetcher)
	completer := new(mockCompleter)
	fetcher.On("Fetch", mock.Anything, "2026-01-08").Return(testSnapshot(), nil)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: connection reset", model.ErrModelError))

	var events []domain.ProgressEvent
	gen := New(fetcher, completer, store)
	_, err = gen.Generate(context.Background(), "2026-01-08", domain.RunModeMidday, collectEvents(&events))
	require.ErrorIs(t, err, model.ErrModelError)

	terminal := events[len(events)-1]
	assert.Equal(t, "failed", terminal.Title)
	assert.Contains(t, terminal.Detail, "connection reset")
	assert.False(t, store.Exists("2026-01-08"))
}

func TestGenerator_MalformedResponse(t *testing.T) {
	store, err := report.NewFileStore(t.TempDir())
	require.NoError(t, err)

	fetcher := new(mockFetcher)
	completer := new(mockCompleter)
	fetcher.On("Fetch", mock.Anything, "2026-01-08").Return(testSnapshot(), nil)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("no json here, sorry", nil)

	var events []domain.ProgressEvent
	gen := New(fetcher, completer, store)
	_, err = gen.Generate(context.Background(), "2026-01-08", domain.RunModePostMarket, collectEvents(&events))
	require.ErrorIs(t, err, model.ErrMalformedResponse)

	requireWellFormed(t, events)
	assert.False(t, store.Exists("2026-01-08"))
}

func TestGenerator_FailureLeavesPreviousDocument(t *testing.T) {
	store, err := report.NewFileStore(t.TempDir())
	require.NoError(t, err)

	fetcher := new(mockFetcher)
	completer := new(mockCompleter)

	fetcher.On("Fetch", mock.Anything, "2026-01-08").Return(testSnapshot(), nil).Once()
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(validCompletion, nil).Once()

	gen := New(fetcher, completer, store)
	_, err = gen.Generate(context.Background(), "2026-01-08", domain.RunModePreMarket, nil)
	require.NoError(t, err)
	before, err := store.ReadRaw("2026-01-08")
	require.NoError(t, err)

	fetcher.On("Fetch", mock.Anything, "2026-01-08").
		Return(domain.MarketSnapshot{}, market.ErrDataUnavailable).Once()
	_, err = gen.Generate(context.Background(), "2026-01-08", domain.RunModeMidday, nil)
	require.Error(t, err)

	after, err := store.ReadRaw("2026-01-08")
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed run must not touch the stored document")
}

func TestGenerator_DebugCapture(t *testing.T) {
	store, err := report.NewFileStore(t.TempDir())
	require.NoError(t, err)

	fetcher := new(mockFetcher)
	completer := new(mockCompleter)
	fetcher.On("Fetch", mock.Anything, "2026-01-08").Return(testSnapshot(), nil)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(validCompletion, nil)

	gen := New(fetcher, completer, store)
	gen.DebugCapture = true
	_, err = gen.Generate(context.Background(), "2026-01-08", domain.RunModeManual, nil)
	require.NoError(t, err)

	log, err := store.ReadDebugLog("2026-01-08")
	require.NoError(t, err)
	assert.Contains(t, log, "start")
	assert.Contains(t, log, "done")
}
