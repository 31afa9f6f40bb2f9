package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/de-tools/market-pulse/pkg/adapters"
	"github.com/de-tools/market-pulse/pkg/models/api"
	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/de-tools/market-pulse/pkg/services/market"
	"github.com/de-tools/market-pulse/pkg/services/model"
	"github.com/de-tools/market-pulse/pkg/services/run"
	configstore "github.com/de-tools/market-pulse/pkg/store/config"
	reportstore "github.com/de-tools/market-pulse/pkg/store/report"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Coordinator is the slice of the generation coordinator the API uses.
type Coordinator interface {
	Trigger(date string, mode domain.RunMode) *run.Job
	RunSync(ctx context.Context, date string, mode domain.RunMode) (*domain.Report, error)
	Subscribe(date string) (<-chan domain.ProgressEvent, func())
}

// Reloader lets the config endpoint nudge the scheduler after an
// update.
type Reloader interface {
	Reload()
}

type Handler struct {
	reports reportstore.Store
	config  *configstore.Store
	coord   Coordinator
	sched   Reloader
	now     func() time.Time
}

func NewHandler(reports reportstore.Store, config *configstore.Store, coord Coordinator, sched Reloader) *Handler {
	return &Handler{
		reports: reports,
		config:  config,
		coord:   coord,
		sched:   sched,
		now:     time.Now,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, map[string]string{"status": "ok", "env": h.config.Env()})
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	dates, err := h.reports.List()
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to list reports")
		http.Error(w, "failed to list reports", http.StatusInternalServerError)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(r.Context(), w, api.ReportList{Dates: dates})
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	doc, err := h.reports.Read(date)
	if err != nil {
		h.reportError(w, r, date, err)
		return
	}
	writeJSON(r.Context(), w, adapters.MapDomainReportToAPI(doc))
}

func (h *Handler) GetReportRaw(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	raw, err := h.reports.ReadRaw(date)
	if err != nil {
		h.reportError(w, r, date, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

func (h *Handler) GetReportText(w http.ResponseWriter, r *http.Request) {
	h.serveTextVariant(w, r, h.reports.ReadText)
}

func (h *Handler) GetReportDebug(w http.ResponseWriter, r *http.Request) {
	h.serveTextVariant(w, r, h.reports.ReadDebugLog)
}

func (h *Handler) serveTextVariant(w http.ResponseWriter, r *http.Request, read func(string) (string, error)) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	text, err := read(date)
	if err != nil {
		h.reportError(w, r, date, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, text)
}

// Run executes a generation synchronously and returns the document.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	date, mode, ok := h.runParams(w, r)
	if !ok {
		return
	}

	doc, err := h.coord.RunSync(r.Context(), date, mode)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("date", date).Msg("synchronous run failed")
		status := http.StatusBadGateway
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, generationFailureDetail(err), status)
		return
	}
	writeJSON(r.Context(), w, adapters.MapDomainReportToAPI(doc))
}

// TriggerRun starts (or joins) a generation and returns immediately
// with the job handle; the dashboard follows the progress stream.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	date, mode, ok := h.runParams(w, r)
	if !ok {
		return
	}

	job := h.coord.Trigger(date, mode)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(r.Context(), w, api.RunAccepted{
		JobID:  job.ID.String(),
		Date:   job.Date,
		Mode:   string(job.Mode),
		Status: string(job.Status()),
	})
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, api.ConfigResponse{
		Config: adapters.MapDomainScheduleToAPI(h.config.Get()),
		Env:    h.config.Env(),
	})
}

func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var payload api.ScheduleConfig
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid config payload", http.StatusBadRequest)
		return
	}

	cfg, err := h.config.Update(payload.Times)
	if err != nil {
		if errors.Is(err, configstore.ErrInvalidConfig) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to persist config")
		http.Error(w, "failed to persist config", http.StatusInternalServerError)
		return
	}

	if h.sched != nil {
		h.sched.Reload()
	}
	zerolog.Ctx(r.Context()).Info().Strs("schedule_times", cfg.Times).Msg("schedule updated")
	writeJSON(r.Context(), w, api.ConfigResponse{
		Config: adapters.MapDomainScheduleToAPI(cfg),
		Env:    h.config.Env(),
	})
}

func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return "", false
	}
	return date, true
}

// runParams reads the optional date and mode of a run request, filling
// in today and manual mode.
func (h *Handler) runParams(w http.ResponseWriter, r *http.Request) (string, domain.RunMode, bool) {
	var req api.RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid run payload", http.StatusBadRequest)
			return "", "", false
		}
	}

	date := req.Date
	if date == "" {
		date = h.now().Format(domain.DateLayout)
	} else if _, err := time.Parse(domain.DateLayout, date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return "", "", false
	}

	mode := domain.RunModeManual
	if req.Mode != "" {
		mode = domain.RunMode(req.Mode)
		if !mode.Valid() {
			http.Error(w, "unknown run mode", http.StatusBadRequest)
			return "", "", false
		}
	}
	return date, mode, true
}

func (h *Handler) reportError(w http.ResponseWriter, r *http.Request, date string, err error) {
	if errors.Is(err, reportstore.ErrNotFound) {
		http.Error(w, "no report for "+date+", trigger generation manually", http.StatusNotFound)
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Str("date", date).Msg("failed to read report")
	http.Error(w, "failed to read report", http.StatusInternalServerError)
}

// generationFailureDetail keeps upstream failure details readable for
// the dashboard while tagging the failure class.
func generationFailureDetail(err error) string {
	switch {
	case errors.Is(err, market.ErrDataUnavailable):
		return fmt.Sprintf("market data unavailable: %v", err)
	case errors.Is(err, model.ErrModelError):
		return fmt.Sprintf("model call failed: %v", err)
	case errors.Is(err, model.ErrMalformedResponse):
		return fmt.Sprintf("model response rejected: %v", err)
	default:
		return err.Error()
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}
