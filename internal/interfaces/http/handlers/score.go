package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sawpanic/edgarscore/internal/report"
	"github.com/sawpanic/edgarscore/internal/scoring"
)

const maxScoreBody = 1 << 20

// Filters handles GET /api/filters
func (h *Handlers) Filters(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, FiltersResponse{Fields: scoring.Fields()})
}

// Score handles POST /api/score. Filters are checked before any data is
// fetched; an unknown field answers 400 with code filter_validation.
func (h *Handlers) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScoreBody)).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed JSON body: "+err.Error())
		return
	}

	cfg, err := h.scoreConfig(req)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if _, err := scoring.CompileFilters(req.Filters); err != nil {
		h.writeScoreError(w, r, err)
		return
	}

	var tickers []string
	for _, t := range req.Tickers {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tickers = append(tickers, t)
		}
	}

	scores, err := scoring.New(h.data, cfg, h.options...).ComputeScore(r.Context(), tickers, req.Filters)
	if err != nil {
		h.writeScoreError(w, r, err)
		return
	}

	resp := ScoreResponse{ScoreDocument: report.NewScoreDocument(scores), Matches: make([]string, 0, len(scores))}
	for _, s := range scores {
		resp.Matches = append(resp.Matches, s.Ticker)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) scoreConfig(req ScoreRequest) (scoring.Config, error) {
	cfg := h.scoring
	if req.StartDate != "" {
		t, err := scoring.ParseFiscalDate(req.StartDate)
		if err != nil {
			return cfg, err
		}
		cfg.StartDate = t
	}
	if req.EndDate != "" {
		t, err := scoring.ParseFiscalDate(req.EndDate)
		if err != nil {
			return cfg, err
		}
		cfg.EndDate = t
	}
	if req.Sort != "" {
		f, err := scoring.ParseField(req.Sort)
		if err != nil {
			return cfg, err
		}
		cfg.SortField = f
	}
	return cfg, cfg.Validate()
}

func (h *Handlers) writeScoreError(w http.ResponseWriter, r *http.Request, err error) {
	var fve *scoring.FilterValidationError
	if errors.As(err, &fve) {
		h.writeError(w, r, http.StatusBadRequest, "filter_validation", err.Error())
		return
	}
	h.writeDataError(w, r, err)
}
