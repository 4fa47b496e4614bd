package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/sawpanic/edgarscore/internal/data"
	"github.com/sawpanic/edgarscore/internal/financials"
	"github.com/sawpanic/edgarscore/internal/scoring"
)

// PathDateLayout is the dd-mm-yyyy form used in ticker URLs.
const PathDateLayout = "02-01-2006"

func (h *Handlers) tickerDate(w http.ResponseWriter, r *http.Request) (string, time.Time, bool) {
	vars := mux.Vars(r)
	ticker := strings.ToLower(vars["ticker"])
	date, err := time.Parse(PathDateLayout, vars["date"])
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_date", "date must be dd-mm-yyyy")
		return "", time.Time{}, false
	}
	return ticker, date, true
}

// TickerPrice handles GET /api/ticker-price/{ticker}/{date}
func (h *Handlers) TickerPrice(w http.ResponseWriter, r *http.Request) {
	ticker, date, ok := h.tickerDate(w, r)
	if !ok {
		return
	}
	price, err := h.data.GetPrice(r.Context(), ticker, date)
	if err != nil {
		h.writeDataError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PriceResponse{Ticker: ticker, Date: date.Format(scoring.DateLayout), Price: price})
}

// TickerVolume handles GET /api/ticker-volume/{ticker}/{date}
func (h *Handlers) TickerVolume(w http.ResponseWriter, r *http.Request) {
	ticker, date, ok := h.tickerDate(w, r)
	if !ok {
		return
	}
	volume, err := h.data.GetVolume(r.Context(), ticker, date)
	if err != nil {
		h.writeDataError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, VolumeResponse{Ticker: ticker, Date: date.Format(scoring.DateLayout), Volume: volume})
}

// TickerData handles GET /api/ticker-data/{ticker}/{start_year}/{end_year}
// and returns the raw yearly records keyed by year.
func (h *Handlers) TickerData(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	start, err1 := strconv.Atoi(vars["start_year"])
	end, err2 := strconv.Atoi(vars["end_year"])
	if err1 != nil || err2 != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_year", "years must be integers")
		return
	}
	if end < start {
		h.writeError(w, r, http.StatusBadRequest, "invalid_range", "end_year is before start_year")
		return
	}
	if end-start+1 > data.MaxYearSpan {
		h.writeError(w, r, http.StatusBadRequest, "invalid_range", fmt.Sprintf("at most %d years per request", data.MaxYearSpan))
		return
	}

	records, err := h.data.GetTickerData(r.Context(), strings.ToLower(vars["ticker"]), financials.Year, start, end)
	if err != nil {
		h.writeDataError(w, r, err)
		return
	}
	if records == nil {
		records = map[string]financials.RawRecord{}
	}
	h.writeJSON(w, http.StatusOK, records)
}
