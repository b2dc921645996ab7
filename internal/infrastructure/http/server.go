package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fxcore-service/internal/application"
	"fxcore-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	eng  *application.Engine
	ping func(ctx context.Context) error
}

func NewServer(eng *application.Engine, ping func(ctx context.Context) error) *Server {
	return &Server{eng: eng, ping: ping}
}

// envelope is the response shape of every /api/fx endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type rateResponse struct {
	Pair            string    `json:"pair"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	BaseRate        float64   `json:"baseRate"`
	RateWithMarkup  float64   `json:"rateWithMarkup"`
	MarkupPercent   float64   `json:"markupPercent"`
	Provider        string    `json:"provider"`
	Stale           bool      `json:"stale,omitempty"`
	FetchedAt       time.Time `json:"fetchedAt"`
	EstimatedAmount *float64  `json:"estimatedAmount,omitempty"`
}

func toRateResponse(p domain.PricedRate, amount float64) rateResponse {
	base, quote, _ := p.Pair.Split()
	out := rateResponse{
		Pair:           string(p.Pair),
		From:           string(base),
		To:             string(quote),
		BaseRate:       p.BaseRate,
		RateWithMarkup: p.RateWithMarkup,
		MarkupPercent:  p.MarkupPercent(),
		Provider:       p.Provider,
		Stale:          p.Stale,
		FetchedAt:      p.FetchedAt,
	}
	if amount > 0 {
		est := amount * p.RateWithMarkup
		out.EstimatedAmount = &est
	}
	return out
}

func (s *Server) GetRate(w http.ResponseWriter, r *http.Request) {
	// Currency codes are matched case-insensitively.
	from := domain.Currency(strings.ToUpper(chi.URLParam(r, "from")))
	to := domain.Currency(strings.ToUpper(chi.URLParam(r, "to")))

	var amount float64
	if raw := r.URL.Query().Get("amount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "amount must be a non-negative number")
			return
		}
		amount = v
	}

	priced, err := s.eng.GetRate(r.Context(), from, to, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: toRateResponse(priced, amount)})
}

func (s *Server) GetAllRates(w http.ResponseWriter, r *http.Request) {
	all := s.eng.GetAllRates(r.Context())

	rates := make(map[string]rateResponse, len(all.Rates))
	for pair, priced := range all.Rates {
		rates[string(pair)] = toRateResponse(priced, 0)
	}
	errs := make(map[string]string, len(all.Errors))
	for pair, msg := range all.Errors {
		errs[string(pair)] = msg
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"rates":     rates,
		"errors":    errs,
		"timestamp": all.At,
	}})
}

type convertRequest struct {
	Amount         float64 `json:"amount"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	UserID         string  `json:"userId"`
	PhoneNumber    string  `json:"phoneNumber"`
	TransactionRef string  `json:"transactionRef"`
	Origin         string  `json:"origin"`
}

type conversionResponse struct {
	ConversionID    string    `json:"conversionId"`
	Pair            string    `json:"pair"`
	OriginalAmount  float64   `json:"originalAmount"`
	ConvertedAmount float64   `json:"convertedAmount"`
	BaseRate        float64   `json:"baseRate"`
	RateWithMarkup  float64   `json:"rateWithMarkup"`
	MarkupPercent   float64   `json:"markupPercent"`
	MarkupAmount    float64   `json:"markupAmount"`
	Provider        string    `json:"provider"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toConversionResponse(rec domain.ConversionRecord) conversionResponse {
	return conversionResponse{
		ConversionID:    rec.ID,
		Pair:            string(rec.Pair),
		OriginalAmount:  rec.OriginalAmount,
		ConvertedAmount: rec.ConvertedAmount,
		BaseRate:        rec.BaseRate,
		RateWithMarkup:  rec.RateWithMarkup,
		MarkupPercent:   rec.MarkupPercent,
		MarkupAmount:    rec.MarkupAmount,
		Provider:        rec.Provider,
		CreatedAt:       rec.CreatedAt,
	}
}

func (s *Server) Convert(w http.ResponseWriter, r *http.Request) {
	var body convertRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec, err := s.eng.ConvertAmount(r.Context(), body.Amount,
		domain.Currency(strings.ToUpper(body.From)), domain.Currency(strings.ToUpper(body.To)),
		domain.ConversionMetadata{
			UserID:         body.UserID,
			PhoneNumber:    body.PhoneNumber,
			TransactionRef: body.TransactionRef,
			Origin:         body.Origin,
		})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: toConversionResponse(rec)})
}

func (s *Server) GetPairs(w http.ResponseWriter, _ *http.Request) {
	pairs := make([]string, len(domain.SupportedPairs))
	for i, p := range domain.SupportedPairs {
		pairs[i] = string(p)
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{"pairs": pairs}})
}

func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.eng.Health()

	providers := make([]map[string]any, 0, len(h.Providers))
	for _, p := range h.Providers {
		providers = append(providers, map[string]any{
			"name":     p.Provider,
			"state":    p.State.String(),
			"failures": p.Failures,
		})
	}
	status := "healthy"
	code := http.StatusOK
	if h.Unhealthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, envelope{Success: !h.Unhealthy(), Data: map[string]any{
		"status":      status,
		"cacheSize":   h.CacheSize,
		"cachedPairs": h.CachedPairs,
		"providers":   providers,
	}})
}

func (s *Server) GetProfitStats(w http.ResponseWriter, r *http.Request) {
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "24h"
	}
	stats, err := s.eng.ProfitStats(r.Context(), timeframe)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	split := s.eng.CurrentProfitSplit()
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"timeframe":        stats.Timeframe,
		"totalProfit":      stats.TotalProfit,
		"totalConversions": stats.TotalConversions,
		"byPair":           stats.ByPair,
		"split": map[string]float64{
			"platform": split.Platform,
			"partner":  split.Partner,
			"reserve":  split.Reserve,
		},
	}})
}

func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = v
	}
	recs, err := s.eng.UserHistory(r.Context(), userID, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]conversionResponse, len(recs))
	for i, rec := range recs {
		out[i] = toConversionResponse(rec)
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{"conversions": out}})
}

func (s *Server) GetMarkupTable(w http.ResponseWriter, _ *http.Request) {
	table := s.eng.MarkupTable()
	out := make(map[string]float64, len(table))
	for pair, m := range table {
		out[string(pair)] = m
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{"markups": out}})
}

type markupUpdateRequest struct {
	Pair   string  `json:"pair"`
	Markup float64 `json:"markup"`
}

func (s *Server) UpdateMarkup(w http.ResponseWriter, r *http.Request) {
	var body markupUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.eng.UpdateMarkup(domain.Pair(body.Pair), body.Markup); err != nil {
		writeEngineError(w, err)
		return
	}
	s.GetMarkupTable(w, r)
}

type profitSplitRequest struct {
	Platform float64 `json:"platform"`
	Partner  float64 `json:"partner"`
	Reserve  float64 `json:"reserve"`
}

func (s *Server) GetProfitSplit(w http.ResponseWriter, _ *http.Request) {
	split := s.eng.CurrentProfitSplit()
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]float64{
		"platform": split.Platform,
		"partner":  split.Partner,
		"reserve":  split.Reserve,
	}})
}

func (s *Server) UpdateProfitSplit(w http.ResponseWriter, r *http.Request) {
	var body profitSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.eng.UpdateProfitSplit(domain.ProfitSplit{
		Platform: body.Platform,
		Partner:  body.Partner,
		Reserve:  body.Reserve,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.GetProfitSplit(w, r)
}

// writeEngineError maps engine errors onto status codes: validation
// failures are the caller's fault, conflicts are duplicates, and total
// provider failure is an upstream outage.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedPair),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrMarkupOutOfBounds),
		errors.Is(err, domain.ErrInvalidProfitSplit),
		errors.Is(err, application.ErrBadRequest),
		errors.Is(err, application.ErrInvalidTimeframe):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, application.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoProviderAvailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}
