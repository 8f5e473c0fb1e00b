package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"meetslot/internal/availability"
	"meetslot/internal/export"
	"meetslot/internal/models"
	"meetslot/internal/service"

	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ResultsResponse is the body of GET /api/polls/{id}/results.
type ResultsResponse struct {
	Poll            *models.Poll                `json:"poll"`
	NoData          bool                        `json:"no_data"`
	TotalResponses  int                         `json:"total_responses"`
	MaxParticipants int                         `json:"max_participants"`
	BestWindows     []availability.Window       `json:"best_windows"`
	Axis            []string                    `json:"axis"`
	Grid            [][]availability.GridCell   `json:"grid"`
	Legend          []string                    `json:"legend"`
	SlotMismatches  []availability.SlotMismatch `json:"slot_mismatches,omitempty"`
	Heatmap         availability.Heatmap        `json:"heatmap"`
	Dropped         models.DropStats            `json:"dropped"`
	Cached          bool                        `json:"cached"`
}

func newResultsResponse(pr *service.PollResults) ResultsResponse {
	res := pr.Result
	legend := make([]string, 0, len(availability.LegendIntensities))
	for _, swatch := range availability.LegendSwatches() {
		legend = append(legend, swatch.String())
	}
	windows := res.BestWindows
	if windows == nil {
		windows = []availability.Window{}
	}
	return ResultsResponse{
		Poll:            pr.Poll,
		NoData:          res.Empty(),
		TotalResponses:  res.TotalResponses,
		MaxParticipants: res.MaxParticipants,
		BestWindows:     windows,
		Axis:            res.Axis.Labels(),
		Grid:            availability.Grid(pr.Poll.Days, res),
		Legend:          legend,
		SlotMismatches:  res.SlotMismatches,
		Heatmap:         res.Heatmap,
		Dropped:         pr.Dropped,
		Cached:          pr.Cached,
	}
}

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var in service.CreatePollInput
	if !decodeBody(w, r, &in) {
		return
	}

	poll, err := s.svc.CreatePoll(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/polls/"+poll.ID)
	writeJSON(w, http.StatusCreated, poll)
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := s.svc.GetPoll(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	var in service.SubmitResponseInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.PollID = r.PathValue("id")

	resp, err := s.svc.SubmitResponse(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	pr, err := s.svc.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultsResponse(pr))
}

func (s *Server) handleResultsXLSX(w http.ResponseWriter, r *http.Request) {
	pr, err := s.svc.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteResults(&buf, pr.Poll, pr.Result); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="poll-`+pr.Poll.ID+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		zerolog.Ctx(r.Context()).Warn().Interface("failed", failed).Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case service.IsNotFound(err):
		writeError(w, http.StatusNotFound, "poll not found")
	case service.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, availability.ErrInvalidConfiguration):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
