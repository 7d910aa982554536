package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"royalcourt/replay"
)

const roomsPrefix = "/api/rooms/"

type HTTPHandler struct {
	ledger Service
	log    logrus.FieldLogger
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHTTPHandler(ledgerService Service, log logrus.FieldLogger) *HTTPHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPHandler{
		ledger: ledgerService,
		log:    log.WithField("component", "ledger.http"),
	}
}

// RegisterRoutes serves
//
//	GET /api/rooms/{code}/history
//	GET /api/rooms/{code}/history/{round}
//	GET /api/rooms/{code}/history/{round}/replay
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(roomsPrefix, h.handleRooms)
}

func (h *HTTPHandler) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, roomsPrefix), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[1] != "history" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(parts[0]))
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing room code")
		return
	}

	switch len(parts) {
	case 2:
		h.handleList(w, r, code)
		return
	case 3, 4:
		round, err := strconv.Atoi(parts[2])
		if err != nil || round <= 0 {
			writeError(w, http.StatusBadRequest, "invalid round")
			return
		}
		if len(parts) == 3 {
			h.handleGet(w, r, code, round)
			return
		}
		if parts[3] == "replay" {
			h.handleReplay(w, r, code, round)
			return
		}
	}
	writeError(w, http.StatusNotFound, "not found")
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request, code string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.ledger.ListByRoom(ctx, code, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		h.log.WithError(err).WithField("room", code).Warn("list history failed")
		writeError(w, http.StatusInternalServerError, "query history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":  code,
		"items": items,
	})
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request, code string, round int) {
	result, ok := h.load(w, r, code, round)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleReplay(w http.ResponseWriter, r *http.Request, code string, round int) {
	result, ok := h.load(w, r, code, round)
	if !ok {
		return
	}
	spec := result.Spec
	if hero := r.URL.Query().Get("seat"); hero != "" {
		seat, err := strconv.Atoi(hero)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid seat")
			return
		}
		spec.HeroSeat = seat
	}
	tape, err := replay.GenerateTape(spec)
	if err != nil {
		var replayErr *replay.ReplayError
		if errors.As(err, &replayErr) {
			h.log.WithFields(logrus.Fields{"room": code, "round": round, "step": replayErr.StepIndex}).
				Warn("stored round does not replay")
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: replayErr.Message, Reason: replayErr.Reason})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tape)
}

func (h *HTTPHandler) load(w http.ResponseWriter, r *http.Request, code string, round int) (*RoundResult, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	result, err := h.ledger.Get(ctx, code, round)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "round not found")
			return nil, false
		}
		h.log.WithError(err).WithField("room", code).Warn("get round failed")
		writeError(w, http.StatusInternalServerError, "query round failed")
		return nil, false
	}
	return result, true
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return clampLimit(n)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
