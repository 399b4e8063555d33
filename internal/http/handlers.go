package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"

	"spesedonut/internal/core"
	"spesedonut/internal/live"
	"spesedonut/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once the live session has its initial snapshot
// and the remote store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)
	fail := func(name, reason string) {
		checks[name] = reason
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", "failed: templates not loaded")
	} else {
		checks["templates"] = "ok"
	}

	if s.live == nil || !s.live.Ready() {
		fail("live_session", "waiting for initial snapshot")
	} else {
		checks["live_session"] = map[string]any{
			"status":        "ok",
			"frame_version": s.live.Current().Version,
			"records":       len(s.live.Snapshot()),
		}
	}

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			fail("store", "failed: "+err.Error())
		} else {
			checks["store"] = "ok"
		}
	}

	checks["sse_clients"] = s.hub.Count()
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"limited_total":  s.rateLimiter.Limited(),
	}
	checks["idempotency_keys"] = s.idempotency.Size()

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

type indexData struct {
	Total          string
	Legend         []live.Legend
	IdempotencyKey string
	MaxNameLength  int
	MinCost        string
	MaxCost        string
	Width          int
	Height         int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var frame live.Frame
	if s.live != nil {
		frame = s.live.Current()
	}
	size := int(2*frame.Geometry.OuterRadius) + 20
	if size <= 20 {
		size = 320
	}

	data := indexData{
		Total:          frame.Total.Display,
		Legend:         frame.Legend,
		IdempotencyKey: uuid.NewString(),
		MaxNameLength:  core.MaxNameLength,
		MinCost:        core.Money{Cents: core.MinCostCents}.String(),
		MaxCost:        core.Money{Cents: core.MaxCostCents}.String(),
		Width:          size,
		Height:         size,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed",
			log.FieldError, err, "template", "index.html")
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// handleListExpenses returns the replica's records in insertion order.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	records := s.live.Snapshot()
	type item struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		CostCents int64  `json:"cost_cents"`
		Cost      string `json:"cost"`
	}
	out := make([]item, len(records))
	for i, rec := range records {
		out[i] = item{ID: rec.ID, Name: rec.Name, CostCents: rec.Cost.Cents, Cost: rec.Cost.String()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out, "count": len(out)})
}

// handleChart returns the current frame, honouring If-None-Match.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	frame := s.live.Current()
	etag := frame.ETag()
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// handleEvents streams frames, starting with the current one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	client := s.hub.NewClient()
	defer s.hub.CloseClient(client)

	logger := log.FromContext(r.Context())
	logger.DebugContext(r.Context(), "SSE client connected", "client_id", client.ID)
	s.hub.ServeHTTP(w, r, client, live.FrameMessage(s.live.Current()))
	logger.DebugContext(r.Context(), "SSE client disconnected", "client_id", client.ID)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(r)
	name, cost, err := ParseCreateInput(p)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCost) {
			s.writeError(w, r, log.OpCreate, err)
			return
		}
		log.FromContext(ctx).WarnContext(ctx, "Parse body error", log.FieldError, err)
		BadRequestError("Formato richiesta non valido").Write(w)
		return
	}

	// Duplicates wait on the first request's call, so it must outlive that request.
	shared := context.WithoutCancel(ctx)
	rec, replayed, err := s.idempotency.Do(IdempotencyKey(r, p), func() (core.ExpenseRecord, error) {
		return s.commands.CreateExpense(shared, name, cost)
	})
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Expense created",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, rec.ID,
		log.FieldExpenseName, rec.Name,
		log.FieldCostCents, rec.Cost.Cents,
		"replayed", replayed)

	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, recordJSON(rec))
		return
	}

	msg := "Spesa registrata: " + rec.Name + " (" + rec.Cost.String() + ")"
	NewHTMXResponse().
		TriggerExpenseCreated(rec.ID).
		TriggerFormReset().
		TriggerSuccessNotification(msg).
		BodyHTML(`<div class="success">` + template.HTMLEscapeString(msg) + `</div>`).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	in, err := ParseUpdateInput(NewRequestBodyParser(r))
	if err != nil {
		if errors.Is(err, core.ErrInvalidCost) {
			s.writeError(w, r, log.OpUpdate, err)
			return
		}
		BadRequestError("Formato richiesta non valido").Write(w)
		return
	}
	if in.Name == nil && in.Cost == nil {
		UnprocessableEntityError("Nessun campo da aggiornare").Write(w)
		return
	}

	rec, err := s.commands.UpdateExpense(ctx, id, in)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Expense updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldExpenseID, rec.ID,
		log.FieldCostCents, rec.Cost.Cents)

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, recordJSON(rec))
		return
	}
	NewHTMXResponse().
		TriggerExpenseUpdated(rec.ID).
		TriggerSuccessNotification("Spesa aggiornata").
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.commands.DeleteExpense(ctx, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, id)

	NewHTMXResponse().
		TriggerExpenseDeleted(id).
		TriggerSuccessNotification("Spesa eliminata").
		Status(http.StatusOK).
		Write(w)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := errorStatus(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Expense command failed", log.FieldOperation, op, log.FieldError, err)
	} else {
		logger.WarnContext(r.Context(), "Expense command rejected", log.FieldOperation, op, log.FieldError, err)
	}

	if wantsJSON(r) {
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
}

func recordJSON(rec core.ExpenseRecord) map[string]any {
	return map[string]any{
		"id":         rec.ID,
		"name":       rec.Name,
		"cost_cents": rec.Cost.Cents,
		"cost":       rec.Cost.String(),
	}
}
