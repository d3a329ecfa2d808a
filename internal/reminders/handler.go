package reminders

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

// NewHandler creates a reminders HTTP handler.
func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes mounts reminder endpoints. Expected to be mounted under /api/v1.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/appointments/{appointmentID}/reminders", h.schedule)
	r.Post("/appointments/{appointmentID}/reminders/{kind}/send", h.sendManual)
	r.Post("/reminders/sweep", h.sweep)
	r.Get("/reminders", h.status)
	r.Post("/patients/{patientID}/responses", h.respond)
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appointmentID")
	res, err := h.engine.Schedule(r.Context(), appointmentID)
	code := http.StatusCreated
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrParse):
		code = http.StatusUnprocessableEntity
	default:
		h.logger.Error("reminders handler: schedule", "appointment_id", appointmentID, "error", err)
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, res)
}

type sweepRequest struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	var asOf time.Time
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	writeJSON(w, http.StatusOK, h.engine.CheckAndSendDueReminders(r.Context(), asOf))
}

type respondRequest struct {
	Reply string `json:"reply"`
	Kind  string `json:"kind,omitempty"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.ProcessPatientResponse(r.Context(), patientID, req.Reply, NormalizeKind(req.Kind)))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	q := StatusQuery{
		AppointmentID: r.URL.Query().Get("appointment_id"),
		PatientID:     r.URL.Query().Get("patient_id"),
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		q.Limit = n
	}
	report, err := h.engine.Status(r.Context(), q)
	if err != nil {
		h.fail(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) sendManual(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appointmentID")
	kind, ok := ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		http.Error(w, "unknown reminder kind", http.StatusBadRequest)
		return
	}
	res, err := h.engine.SendManual(r.Context(), appointmentID, kind)
	if err != nil {
		h.fail(w, "manual send", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrParse):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("reminders handler: "+op, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
