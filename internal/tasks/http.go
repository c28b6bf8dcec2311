package tasks

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quicktask/quicktask-api/internal/auth"
	"github.com/quicktask/quicktask-api/internal/httpx"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
)

// createTaskRequest has no owner field: the owner always comes from the
// authenticated subject, and any client-supplied userId is dropped by the
// decoder.
type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	DueDate     *string `json:"dueDate"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	DueDate     *string `json:"dueDate"`
}

type taskResponse struct {
	Task Task `json:"task"`
}

type listResponse struct {
	Tasks []Task   `json:"tasks"`
	Meta  PageMeta `json:"meta"`
}

func RegisterRoutes(r chi.Router, repo Repository, logger *slog.Logger) {
	h := &handler{repo: repo, logger: logger}
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

type handler struct {
	repo   Repository
	logger *slog.Logger
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "No token provided. Authorization required.")
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "Validation failed", "invalid JSON body")
		return
	}

	t := Task{
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Priority:    PriorityMedium,
		Status:      StatusTodo,
	}

	var details []string
	details = append(details, validateTitle(t.Title)...)
	details = append(details, validateDescription(t.Description)...)
	if req.Priority != "" {
		if p := Priority(req.Priority); p.Valid() {
			t.Priority = p
		} else {
			details = append(details, "priority must be one of Low, Medium, High")
		}
	}
	if req.Status != "" {
		if s := Status(req.Status); s.Valid() {
			t.Status = s
		} else {
			details = append(details, "status must be one of Todo, In Progress, Completed")
		}
	}
	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			details = append(details, "dueDate must be a valid date")
		} else {
			t.DueDate = &due
		}
	}
	if len(details) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "Validation failed", details...)
		return
	}

	created, err := h.repo.Create(r.Context(), t)
	if err != nil {
		h.serverError(w, "task_create_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, taskResponse{Task: created})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "No token provided. Authorization required.")
		return
	}

	q := ParseListQuery(r.URL.Query())
	tasks, total, err := h.repo.List(r.Context(), userID, q)
	if err != nil {
		h.serverError(w, "task_list_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Tasks: tasks, Meta: NewPageMeta(q, total)})
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "No token provided. Authorization required.")
		return
	}

	t, err := h.repo.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeTaskNotFound, "Task not found")
		return
	}
	if err != nil {
		h.serverError(w, "task_get_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, taskResponse{Task: t})
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "No token provided. Authorization required.")
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "Validation failed", "invalid JSON body")
		return
	}

	var in UpdateInput
	var details []string
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		details = append(details, validateTitle(title)...)
		in.Title = &title
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		details = append(details, validateDescription(desc)...)
		in.Description = &desc
	}
	if req.Priority != nil {
		p := Priority(*req.Priority)
		if !p.Valid() {
			details = append(details, "priority must be one of Low, Medium, High")
		}
		in.Priority = &p
	}
	if req.Status != nil {
		s := Status(*req.Status)
		if !s.Valid() {
			details = append(details, "status must be one of Todo, In Progress, Completed")
		}
		in.Status = &s
	}
	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			details = append(details, "dueDate must be a valid date")
		}
		in.DueDate = &due
	}
	if len(details) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "Validation failed", details...)
		return
	}

	t, err := h.repo.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeTaskNotFound, "Task not found")
		return
	}
	if err != nil {
		h.serverError(w, "task_update_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, taskResponse{Task: t})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "No token provided. Authorization required.")
		return
	}

	err := h.repo.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeTaskNotFound, "Task not found")
		return
	}
	if err != nil {
		h.serverError(w, "task_delete_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) serverError(w http.ResponseWriter, event string, err error) {
	h.logger.Error(event, slog.String("error", err.Error()))
	httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeServerError, "Internal server error")
}

func validateTitle(title string) []string {
	if title == "" {
		return []string{"Title is required"}
	}
	if len(title) > maxTitleLen {
		return []string{"Title cannot exceed 200 characters"}
	}
	return nil
}

func validateDescription(desc string) []string {
	if len(desc) > maxDescriptionLen {
		return []string{"Description cannot exceed 1000 characters"}
	}
	return nil
}

// parseDate accepts RFC3339 timestamps and bare dates.
func parseDate(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
