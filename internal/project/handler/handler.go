// Package handler exposes the project ledger over HTTP.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"carbonregistry/internal/platform/middleware"
	"carbonregistry/internal/project/models"
	"carbonregistry/internal/project/service"
	id "carbonregistry/pkg/domain"
	dErrors "carbonregistry/pkg/domain-errors"
	"carbonregistry/pkg/platform/httputil"
	"carbonregistry/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the ledger surface the handler needs.
type Service interface {
	Create(ctx context.Context, req *models.CreateRequest) (*models.Project, error)
	Get(ctx context.Context, projectID string) (*models.Project, error)
	History(ctx context.Context, projectID string) ([]*models.AuditEntry, error)
	Query(ctx context.Context, q models.Query) (*models.Page, error)
	UpdateStatus(ctx context.Context, req service.UpdateStatusRequest) (*models.Project, error)
}

type Handler struct {
	ledger Service
	logger *slog.Logger
}

func New(ledger Service, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, logger: logger}
}

// Register mounts the project routes. Writes require an actor.
func (h *Handler) Register(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.handleQuery)
		r.Get("/{id}", h.handleGet)
		r.Get("/{id}/history", h.handleHistory)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActor(h.logger))
			r.Post("/", h.handleCreate)
			r.Post("/{id}/status", h.handleUpdateStatus)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.fail(ctx, w, "invalid create request", err)
		return
	}

	project, err := h.ledger.Create(ctx, &req)
	if err != nil {
		h.fail(ctx, w, "failed to create project", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, project)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	project, err := h.ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(r.Context(), w, "failed to read project", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, project)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(r.Context(), w, "failed to read project history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

type updateStatusBody struct {
	Status         string `json:"status"`
	ExpectedStatus string `json:"expectedStatus"`
	Comment        string `json:"comment"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body updateStatusBody
	if err := httputil.DecodeJSON(w, r, &body); err != nil {
		h.fail(ctx, w, "invalid status request", err)
		return
	}

	project, err := h.ledger.UpdateStatus(ctx, service.UpdateStatusRequest{
		ProjectID:      chi.URLParam(r, "id"),
		Status:         models.Status(body.Status),
		ExpectedStatus: models.Status(body.ExpectedStatus),
		Comment:        strings.TrimSpace(body.Comment),
	})
	if err != nil {
		h.fail(ctx, w, "failed to update project status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, project)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseQuery(r)
	if err != nil {
		h.fail(ctx, w, "invalid project query", err)
		return
	}
	page, err := h.ledger.Query(ctx, q)
	if err != nil {
		h.fail(ctx, w, "failed to query projects", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// parseQuery reads page, size and the optional status and subDomain filters.
// Filters become a Condition carrying both the SQL and in-memory forms.
func parseQuery(r *http.Request) (models.Query, error) {
	values := r.URL.Query()
	var q models.Query
	var err error
	if q.Page, err = intParam(values.Get("page"), "page"); err != nil {
		return q, err
	}
	if q.Size, err = intParam(values.Get("size"), "size"); err != nil {
		return q, err
	}

	var status models.Status
	if raw := values.Get("status"); raw != "" {
		if status, err = models.ParseStatus(raw); err != nil {
			return q, err
		}
	}
	var domain id.SubDomain
	if raw := values.Get("subDomain"); raw != "" {
		if domain, err = id.ParseSubDomain(raw); err != nil {
			return q, err
		}
	}
	q.Condition = filterCondition(status, domain)
	return q, nil
}

func filterCondition(status models.Status, domain id.SubDomain) models.Condition {
	if status == "" && domain == "" {
		return models.Condition{}
	}
	var clauses []string
	var args []any
	if status != "" {
		args = append(args, string(status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if domain != "" {
		args = append(args, string(domain))
		clauses = append(clauses, fmt.Sprintf("sub_domain = $%d", len(args)))
	}
	return models.Condition{
		Clause: strings.Join(clauses, " AND "),
		Args:   args,
		Match: func(p *models.Project) bool {
			return (status == "" || p.Status == status) && (domain == "" || p.SubDomain == domain)
		},
	}
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeValidation, name+" must be an integer")
	}
	return n, nil
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	code, _ := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"code", code,
		"error", err.Error(),
	}
	if dErrors.ToHTTPStatus(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
