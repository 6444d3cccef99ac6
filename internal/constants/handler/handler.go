// Package handler exposes the constants registry over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"carbonregistry/internal/constants/models"
	"carbonregistry/internal/platform/middleware"
	id "carbonregistry/pkg/domain"
	dErrors "carbonregistry/pkg/domain-errors"
	"carbonregistry/pkg/platform/httputil"
	"carbonregistry/pkg/requestcontext"
)

type Service interface {
	Latest(ctx context.Context, domain id.SubDomain) (*models.Version, error)
	Get(ctx context.Context, domain id.SubDomain, number int) (*models.Version, error)
	History(ctx context.Context, domain id.SubDomain) ([]*models.Version, error)
	Update(ctx context.Context, domain id.SubDomain, payload json.RawMessage) (*models.Version, error)
}

type Handler struct {
	constants Service
	logger    *slog.Logger
}

func New(constants Service, logger *slog.Logger) *Handler {
	return &Handler{constants: constants, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/constants/{domain}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Get("/versions", h.handleHistory)
		r.With(middleware.RequireActor(h.logger)).Put("/", h.handleUpdate)
	})
}

// handleGet returns the latest version, or the one named by ?version=.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain, err := id.ParseSubDomain(chi.URLParam(r, "domain"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	var v *models.Version
	if raw := r.URL.Query().Get("version"); raw != "" {
		number, convErr := strconv.Atoi(raw)
		if convErr != nil || number < 1 {
			h.fail(ctx, w, dErrors.New(dErrors.CodeValidation, "version must be a positive integer"))
			return
		}
		v, err = h.constants.Get(ctx, domain, number)
	} else {
		v, err = h.constants.Latest(ctx, domain)
		if err == nil && v == nil {
			err = dErrors.New(dErrors.CodeNotFound, "no constants configured for "+domain.String())
		}
	}
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain, err := id.ParseSubDomain(chi.URLParam(r, "domain"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	versions, err := h.constants.History(ctx, domain)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, versions)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain, err := id.ParseSubDomain(chi.URLParam(r, "domain"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	payload, err := httputil.ReadRawJSON(w, r)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	v, err := h.constants.Update(ctx, domain, payload)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	h.logger.WarnContext(ctx, "constants request failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}
