// Package environments contiene los controllers admin de environments.
package environments

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/envgate/internal/domain/repository"
	dto "github.com/dropDatabas3/envgate/internal/http/dto/environments"
	httperrors "github.com/dropDatabas3/envgate/internal/http/errors"
	"github.com/dropDatabas3/envgate/internal/http/helpers"
	"github.com/dropDatabas3/envgate/internal/http/middlewares"
	svc "github.com/dropDatabas3/envgate/internal/http/services/environments"
	"github.com/dropDatabas3/envgate/internal/keys"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
)

// Controller expone la superficie admin de environments.
type Controller struct {
	service *svc.Service
}

// NewController crea el controller de environments.
func NewController(service *svc.Service) *Controller {
	return &Controller{service: service}
}

// Create maneja POST /v1/environments. Los plaintexts de las claves solo
// viajan en esta respuesta.
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	var in dto.CreateRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	out, err := c.service.Create(r.Context(), in)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, out)
}

// Get maneja GET /v1/environments/{envID}: vista sin material secreto.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	env := middlewares.AddressedEnvironment(r.Context())
	if env == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}

	out, err := c.service.Get(r.Context(), env.ID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Rotate maneja POST /v1/environments/{envID}/rotate.
func (c *Controller) Rotate(w http.ResponseWriter, r *http.Request) {
	env := middlewares.AddressedEnvironment(r.Context())
	if env == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}

	var in dto.RotateRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	out, err := c.service.Rotate(r.Context(), env.ID, in.Kind)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Reveal maneja POST /v1/environments/{envID}/reveal. Staff-only en la ruta.
func (c *Controller) Reveal(w http.ResponseWriter, r *http.Request) {
	env := middlewares.AddressedEnvironment(r.Context())
	if env == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}

	var in dto.RotateRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	out, err := c.service.Reveal(r.Context(), env.ID, in.Kind)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Delete maneja DELETE /v1/environments/{envID}.
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	env := middlewares.AddressedEnvironment(r.Context())
	if env == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}

	if err := c.service.Delete(r.Context(), env.ID); err != nil {
		c.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDomain maneja POST /v1/environments/{envID}/domains.
func (c *Controller) AddDomain(w http.ResponseWriter, r *http.Request) {
	env := middlewares.AddressedEnvironment(r.Context())
	if env == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}

	var in dto.DomainRequest
	if !helpers.ReadJSON(w, r, &in) {
		return
	}

	out, err := c.service.AddDomain(r.Context(), env.ID, in.Domain)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, out)
}

func (c *Controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, svc.ErrMissingFields), errors.Is(err, svc.ErrUnknownKind):
		httperrors.WriteError(w, httperrors.ErrBadRequest)
	case repository.IsNotFound(err):
		httperrors.WriteError(w, httperrors.ErrNotFound)
	case errors.Is(err, keys.ErrRetriesExhausted), repository.IsConflict(err):
		httperrors.WriteError(w, httperrors.ErrConflict)
	default:
		logger.From(r.Context()).Error("environment request failed",
			logger.Layer("controller"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
