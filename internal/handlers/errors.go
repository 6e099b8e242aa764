package handlers

import (
	"errors"
	"net/http"

	"github.com/coursplus/crm/internal/httpx"
	"github.com/coursplus/crm/internal/services"
)

// writeServiceError maps the service error taxonomy onto HTTP responses.
// Validation -> 400, unresolved references -> 404, state conflicts -> 409
// (with current state and attempted transition), consistency violations and
// anything unexpected -> 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", verr.Fields)
		return
	}
	var nf *services.ReferenceNotFoundError
	if errors.As(err, &nf) {
		httpx.JSONError(w, http.StatusNotFound, "reference_not_found", map[string]any{"kind": nf.Kind, "ids": nf.IDs})
		return
	}
	var sc *services.StateConflictError
	if errors.As(err, &sc) {
		httpx.JSONError(w, http.StatusConflict, sc.Code, map[string]string{"current": sc.Current, "attempted": sc.Attempted})
		return
	}
	var ce *services.ConsistencyError
	if errors.As(err, &ce) {
		httpx.JSONError(w, http.StatusInternalServerError, "consistency_violation", nil)
		return
	}
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}
