package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/barbell/pkg/catalog"
	"github.com/platinummonkey/barbell/pkg/httputil"
	"github.com/platinummonkey/barbell/pkg/middleware"
	"github.com/platinummonkey/barbell/pkg/observability"
	"github.com/platinummonkey/barbell/pkg/rbac"
	"github.com/platinummonkey/barbell/pkg/status"
)

// writeError maps service errors onto status codes. Anything unrecognised is
// logged and answered with a bare 500 so store details never leak.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httputil.WriteNotFoundError(w, "not found")
	case errors.Is(err, status.ErrAthleteNotFound):
		httputil.WriteNotFoundError(w, "athlete not found")
	case errors.Is(err, status.ErrStatusNotFound):
		httputil.WriteNotFoundError(w, "status not found")
	case errors.Is(err, status.ErrConflict):
		httputil.WriteConflict(w, "athlete status was changed concurrently, retry")
	case errors.Is(err, catalog.ErrForbidden):
		httputil.WriteForbidden(w, rbac.DeniedMessage)
	case errors.Is(err, catalog.ErrVisibilityUnavailable):
		// a failed membership lookup fails closed like any other resolution step
		logger := observability.FromContext(r.Context()).WithError(err).WithField("reason", string(rbac.ReasonLookupFailed))
		if authCtx := middleware.GetAuthContext(r); authCtx != nil {
			logger = logger.WithField("organization_id", authCtx.OrganizationID)
		}
		logger.Warn("visibility lookup failed")
		httputil.WriteForbidden(w, rbac.DeniedMessage)
	case errors.Is(err, catalog.ErrInvalidInput), errors.Is(err, status.ErrInvalidStatus):
		httputil.WriteBadRequest(w, clientMessage(err))
	default:
		observability.FromContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		httputil.WriteInternalError(w)
	}
}

// clientMessage drops the sentinel prefix from a validation error
func clientMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
