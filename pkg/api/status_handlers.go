package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/barbell/pkg/async"
	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/httputil"
	"github.com/platinummonkey/barbell/pkg/middleware"
	"github.com/platinummonkey/barbell/pkg/rbac"
	"github.com/platinummonkey/barbell/pkg/status"
)

const (
	statusResourceType = "competitor_status"
	auditTimeout       = 5 * time.Second
)

func (s *Server) registerStatuses(router *mux.Router) {
	router.Handle("/athletes/{athlete_id}/statuses",
		s.guarded("athlete-statuses", s.listStatuses, rbac.ActionRead)).Methods(http.MethodGet)
	router.Handle("/athletes/{athlete_id}/statuses/current",
		s.guarded("athlete-statuses", s.currentStatus, rbac.ActionRead)).Methods(http.MethodGet)
	// assigning a status closes the previous one, so either create or update suffices
	router.Handle("/athletes/{athlete_id}/statuses",
		s.guarded("athlete-statuses", s.createStatus, rbac.ActionCreate, rbac.ActionUpdate)).Methods(http.MethodPost)
	router.Handle("/statuses/{id}",
		s.guarded("athlete-statuses", s.updateStatus, rbac.ActionUpdate)).Methods(http.MethodPatch)
}

func (s *Server) listStatuses(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := httputil.ParsePathInt64OrError(w, r, "athlete_id")
	if !ok {
		return
	}
	authCtx := middleware.GetAuthContext(r)

	history, err := s.statuses.History(r.Context(), authCtx.OrganizationID, athleteID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]status.StatusDTO, 0, len(history))
	for _, st := range history {
		out = append(out, st.DTO())
	}
	httputil.WriteSuccess(w, out)
}

func (s *Server) currentStatus(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := httputil.ParsePathInt64OrError(w, r, "athlete_id")
	if !ok {
		return
	}
	authCtx := middleware.GetAuthContext(r)

	st, err := s.statuses.Current(r.Context(), authCtx.OrganizationID, athleteID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, st.DTO())
}

func (s *Server) createStatus(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := httputil.ParsePathInt64OrError(w, r, "athlete_id")
	if !ok {
		return
	}
	var in status.NewStatus
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	authCtx := middleware.GetAuthContext(r)

	st, err := s.statuses.Create(r.Context(), authCtx.OrganizationID, athleteID, in)
	if err != nil {
		s.auditStatus(r, authCtx, auth.ActionStatusCreate, "", err)
		writeError(w, r, err)
		return
	}

	s.auditStatus(r, authCtx, auth.ActionStatusCreate, strconv.FormatInt(st.ID, 10), nil)
	httputil.WriteCreated(w, st.DTO())
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var p status.Patch
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}
	authCtx := middleware.GetAuthContext(r)

	st, err := s.statuses.Update(r.Context(), authCtx.OrganizationID, id, p)
	if err != nil {
		s.auditStatus(r, authCtx, auth.ActionStatusUpdate, strconv.FormatInt(id, 10), err)
		writeError(w, r, err)
		return
	}

	s.auditStatus(r, authCtx, auth.ActionStatusUpdate, strconv.FormatInt(st.ID, 10), nil)
	httputil.WriteSuccess(w, st.DTO())
}

// auditStatus records a status write off the request path
func (s *Server) auditStatus(r *http.Request, authCtx *auth.AuthContext, action, resourceID string, err error) {
	if s.audit == nil {
		return
	}

	outcome := auth.StatusSuccess
	if err != nil {
		outcome = auth.StatusFailure
	}
	entry := auth.FromRequest(r, authCtx, action, statusResourceType, outcome)
	entry.ResourceID = resourceID
	if authCtx.OrganizationID != 0 {
		orgID := authCtx.OrganizationID
		entry.OrganizationID = &orgID
	}
	if err != nil {
		entry.Reason = clientMessage(err)
	}

	async.SafeGo(r.Context(), auditTimeout, "audit-"+action, func(ctx context.Context) error {
		return s.audit.Log(ctx, entry)
	})
}
