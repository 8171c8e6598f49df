package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/barbell/pkg/httputil"
	"github.com/platinummonkey/barbell/pkg/middleware"
	"github.com/platinummonkey/barbell/pkg/observability"
	"github.com/platinummonkey/barbell/pkg/orgs"
	"github.com/platinummonkey/barbell/pkg/rbac"
)

// the table grants no read on members, so listing them takes any of the
// actions that manage them
var manageMembers = []rbac.Action{rbac.ActionCreate, rbac.ActionUpdate, rbac.ActionDelete}

func (s *Server) registerMembers(router *mux.Router) {
	router.Handle("/members", s.guarded("members", s.listActiveMembers, manageMembers...)).Methods(http.MethodGet)
	router.HandleFunc("/organizations/{slug}/members", s.listMembersBySlug).Methods(http.MethodGet)
}

func (s *Server) listActiveMembers(w http.ResponseWriter, r *http.Request) {
	s.writeMembers(w, r, middleware.GetAuthContext(r).OrganizationID)
}

// listMembersBySlug checks the caller's role in the named organization rather
// than the active one. Unknown slugs are denied like non-membership.
func (s *Server) listMembersBySlug(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	org, err := s.directory.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		logger := observability.FromContext(r.Context()).WithField("slug", slug)
		if errors.Is(err, orgs.ErrOrganizationNotFound) {
			logger.WithField("reason", string(rbac.ReasonNotAMember)).Info("permission denied")
		} else {
			logger.WithError(err).WithField("reason", string(rbac.ReasonLookupFailed)).Warn("permission check failed")
		}
		httputil.WriteForbidden(w, rbac.DeniedMessage)
		return
	}

	d := s.guard.CheckIn(r, &org.ID, rbac.ResourceMember, rbac.Actions(manageMembers...))
	if !d.Allowed {
		httputil.WriteErrorMessage(w, d.Status(), d.Message())
		return
	}

	s.writeMembers(w, r, org.ID)
}

func (s *Server) writeMembers(w http.ResponseWriter, r *http.Request, orgID int64) {
	members, err := s.directory.ListMembers(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if members == nil {
		members = []*orgs.Member{}
	}
	httputil.WriteSuccess(w, members)
}
