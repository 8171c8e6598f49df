package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/barbell/pkg/catalog"
	"github.com/platinummonkey/barbell/pkg/httputil"
	"github.com/platinummonkey/barbell/pkg/middleware"
	"github.com/platinummonkey/barbell/pkg/rbac"
)

func (s *Server) registerCatalog(router *mux.Router) {
	router.Handle("/exercises", s.guarded("exercises", s.listExercises, rbac.ActionRead)).Methods(http.MethodGet)
	router.Handle("/exercises", s.guarded("exercises", s.createExercise, rbac.ActionCreate)).Methods(http.MethodPost)
	router.Handle("/exercises/{id}", s.guarded("exercises", s.getExercise, rbac.ActionRead)).Methods(http.MethodGet)
	router.Handle("/exercises/{id}", s.guarded("exercises", s.updateExercise, rbac.ActionUpdate)).Methods(http.MethodPut)
	router.Handle("/exercises/{id}", s.guarded("exercises", s.deleteExercise, rbac.ActionDelete)).Methods(http.MethodDelete)

	router.Handle("/complexes", s.guarded("complexes", s.listComplexes, rbac.ActionRead)).Methods(http.MethodGet)
	router.Handle("/complexes", s.guarded("complexes", s.createComplex, rbac.ActionCreate)).Methods(http.MethodPost)
	router.Handle("/complexes/{id}", s.guarded("complexes", s.getComplex, rbac.ActionRead)).Methods(http.MethodGet)
	router.Handle("/complexes/{id}", s.guarded("complexes", s.updateComplex, rbac.ActionUpdate)).Methods(http.MethodPut)
	router.Handle("/complexes/{id}", s.guarded("complexes", s.deleteComplex, rbac.ActionDelete)).Methods(http.MethodDelete)
}

func (s *Server) listExercises(w http.ResponseWriter, r *http.Request) {
	exercises, err := s.catalog.ListExercises(r.Context(), middleware.GetAuthContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, exercises)
}

func (s *Server) getExercise(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	exercise, err := s.catalog.GetExercise(r.Context(), middleware.GetAuthContext(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, exercise)
}

func (s *Server) createExercise(w http.ResponseWriter, r *http.Request) {
	var in catalog.ExerciseInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	exercise, err := s.catalog.CreateExercise(r.Context(), middleware.GetAuthContext(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, exercise)
}

func (s *Server) updateExercise(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var in catalog.ExerciseInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	exercise, err := s.catalog.UpdateExercise(r.Context(), middleware.GetAuthContext(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, exercise)
}

func (s *Server) deleteExercise(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.catalog.DeleteExercise(r.Context(), middleware.GetAuthContext(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listComplexes(w http.ResponseWriter, r *http.Request) {
	complexes, err := s.catalog.ListComplexes(r.Context(), middleware.GetAuthContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, complexes)
}

func (s *Server) getComplex(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	c, err := s.catalog.GetComplex(r.Context(), middleware.GetAuthContext(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (s *Server) createComplex(w http.ResponseWriter, r *http.Request) {
	var in catalog.ComplexInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	c, err := s.catalog.CreateComplex(r.Context(), middleware.GetAuthContext(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, c)
}

func (s *Server) updateComplex(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var in catalog.ComplexInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	c, err := s.catalog.UpdateComplex(r.Context(), middleware.GetAuthContext(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (s *Server) deleteComplex(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.catalog.DeleteComplex(r.Context(), middleware.GetAuthContext(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
