// Package httputil provides HTTP helpers shared by every handler: JSON
// responses in the {"error": "..."} shape, request parsing, and the
// request-id, logging and recovery middleware.
//
//	var req CreateExerciseRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// Middleware composes with Chain; the first argument runs outermost:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//	)(router)
package httputil
