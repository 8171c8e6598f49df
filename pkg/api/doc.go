// Package api is the HTTP surface of barbell.
//
// # Routes
//
// Every application route sits under /api behind session authentication and
// a permission check for its route group:
//
//	GET    /api/me
//	GET    /api/exercises                       exercises: read
//	POST   /api/exercises                       exercises: create
//	GET    /api/exercises/{id}                  exercises: read
//	PUT    /api/exercises/{id}                  exercises: update
//	DELETE /api/exercises/{id}                  exercises: delete
//	(the same five for /api/complexes)
//	GET    /api/athletes/{athlete_id}/statuses           athlete-statuses: read
//	GET    /api/athletes/{athlete_id}/statuses/current   athlete-statuses: read
//	POST   /api/athletes/{athlete_id}/statuses           athlete-statuses: create or update
//	PATCH  /api/statuses/{id}                            athlete-statuses: update
//	GET    /api/members                                  members: create, update or delete
//	GET    /api/organizations/{slug}/members             the same, in {slug}
//
// Everything under /api/auth/ is proxied to the authentication provider with
// the hook registry wrapped around it. Anonymous requests reach the provider
// so sign-in works; organization-changing provider endpoints are checked by
// hooks against the same permission table as the routes above.
//
// # Errors
//
// Errors are JSON objects with a single "error" field. Denied permission
// checks always read "permission check failed" whatever the reason; rows from
// other organizations are reported as 404. Status assignment races are 409.
//
// # Usage
//
//	server := api.NewServer(api.Options{
//	    Catalog:      catalogService,
//	    Statuses:     statusManager,
//	    Directory:    directory,
//	    Guard:        guard,
//	    RequiredAuth: middleware.NewAuthMiddleware(resolver, cookie, false),
//	    OptionalAuth: middleware.NewAuthMiddleware(resolver, cookie, true),
//	    Provider:     proxy,
//	    Hooks:        registry,
//	})
//	http.ListenAndServe(":8080", server)
package api
