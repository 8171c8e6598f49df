// Package postgres opens the service's PostgreSQL and Redis connections and
// owns the database schema.
//
// RunMigrations applies the forward-only migrations from GetMigrations, each
// in its own transaction, and records them in schema_migrations. The schema
// includes the partial unique index that allows one open competitor status
// per athlete.
package postgres
