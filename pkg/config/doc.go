// Package config loads application configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file named by BARBELL_CONFIG_FILE, then BARBELL_* environment variables.
// A .env file (or BARBELL_ENV_FILE) is read into the environment first and
// never overrides variables that are already set.
//
// Server:
//
//	BARBELL_HOST="0.0.0.0"
//	BARBELL_PORT="8080"
//	BARBELL_HEALTH_PORT="9090"
//
// Storage:
//
//	BARBELL_STORAGE_TYPE="postgres"  # memory, postgres
//	BARBELL_POSTGRES_URL="postgres://barbell@localhost/barbell?sslmode=disable"
//
// Sessions and identity:
//
//	BARBELL_REDIS_ADDR="localhost:6379"
//	BARBELL_SESSION_COOKIE="barbell.session_token"
//	BARBELL_AUTH_PROVIDER_URL="http://auth:3000"
//	BARBELL_OIDC_ISSUER="https://accounts.example.com"
//	BARBELL_OIDC_CLIENT_ID="barbell-web"
//
// Call LoadConfig once at startup; it validates before returning.
package config
