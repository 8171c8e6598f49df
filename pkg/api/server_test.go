package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/catalog"
	"github.com/platinummonkey/barbell/pkg/hooks"
	"github.com/platinummonkey/barbell/pkg/middleware"
	"github.com/platinummonkey/barbell/pkg/observability"
	"github.com/platinummonkey/barbell/pkg/orgs"
	"github.com/platinummonkey/barbell/pkg/rbac"
	"github.com/platinummonkey/barbell/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cookieName = "barbell.session_token"

	ironClub = int64(1)
	chalkBox = int64(2)

	ownerUser   = int64(10)
	adminUser   = int64(11)
	athleteUser = int64(12)
	rivalAdmin  = int64(20)
	lonelyUser  = int64(30)

	ironAthlete  = int64(100)
	chalkAthlete = int64(200)
)

type testEnv struct {
	server   *Server
	sessions *auth.RedisSessionStore
	provider *httptest.Server
	hits     *int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithCoaches(t, nil)
}

// newTestEnvWithCoaches builds the env with coaches overriding the directory
// as the visibility source
func newTestEnvWithCoaches(t *testing.T, coaches catalog.CoachLister) *testEnv {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	dir := orgs.NewMemoryDirectory()
	dir.AddOrganization(orgs.Organization{ID: ironClub, Name: "Iron Club", Slug: "iron-club"})
	dir.AddOrganization(orgs.Organization{ID: chalkBox, Name: "Chalk Box", Slug: "chalk-box"})
	dir.SetMember(ironClub, ownerUser, rbac.RoleOwner)
	dir.SetMember(ironClub, adminUser, rbac.RoleAdmin)
	dir.SetMember(ironClub, athleteUser, rbac.RoleMember)
	dir.SetMember(chalkBox, rivalAdmin, rbac.RoleAdmin)

	statusStore := status.NewMemoryStore()
	require.NoError(t, statusStore.CreateAthlete(ctx, &status.Athlete{ID: ironAthlete, OrganizationID: ironClub, Name: "Ana"}))
	require.NoError(t, statusStore.CreateAthlete(ctx, &status.Athlete{ID: chalkAthlete, OrganizationID: chalkBox, Name: "Bo"}))

	var hits int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Provider-Path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	t.Cleanup(provider.Close)

	proxy, err := NewProviderProxy(provider.URL, time.Second)
	require.NoError(t, err)

	guard := rbac.NewGuard(dir, nil, nil)
	registry := hooks.NewRegistry(nil)
	require.NoError(t, hooks.RegisterProviderRoutes(registry, guard))
	require.NoError(t, registry.Register(hooks.PathSetActiveOrganization, hooks.PhaseBefore, hooks.ActiveOrganizationHook(dir)))
	registry.Seal()

	if coaches == nil {
		coaches = dir
	}

	sessions := auth.NewRedisSessionStore(client)
	resolver := auth.NewSessionResolver(nil, sessions)

	server := NewServer(Options{
		Catalog:      catalog.NewService(catalog.NewMemoryStore(), catalog.NewVisibilityBuilder(coaches)),
		Statuses:     status.NewManager(statusStore, nil),
		Directory:    dir,
		Guard:        guard,
		RequiredAuth: middleware.NewAuthMiddleware(resolver, cookieName, false),
		OptionalAuth: middleware.NewAuthMiddleware(resolver, cookieName, true),
		Provider:     proxy,
		Hooks:        registry,
		Logger:       observability.NopLogger(),
	})

	return &testEnv{server: server, sessions: sessions, provider: provider, hits: &hits}
}

// login stores a session for userID and returns its token
func (e *testEnv) login(t *testing.T, userID int64, activeOrg *int64) string {
	t.Helper()
	token, err := auth.NewSessionToken()
	require.NoError(t, err)
	user := auth.User{ID: userID, Name: "user", Email: "user@example.com"}
	session := auth.Session{ID: "sess-" + token, UserID: userID, ActiveOrganizationID: activeOrg, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, e.sessions.Put(context.Background(), token, user, session))
	return token
}

func (e *testEnv) do(t *testing.T, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, w, &body)
	return body["error"]
}

func orgPtr(id int64) *int64 { return &id }

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	t.Run("anonymous", func(t *testing.T) {
		w := env.do(t, "", http.MethodGet, "/api/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("with active organization", func(t *testing.T) {
		token := env.login(t, adminUser, orgPtr(ironClub))
		w := env.do(t, token, http.MethodGet, "/api/me", "")
		require.Equal(t, http.StatusOK, w.Code)

		var me MeResponse
		decode(t, w, &me)
		assert.Equal(t, adminUser, me.User.ID)
		require.NotNil(t, me.ActiveOrganization)
		assert.Equal(t, "admin", me.ActiveOrganization.Role)
		assert.Equal(t, "iron-club", me.ActiveOrganization.Slug)
	})

	t.Run("active organization the user left", func(t *testing.T) {
		token := env.login(t, lonelyUser, orgPtr(ironClub))
		w := env.do(t, token, http.MethodGet, "/api/me", "")
		require.Equal(t, http.StatusOK, w.Code)

		var me MeResponse
		decode(t, w, &me)
		assert.Nil(t, me.ActiveOrganization)
		assert.Equal(t, ironClub, *me.Session.ActiveOrganizationID)
	})
}

func TestPermissionDenials(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		userID     int64
		activeOrg  *int64
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"member reads exercises", athleteUser, orgPtr(ironClub), http.MethodGet, "/api/exercises", "", http.StatusOK},
		{"member cannot create exercises", athleteUser, orgPtr(ironClub), http.MethodPost, "/api/exercises", `{"name":"Snatch"}`, http.StatusForbidden},
		{"no active organization", adminUser, nil, http.MethodGet, "/api/exercises", "", http.StatusForbidden},
		{"not a member of active organization", lonelyUser, orgPtr(ironClub), http.MethodGet, "/api/complexes", "", http.StatusForbidden},
		{"member cannot assign statuses", athleteUser, orgPtr(ironClub), http.MethodPost,
			"/api/athletes/100/statuses", `{"level":"national","sexCategory":"female","weightCategory":"64"}`, http.StatusForbidden},
		{"member cannot patch statuses", athleteUser, orgPtr(ironClub), http.MethodPatch, "/api/statuses/1", `{"level":"local"}`, http.StatusForbidden},
		{"member reads statuses", athleteUser, orgPtr(ironClub), http.MethodGet, "/api/athletes/100/statuses", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := env.login(t, tt.userID, tt.activeOrg)
			w := env.do(t, token, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, rbac.DeniedMessage, errorMessage(t, w))
			}
		})
	}
}

type unreachableCoaches struct{}

func (unreachableCoaches) CoachUserIDs(context.Context, int64) ([]int64, error) {
	return nil, errors.New("connection reset")
}

func TestExercises_VisibilityLookupFailureIsDenied(t *testing.T) {
	env := newTestEnvWithCoaches(t, unreachableCoaches{})
	coach := env.login(t, adminUser, orgPtr(ironClub))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"list exercises", http.MethodGet, "/api/exercises", ""},
		{"get exercise", http.MethodGet, "/api/exercises/1", ""},
		{"list complexes", http.MethodGet, "/api/complexes", ""},
		{"update exercise", http.MethodPut, "/api/exercises/1", `{"name":"Jerk"}`},
		{"delete complex", http.MethodDelete, "/api/complexes/1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, coach, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
			assert.Equal(t, rbac.DeniedMessage, errorMessage(t, w))
		})
	}
}

func TestExercises_TenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	coach := env.login(t, adminUser, orgPtr(ironClub))
	athlete := env.login(t, athleteUser, orgPtr(ironClub))
	rival := env.login(t, rivalAdmin, orgPtr(chalkBox))

	w := env.do(t, coach, http.MethodPost, "/api/exercises", `{"name":"Clean Pull","description":"from the floor"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created catalog.Exercise
	decode(t, w, &created)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, adminUser, *created.CreatedBy)

	path := "/api/exercises/" + itoa(created.ID)

	w = env.do(t, athlete, http.MethodGet, path, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, rival, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, rival, http.MethodGet, "/api/exercises", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []catalog.Exercise
	decode(t, w, &listed)
	assert.Empty(t, listed)

	w = env.do(t, rival, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, coach, http.MethodPut, path, `{"name":"Clean Pull","description":"from blocks"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, coach, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, coach, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExercises_BadInput(t *testing.T) {
	env := newTestEnv(t)
	coach := env.login(t, adminUser, orgPtr(ironClub))

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"empty name", "/api/exercises", `{"name":"  "}`, http.StatusBadRequest},
		{"unknown field", "/api/exercises", `{"name":"Jerk","reps":3}`, http.StatusBadRequest},
		{"malformed JSON", "/api/exercises", `{"name":`, http.StatusBadRequest},
		{"complex without exercises", "/api/complexes", `{"name":"Clean complex","exerciseIds":[]}`, http.StatusBadRequest},
		{"shared content by a coach", "/api/exercises", `{"name":"Jerk","public":true}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, coach, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	w := env.do(t, coach, http.MethodGet, "/api/exercises/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComplexes_CRUD(t *testing.T) {
	env := newTestEnv(t)
	coach := env.login(t, ownerUser, orgPtr(ironClub))

	w := env.do(t, coach, http.MethodPost, "/api/exercises", `{"name":"Power Clean"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var clean catalog.Exercise
	decode(t, w, &clean)

	w = env.do(t, coach, http.MethodPost, "/api/exercises", `{"name":"Front Squat"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var squat catalog.Exercise
	decode(t, w, &squat)

	body := `{"name":"Clean + Front Squat","exerciseIds":[` + itoa(clean.ID) + `,` + itoa(squat.ID) + `]}`
	w = env.do(t, coach, http.MethodPost, "/api/complexes", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c catalog.Complex
	decode(t, w, &c)
	assert.Equal(t, []int64{clean.ID, squat.ID}, c.ExerciseIDs)

	w = env.do(t, coach, http.MethodGet, "/api/complexes", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []catalog.Complex
	decode(t, w, &listed)
	assert.Len(t, listed, 1)

	rival := env.login(t, rivalAdmin, orgPtr(chalkBox))
	w = env.do(t, rival, http.MethodGet, "/api/complexes/"+itoa(c.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, coach, http.MethodDelete, "/api/complexes/"+itoa(c.ID), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestStatuses(t *testing.T) {
	env := newTestEnv(t)
	coach := env.login(t, adminUser, orgPtr(ironClub))
	athlete := env.login(t, athleteUser, orgPtr(ironClub))
	rival := env.login(t, rivalAdmin, orgPtr(chalkBox))

	w := env.do(t, coach, http.MethodGet, "/api/athletes/100/statuses/current", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, coach, http.MethodPost, "/api/athletes/100/statuses",
		`{"level":"regional","sexCategory":"female","weightCategory":"64"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first status.StatusDTO
	decode(t, w, &first)
	assert.Nil(t, first.EndDate)

	w = env.do(t, coach, http.MethodPost, "/api/athletes/100/statuses",
		`{"level":"national","sexCategory":"female","weightCategory":"64"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var second status.StatusDTO
	decode(t, w, &second)

	w = env.do(t, athlete, http.MethodGet, "/api/athletes/100/statuses", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history []status.StatusDTO
	decode(t, w, &history)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Nil(t, history[0].EndDate)
	assert.NotNil(t, history[1].EndDate)

	w = env.do(t, athlete, http.MethodGet, "/api/athletes/100/statuses/current", "")
	require.Equal(t, http.StatusOK, w.Code)
	var current status.StatusDTO
	decode(t, w, &current)
	assert.Equal(t, "national", current.Level)

	w = env.do(t, coach, http.MethodPatch, "/api/statuses/"+itoa(second.ID), `{"weightCategory":"71"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var patched status.StatusDTO
	decode(t, w, &patched)
	assert.Equal(t, "71", patched.WeightCategory)
	assert.Equal(t, "national", patched.Level)

	t.Run("foreign athlete", func(t *testing.T) {
		w := env.do(t, rival, http.MethodPost, "/api/athletes/100/statuses",
			`{"level":"local","sexCategory":"male","weightCategory":"81"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = env.do(t, rival, http.MethodPatch, "/api/statuses/"+itoa(second.ID), `{"level":"local"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = env.do(t, coach, http.MethodGet, "/api/athletes/200/statuses/current", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid input", func(t *testing.T) {
		w := env.do(t, coach, http.MethodPost, "/api/athletes/100/statuses",
			`{"level":"olympic","sexCategory":"female","weightCategory":"64"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, errorMessage(t, w), "olympic")

		w = env.do(t, coach, http.MethodPatch, "/api/statuses/"+itoa(second.ID), `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProviderProxy(t *testing.T) {
	env := newTestEnv(t)

	t.Run("anonymous sign-in reaches the provider", func(t *testing.T) {
		before := atomic.LoadInt32(env.hits)
		w := env.do(t, "", http.MethodPost, hooks.PathSignInEmail, `{"email":"a@example.com","password":"x"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, hooks.PathSignInEmail, w.Header().Get("X-Provider-Path"))
		assert.Equal(t, before+1, atomic.LoadInt32(env.hits))
	})

	tests := []struct {
		name       string
		userID     int64
		activeOrg  *int64
		path       string
		body       string
		wantStatus int
	}{
		{"admin updates organization", adminUser, orgPtr(ironClub), "/api/auth/organization/update", `{"data":{"name":"Iron"}}`, http.StatusOK},
		{"admin cannot delete organization", adminUser, orgPtr(ironClub), "/api/auth/organization/delete", `{}`, http.StatusForbidden},
		{"owner deletes organization", ownerUser, orgPtr(ironClub), "/api/auth/organization/delete", `{}`, http.StatusOK},
		{"member cannot invite", athleteUser, orgPtr(ironClub), "/api/auth/organization/invite-member", `{"email":"b@example.com"}`, http.StatusForbidden},
		{"admin cannot act on another organization", adminUser, orgPtr(ironClub), "/api/auth/organization/remove-member", `{"organizationId":2}`, http.StatusForbidden},
		{"anonymous organization update", 0, nil, "/api/auth/organization/update", `{}`, http.StatusUnauthorized},
		{"switch to own organization", adminUser, nil, hooks.PathSetActiveOrganization, `{"organizationId":"1"}`, http.StatusOK},
		{"switch to foreign organization", adminUser, orgPtr(ironClub), hooks.PathSetActiveOrganization, `{"organizationId":2}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := ""
			if tt.userID != 0 {
				token = env.login(t, tt.userID, tt.activeOrg)
			}
			before := atomic.LoadInt32(env.hits)

			w := env.do(t, token, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			forwarded := atomic.LoadInt32(env.hits) - before
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, int32(1), forwarded)
				assert.JSONEq(t, tt.body, w.Body.String())
			} else {
				assert.Zero(t, forwarded)
			}
		})
	}
}

func TestProviderProxy_Unreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	proxy, err := NewProviderProxy(addr, 200*time.Millisecond)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	proxy.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestNewProviderProxy_RejectsRelativeURL(t *testing.T) {
	_, err := NewProviderProxy("/auth", time.Second)
	assert.Error(t, err)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestMembers(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		userID     int64
		activeOrg  *int64
		path       string
		wantStatus int
		wantUsers  []int64
	}{
		{"admin lists active organization", adminUser, orgPtr(ironClub), "/api/members", http.StatusOK, []int64{ownerUser, adminUser, athleteUser}},
		{"plain member cannot list", athleteUser, orgPtr(ironClub), "/api/members", http.StatusForbidden, nil},
		{"no active organization", adminUser, nil, "/api/members", http.StatusForbidden, nil},
		{"plain member cannot list by slug", athleteUser, nil, "/api/organizations/iron-club/members", http.StatusForbidden, nil},
		{"by slug without active organization", rivalAdmin, nil, "/api/organizations/chalk-box/members", http.StatusOK, []int64{rivalAdmin}},
		{"by slug of another tenant", rivalAdmin, orgPtr(chalkBox), "/api/organizations/iron-club/members", http.StatusForbidden, nil},
		{"unknown slug", adminUser, orgPtr(ironClub), "/api/organizations/nowhere/members", http.StatusForbidden, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := env.login(t, tt.userID, tt.activeOrg)
			w := env.do(t, token, http.MethodGet, tt.path, "")
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, rbac.DeniedMessage, errorMessage(t, w))
				return
			}

			var members []orgs.Member
			decode(t, w, &members)
			var users []int64
			for _, m := range members {
				users = append(users, m.UserID)
			}
			assert.ElementsMatch(t, tt.wantUsers, users)
		})
	}

	w := env.do(t, "", http.MethodGet, "/api/organizations/iron-club/members", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewServer_SealsHookRegistry(t *testing.T) {
	registry := hooks.NewRegistry(nil)
	resolver := auth.NewSessionResolver(nil)

	NewServer(Options{
		Directory:    orgs.NewMemoryDirectory(),
		Guard:        rbac.NewGuard(orgs.NewMemoryDirectory(), nil, nil),
		RequiredAuth: middleware.NewAuthMiddleware(resolver, cookieName, false),
		OptionalAuth: middleware.NewAuthMiddleware(resolver, cookieName, true),
		Provider:     http.NotFoundHandler(),
		Hooks:        registry,
	})

	assert.True(t, registry.Sealed())
	err := registry.Register(hooks.PathSignInEmail, hooks.PhaseAfter, func(*hooks.Context) error { return nil })
	assert.ErrorIs(t, err, hooks.ErrSealed)
}
