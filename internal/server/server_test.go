package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	auditdomain "github.com/smallbiznis/voucherportal/internal/audit/domain"
	auditrepository "github.com/smallbiznis/voucherportal/internal/audit/repository"
	auditservice "github.com/smallbiznis/voucherportal/internal/audit/service"
	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
	authrepository "github.com/smallbiznis/voucherportal/internal/auth/repository"
	authservice "github.com/smallbiznis/voucherportal/internal/auth/service"
	"github.com/smallbiznis/voucherportal/internal/auth/session"
	"github.com/smallbiznis/voucherportal/internal/authorization"
	"github.com/smallbiznis/voucherportal/internal/clock"
	"github.com/smallbiznis/voucherportal/internal/config"
	"github.com/smallbiznis/voucherportal/internal/migration"
	"github.com/smallbiznis/voucherportal/internal/observability"
	"github.com/smallbiznis/voucherportal/internal/ratelimit"
	redemptionrepository "github.com/smallbiznis/voucherportal/internal/redemption/repository"
	redemptionservice "github.com/smallbiznis/voucherportal/internal/redemption/service"
	voucherrepository "github.com/smallbiznis/voucherportal/internal/voucher/repository"
	voucherservice "github.com/smallbiznis/voucherportal/internal/voucher/service"
	recordrepository "github.com/smallbiznis/voucherportal/internal/voucherrecord/repository"
	recordservice "github.com/smallbiznis/voucherportal/internal/voucherrecord/service"
	"github.com/smallbiznis/voucherportal/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPassword = "correct-horse"

type testEnv struct {
	t      *testing.T
	server *Server
	auth   authdomain.Service
	audit  auditdomain.Service
}

func newTestEnv(t *testing.T, limiter *ratelimit.RedeemLimiter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.Apply(conn, "sqlite"))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.New()
	cfg := config.Config{AuthCookieName: session.DefaultCookieName}

	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})

	userRepo, sessionRepo := authrepository.New(conn)
	auth := authservice.New(log, userRepo, sessionRepo, node, clk, audit)

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer, AuditSvc: audit})

	voucherRepo := voucherrepository.Provide()
	vouchers := voucherservice.New(voucherservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  voucherRepo,
		Audit: audit,
	})
	redeem := redemptionservice.New(redemptionservice.Params{
		DB:          conn,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Repo:        redemptionrepository.Provide(),
		VoucherRepo: voucherRepo,
		Vouchers:    vouchers,
		Policy:      config.NewStaticPolicyHolder(config.DefaultRedemptionPolicy()),
	})
	records := recordservice.New(recordservice.Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Repo:     recordrepository.Provide(),
		Vouchers: vouchers,
		Audit:    audit,
	})

	srv := NewServer(ServerParams{
		Gin:        NewEngine(observability.Config{}, nil),
		Cfg:        cfg,
		Authsvc:    auth,
		Sessions:   session.NewManager(cfg),
		AuthzSvc:   authz,
		AuditSvc:   audit,
		VoucherSvc: vouchers,
		RedeemSvc:  redeem,
		RecordSvc:  records,
		Limiter:    limiter,
	})

	return &testEnv{t: t, server: srv, auth: auth, audit: audit}
}

// user creates an account and returns its session cookie.
func (e *testEnv) user(username string, staff bool) *http.Cookie {
	e.t.Helper()
	_, err := e.auth.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
		IsStaff:  staff,
	})
	require.NoError(e.t, err)

	w := e.do(http.MethodPost, "/auth/login", map[string]any{"login": username, "password": testPassword}, nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	return sessionCookie(e.t, w)
}

func (e *testEnv) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	e.server.Engine().ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	data, ok := decode(t, w)["data"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return data
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	payload, ok := decode(t, w)["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return payload
}

func TestSignupLoginAndLogout(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/auth/signup", map[string]any{
		"username":              "alice",
		"email":                 "alice@example.com",
		"password":              testPassword,
		"password_confirmation": testPassword,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "redeem", dataOf(t, w)["redirect"])
	cookie := sessionCookie(t, w)

	w = env.do(http.MethodGet, "/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", dataOf(t, w)["username"])

	w = env.do(http.MethodPost, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errorTypeUnauthorized, errorOf(t, w)["type"])
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/auth/signup", map[string]any{
		"username":              "bob",
		"email":                 "bob@example.com",
		"password":              testPassword,
		"password_confirmation": "something-else",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	payload := errorOf(t, w)
	assert.Equal(t, errorTypeInvalidRequest, payload["type"])
	errs := payload["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "password_confirmation", errs[0].(map[string]any)["field"])
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	env.user("carol", false)

	w := env.do(http.MethodPost, "/auth/login", map[string]any{"login": "carol", "password": "nope-nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFailedLoginAuditMasksLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	env.user("dave_k", false)

	w := env.do(http.MethodPost, "/auth/login", map[string]any{"login": "dave_k@example.com", "password": "nope-nope"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	resp, err := env.audit.List(context.Background(), auditdomain.ListAuditLogRequest{Action: "user.login_failed"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "****@example.com", resp.AuditLogs[0].Metadata["login"])
}

func TestStaffLoginRedirectsToVouchers(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.auth.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Username: "staff",
		Email:    "staff@example.com",
		Password: testPassword,
		IsStaff:  true,
	})
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/auth/login", map[string]any{"login": "staff@example.com", "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vouchers", dataOf(t, w)["redirect"])
}

func TestVoucherRoutesRequireStaff(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.user("dave", false)

	w := env.do(http.MethodGet, "/vouchers", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/vouchers", map[string]any{"code": "SPRING", "redemption_type": "single"}, user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errorTypeForbidden, errorOf(t, w)["type"])

	w = env.do(http.MethodGet, "/api/records", nil, user)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVoucherLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	staff := env.user("erin", true)

	w := env.do(http.MethodPost, "/vouchers", map[string]any{
		"code":                "SUMMER",
		"discount_percentage": 15,
		"redemption_type":     "x_times",
		"x_times_limit":       3,
	}, staff)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := dataOf(t, w)
	id := created["id"].(string)
	assert.EqualValues(t, 3, created["redemption_limit"])
	assert.EqualValues(t, 0, created["redemption_count"])

	w = env.do(http.MethodPost, "/vouchers", map[string]any{"code": "summer", "redemption_type": "single"}, staff)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPatch, "/vouchers/"+id, map[string]any{"redemption_type": "multiple"}, staff)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, hasLimit := dataOf(t, w)["redemption_limit"]
	assert.False(t, hasLimit)

	w = env.do(http.MethodGet, "/vouchers", nil, staff)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = env.do(http.MethodDelete, "/vouchers/"+id, nil, staff)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/vouchers/"+id, nil, staff)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errorTypeNotFound, errorOf(t, w)["type"])
}

func TestCreateVoucherValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	staff := env.user("frank", true)

	w := env.do(http.MethodPost, "/vouchers", map[string]any{"code": "", "redemption_type": "single"}, staff)
	require.Equal(t, http.StatusBadRequest, w.Code)
	errs := errorOf(t, w)["errors"].([]any)
	assert.Equal(t, "code", errs[0].(map[string]any)["field"])

	w = env.do(http.MethodPost, "/vouchers", map[string]any{"code": "BAD", "redemption_type": "weekly"}, staff)
	require.Equal(t, http.StatusBadRequest, w.Code)
	errs = errorOf(t, w)["errors"].([]any)
	assert.Equal(t, "redemption_type", errs[0].(map[string]any)["field"])
}

func TestRedeemOutcomes(t *testing.T) {
	env := newTestEnv(t, nil)
	staff := env.user("grace", true)
	first := env.user("heidi", false)
	second := env.user("ivan", false)

	w := env.do(http.MethodPost, "/vouchers", map[string]any{"code": "ONCE", "redemption_type": "single"}, staff)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodPost, "/redeem", map[string]any{"code": "once"}, first)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, w)
	assert.Equal(t, "success", data["outcome"])
	assert.Equal(t, `Voucher "once" successfully redeemed`, data["message"])

	w = env.do(http.MethodPost, "/redeem", map[string]any{"code": "ONCE"}, first)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "already_redeemed", dataOf(t, w)["outcome"])

	w = env.do(http.MethodPost, "/redeem", map[string]any{"code": "ONCE"}, second)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not_redeemable", dataOf(t, w)["outcome"])

	w = env.do(http.MethodPost, "/redeem", map[string]any{"code": "MISSING"}, second)
	require.Equal(t, http.StatusNotFound, w.Code)
	data = dataOf(t, w)
	assert.Equal(t, "not_found", data["outcome"])
	assert.Equal(t, `Voucher "MISSING" does not exist!`, data["message"])

	w = env.do(http.MethodGet, "/redemptions", nil, first)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)["data"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "ONCE", history[0].(map[string]any)["code"])

	w = env.do(http.MethodGet, "/redemptions", nil, second)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["data"])
}

func TestRedeemFailsClosedWhenLimiterErrors(t *testing.T) {
	client, _ := redismock.NewClientMock()
	limiter := ratelimit.NewRedeemLimiterWithClient(client, config.NewStaticPolicyHolder(config.DefaultRedemptionPolicy()))
	env := newTestEnv(t, limiter)
	user := env.user("judy", false)

	w := env.do(http.MethodPost, "/redeem", map[string]any{"code": "ANY"}, user)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errorTypeServiceUnavailable, errorOf(t, w)["type"])
}

func TestRecordRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	staff := env.user("mallory", true)

	w := env.do(http.MethodPost, "/vouchers", map[string]any{"code": "API", "redemption_type": "single"}, staff)
	require.Equal(t, http.StatusCreated, w.Code)
	voucherID := dataOf(t, w)["id"].(string)

	w = env.do(http.MethodPost, "/api/records", map[string]any{"voucher_id": voucherID, "description": "partner feed"}, staff)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	recordID := dataOf(t, w)["id"].(string)

	w = env.do(http.MethodPost, "/api/records", map[string]any{"voucher_id": voucherID, "description": "again"}, staff)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPatch, "/api/records/"+recordID, map[string]any{
		"description": "partner feed v2",
		"voucher":     map[string]any{"redemption_type": "x_times", "x_times_limit": 4},
	}, staff)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, w)
	assert.Equal(t, "partner feed v2", data["description"])
	assert.EqualValues(t, 4, data["voucher"].(map[string]any)["redemption_limit"])

	w = env.do(http.MethodGet, "/api/records", nil, staff)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = env.do(http.MethodDelete, "/api/records/"+recordID, nil, staff)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/records/"+recordID, nil, staff)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/vouchers/"+voucherID, nil, staff)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLogsRequireSuperuser(t *testing.T) {
	env := newTestEnv(t, nil)
	staff := env.user("niaj", true)

	w := env.do(http.MethodGet, "/audit-logs", nil, staff)
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, err := env.auth.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Username:    "root",
		Email:       "root@example.com",
		Password:    testPassword,
		IsSuperuser: true,
	})
	require.NoError(t, err)
	w = env.do(http.MethodPost, "/auth/login", map[string]any{"login": "root", "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	root := sessionCookie(t, w)

	w = env.do(http.MethodGet, "/audit-logs?action=user.login", nil, root)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	logs := decode(t, w)["data"].([]any)
	assert.NotEmpty(t, logs)

	w = env.do(http.MethodGet, "/audit-logs?start_at=yesterday", nil, root)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapErrorFallsBackToAPIError(t *testing.T) {
	status, payload := mapError(auditdomain.ErrInvalidTimeRange)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errorTypeInvalidRequest, payload.Type)

	status, payload = mapError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, errorTypeAPI, payload.Type)

	errType, code := classifyErrorForLog(ratelimit.ErrRateLimited)
	assert.Equal(t, errorTypeRateLimited, errType)
	assert.Equal(t, "rate_limited", code)
}
