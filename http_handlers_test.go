package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanshub16/upnext-live/config"
	"github.com/himanshub16/upnext-live/radio"
	"github.com/himanshub16/upnext-live/repository"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, ref string) (*radio.Metadata, error) {
	return &radio.Metadata{VideoID: ref, Title: "Song " + ref, Author: "Artist", DurationSeconds: 120}, nil
}

func (stubResolver) FindReference(text string) (string, bool) {
	for _, w := range strings.Fields(text) {
		if strings.HasPrefix(w, "yt:") {
			return w, true
		}
	}
	return "", false
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

type fixedCount int

func (n fixedCount) ClientCount() int { return int(n) }

func newTestRadio(t *testing.T) (*radio.Radio, *repository.SQLRepository) {
	t.Helper()
	repo, err := repository.Open(context.Background(), "sqlite://:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	r := radio.New(radio.Options{
		Repo:     repo,
		Resolver: stubResolver{},
		Sessions: radio.NewSessions([]string{"ModUser"}),
		Limits:   radio.Limits{MaxDonationDuration: 600, MaxRewardDuration: 300, HistoryWindow: 10},
	})
	require.NoError(t, r.Load(context.Background()))
	return r, repo
}

func newTestRouter(t *testing.T) (*echo.Echo, *radio.Radio, *jwtIssuer) {
	t.Helper()
	r, repo := newTestRadio(t)
	issuer := newJWTIssuer("test-secret", time.Hour)
	e := NewHTTPRouter(r, repo, fixedCount(3), issuer, http.NotFoundHandler())
	return e, r, issuer
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _, _ := newTestRouter(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 3.0, body["observers"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	r, _ := newTestRadio(t)
	e := NewHTTPRouter(r, downDB{}, fixedCount(0), newJWTIssuer("s", time.Hour), http.NotFoundHandler())

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestQueueAndActive(t *testing.T) {
	e, r, _ := newTestRouter(t)
	_, _, err := r.Submit(context.Background(), radio.RawSubmission{Reference: "abc", RequesterName: "alice"}, false)
	require.NoError(t, err)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/queue", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var queue []radio.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, "Song abc", queue[0].Title)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/active", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"idle","request":null}`, rec.Body.String())

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin(t *testing.T) {
	e, _, issuer := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"identity":"moduser"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	token, err := jwt.Parse(body["token"], func(*jwt.Token) (interface{}, error) { return issuer.secret, nil })
	require.NoError(t, err)
	assert.Equal(t, "moduser", token.Claims.(jwt.MapClaims)["identity"])

	req = httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"identity":"mallory"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, serve(e, req).Code)
}

func TestRefundsRequireToken(t *testing.T) {
	e, r, issuer := newTestRouter(t)
	ctx := context.Background()

	req, _, err := r.Submit(ctx, radio.RawSubmission{Reference: "abc", RequesterName: "alice"}, false)
	require.NoError(t, err)
	r.Sessions().Connect("c1")
	require.True(t, r.Sessions().Authenticate("c1", "moduser"))
	_, err = r.RefundQueueItem(ctx, "c1", req.ID, "oops")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, serve(e, httptest.NewRequest(http.MethodGet, "/api/admin/refunds", nil)).Code)

	token, err := issuer.Issue("moduser")
	require.NoError(t, err)
	get := httptest.NewRequest(http.MethodGet, "/api/admin/refunds", nil)
	get.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := serve(e, get)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []radio.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, req.ID, items[0].ID)
	assert.Equal(t, "oops", items[0].RefundReason)

	stale, err := issuer.Issue("former-mod")
	require.NoError(t, err)
	get = httptest.NewRequest(http.MethodGet, "/api/admin/refunds", nil)
	get.Header.Set(echo.HeaderAuthorization, "Bearer "+stale)
	assert.Equal(t, http.StatusForbidden, serve(e, get).Code)
}

func TestJWTIssuerExpiry(t *testing.T) {
	issuer := newJWTIssuer("s", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := issuer.Issue("moduser")
	require.NoError(t, err)
	_, err = jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte("s"), nil })
	assert.Error(t, err)
}

func TestCheckJWTSecret(t *testing.T) {
	assert.NoError(t, checkJWTSecret(config.AuthConfig{JWTSecret: config.DefaultJWTSecret}))
	assert.Error(t, checkJWTSecret(config.AuthConfig{JWTSecret: config.DefaultJWTSecret, Moderators: []string{"mod"}}))
	assert.Error(t, checkJWTSecret(config.AuthConfig{Moderators: []string{"mod"}}))
	assert.NoError(t, checkJWTSecret(config.AuthConfig{JWTSecret: "s3cr3t-value", Moderators: []string{"mod"}}))
}
