package authz

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

func newAuthzMiddleware(repo *stubAuthzRepo, gate *stubGate) Middleware {
	return Middleware{Resolver: NewResolver(repo, gate)}
}

func requestWithSession(userID, tenantID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/deals", nil)
	sess := &shared.Session{ID: "sess-1"}
	if userID != "" {
		sess.SetIdentity(userID, tenantID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireWithoutSessionAnswers401(t *testing.T) {
	mw := newAuthzMiddleware(&stubAuthzRepo{}, &stubGate{})
	handler := mw.Require("deals", ActionUpdate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/deals", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession("", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireDenialRendersFixedMessage(t *testing.T) {
	repo := &stubAuthzRepo{
		users: map[string]ActingUser{
			"u1": {ID: "u1", TenantID: "t1", RoleKind: RoleKindStandard},
		},
	}
	mw := newAuthzMiddleware(repo, &stubGate{})
	handler := mw.Require("deals", ActionUpdate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession("u1", "t1"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body shared.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Forbidden", body.Error)
	assert.Equal(t, shared.PermissionDeniedMessage, body.Message)
}

func TestRequireGrantsPass(t *testing.T) {
	repo := &stubAuthzRepo{
		users: map[string]ActingUser{
			"u1": {ID: "u1", TenantID: "t1", RoleKind: RoleKindAdmin},
		},
	}
	mw := newAuthzMiddleware(repo, &stubGate{})

	called := false
	handler := mw.Require("deals", ActionUpdate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession("u1", "t1"))
	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireResolutionFailureAnswers500(t *testing.T) {
	mw := newAuthzMiddleware(&stubAuthzRepo{lookupErr: errors.New("db down")}, &stubGate{})
	handler := mw.Require("deals", ActionUpdate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithSession("u1", "t1"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
