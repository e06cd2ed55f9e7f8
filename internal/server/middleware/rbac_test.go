package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gosuda/taskboard/internal/server/middleware"
)

// setRole injects a role under the key Auth uses.
func setRole(r *http.Request, role string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ContextKeyUserRole, role)
	return r.WithContext(ctx)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { //nolint:gochecknoglobals // test fixture
	w.WriteHeader(http.StatusOK)
})

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowed    []string
		role       string
		setRole    bool
		wantStatus int
		wantBody   string
	}{
		{name: "admin allowed", allowed: []string{middleware.RoleAdmin}, role: middleware.RoleAdmin, setRole: true, wantStatus: http.StatusOK},
		{name: "member blocked from admin route", allowed: []string{middleware.RoleAdmin}, role: middleware.RoleMember, setRole: true, wantStatus: http.StatusForbidden, wantBody: "insufficient permissions"},
		{name: "either role", allowed: []string{middleware.RoleAdmin, middleware.RoleMember}, role: middleware.RoleMember, setRole: true, wantStatus: http.StatusOK},
		{name: "unknown role", allowed: []string{middleware.RoleAdmin, middleware.RoleMember}, role: "guest", setRole: true, wantStatus: http.StatusForbidden},
		{name: "empty role", allowed: []string{middleware.RoleAdmin}, role: "", setRole: true, wantStatus: http.StatusUnauthorized, wantBody: "authentication required"},
		{name: "no role", allowed: []string{middleware.RoleAdmin}, wantStatus: http.StatusUnauthorized, wantBody: "authentication required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := middleware.RequireRole(tt.allowed...)(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.setRole {
				req = setRole(req, tt.role)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
