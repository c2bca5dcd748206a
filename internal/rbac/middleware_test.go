package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dialout-picker/internal/auth"

	"github.com/gin-gonic/gin"
)

func serve(conference, role string, chain ...gin.HandlerFunc) int {
	gin.SetMode(gin.TestMode)

	handlers := []gin.HandlerFunc{func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", conference, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}}
	handlers = append(handlers, chain...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })

	r := gin.New()
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		allowed []string
		code    int
	}{
		{name: "chair dials", role: RoleChair, allowed: []string{RoleChair}, code: http.StatusOK},
		{name: "guest cannot dial", role: RoleGuest, allowed: []string{RoleChair}, code: http.StatusForbidden},
		{name: "guest browses", role: RoleGuest, allowed: []string{RoleChair, RoleGuest}, code: http.StatusOK},
		{name: "unknown role", role: "owner", allowed: []string{RoleChair, RoleGuest}, code: http.StatusForbidden},
		{name: "no role", role: "", allowed: []string{RoleChair}, code: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := serve("meet", tc.role, RequireAnyRole(tc.allowed...)); got != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, got)
			}
		})
	}
}

func TestRequireConference(t *testing.T) {
	if got := serve("meet", RoleChair, RequireConference("meet")); got != http.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}
	if got := serve("other", RoleChair, RequireConference("meet")); got != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", got)
	}
	if got := serve("", RoleChair, RequireConference("meet")); got != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}
}

func TestCanDial(t *testing.T) {
	if !CanDial(RoleChair) || CanDial(RoleGuest) {
		t.Fatalf("only chair may dial")
	}
}
