package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func contextWithRole(role Role) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	p := &Principal{Identity: Identity{UserID: uuid.New(), Role: role}}
	req = req.WithContext(WithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		allowed []Role
		want    int
	}{
		{"matching role", RoleDoctor, []Role{RoleDoctor}, http.StatusOK},
		{"one of many", RoleStaff, []Role{RoleDoctor, RoleStaff}, http.StatusOK},
		{"admin bypass", RoleAdmin, []Role{RoleDoctor}, http.StatusOK},
		{"forbidden", RolePatient, []Role{RoleDoctor}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := contextWithRole(tt.role)
			err := RequireRole(tt.allowed...)(okHandler)(c)
			if tt.want == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if rec.Code != http.StatusOK {
					t.Errorf("expected 200, got %d", rec.Code)
				}
				return
			}
			expectStatus(t, err, tt.want)
		})
	}
}

func TestRequireRole_ForbiddenMessage(t *testing.T) {
	c, _ := contextWithRole(RolePatient)
	err := RequireRole(RoleDoctor, RoleStaff)(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Message != "required role: doctor or staff" {
		t.Errorf("unexpected message %v", httpErr.Message)
	}
}

func TestRequireRole_NoPrincipal(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	expectStatus(t, RequireRole(RoleDoctor)(okHandler)(c), http.StatusUnauthorized)
}

func TestResolveSubject(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	patient := &Principal{Identity: Identity{UserID: self, Role: RolePatient}}
	staff := &Principal{Identity: Identity{UserID: self, Role: RoleStaff}}

	if got, err := ResolveSubject(patient, uuid.Nil); err != nil || got != self {
		t.Errorf("patient default: got %s, %v", got, err)
	}
	if _, err := ResolveSubject(patient, other); err == nil {
		t.Error("patient must not act on another user")
	}
	if got, err := ResolveSubject(staff, other); err != nil || got != other {
		t.Errorf("staff explicit: got %s, %v", got, err)
	}
	if _, err := ResolveSubject(staff, uuid.Nil); err == nil {
		t.Error("staff must name a target")
	}
}
