package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/PTAIM/backend/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo, *testEnv) {
	env := newTestService()
	return NewHandler(env.svc), echo.New(), env
}

func request(method, target, body string, id uuid.UUID, role auth.Role) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	p := &auth.Principal{Identity: auth.Identity{UserID: id, Role: role}}
	return req.WithContext(auth.WithPrincipal(req.Context(), p))
}

func expectHTTP(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != code {
		t.Errorf("expected %d, got %v", code, err)
	}
}

func withID(c echo.Context, id uuid.UUID) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id.String())
	return c
}

func TestHandler_Create_DoctorIsAuthor(t *testing.T) {
	h, e, env := newTestHandler()
	r := env.results.add(env.patient.ID, env.doctor.ID, "Hemograma")

	body := `{"paciente_id":"` + env.patient.ID.String() + `","titulo":"Laudo","descricao":"Normal","exames_ids":["` + r.ID.String() + `"]}`
	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodPost, "/laudos", body, env.doctor.ID, auth.RoleDoctor), rec)
	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var d Detail
	json.Unmarshal(rec.Body.Bytes(), &d)
	if d.DoctorID != env.doctor.ID || d.Status != StatusDraft || len(d.Exams) != 1 {
		t.Errorf("unexpected report %+v", d)
	}
}

func TestHandler_Create_OtherDoctorForbidden(t *testing.T) {
	h, e, env := newTestHandler()
	r := env.results.add(env.patient.ID, env.doctor.ID, "Hemograma")

	body := `{"paciente_id":"` + env.patient.ID.String() + `","medico_id":"` + env.doctor.ID.String() + `","titulo":"L","descricao":"D","exames_ids":["` + r.ID.String() + `"]}`
	c := e.NewContext(request(http.MethodPost, "/laudos", body, uuid.New(), auth.RoleDoctor), httptest.NewRecorder())
	expectHTTP(t, h.Create(c), http.StatusForbidden)
}

func TestHandler_Get_PatientCannotSeeDraft(t *testing.T) {
	h, e, env := newTestHandler()
	d := env.draft(t, "Hemograma")

	c := withID(e.NewContext(request(http.MethodGet, "/", "", env.patient.ID, auth.RolePatient), httptest.NewRecorder()), d.ID)
	expectHTTP(t, h.Get(c), http.StatusNotFound)

	if _, err := env.svc.Finalize(context.Background(), d.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	rec := httptest.NewRecorder()
	c = withID(e.NewContext(request(http.MethodGet, "/", "", env.patient.ID, auth.RolePatient), rec), d.ID)
	if err := h.Get(c); err != nil || rec.Code != http.StatusOK {
		t.Errorf("expected 200 for finalized report, got %d (%v)", rec.Code, err)
	}

	c = withID(e.NewContext(request(http.MethodGet, "/", "", uuid.New(), auth.RolePatient), httptest.NewRecorder()), d.ID)
	expectHTTP(t, h.Get(c), http.StatusForbidden)
}

func TestHandler_List_PatientFiltersDrafts(t *testing.T) {
	h, e, env := newTestHandler()
	first := env.draft(t, "Hemograma")
	env.draft(t, "Glicemia")
	env.svc.Finalize(context.Background(), first.ID)

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodGet, "/laudos", "", env.patient.ID, auth.RolePatient), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Detail
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0].ID != first.ID {
		t.Errorf("expected only the finalized report, got %+v", items)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(request(http.MethodGet, "/laudos", "", env.doctor.ID, auth.RoleDoctor), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 2 {
		t.Errorf("doctor should see both reports, got %d", len(items))
	}
}

func TestHandler_List_StaffNeedsFilter(t *testing.T) {
	h, e, _ := newTestHandler()
	c := e.NewContext(request(http.MethodGet, "/laudos", "", uuid.New(), auth.RoleStaff), httptest.NewRecorder())
	expectHTTP(t, h.List(c), http.StatusBadRequest)

	c = e.NewContext(request(http.MethodGet, "/laudos?paciente_id=nope", "", uuid.New(), auth.RoleStaff), httptest.NewRecorder())
	expectHTTP(t, h.List(c), http.StatusBadRequest)
}

func TestHandler_Finalize_OnlyAuthor(t *testing.T) {
	h, e, env := newTestHandler()
	d := env.draft(t, "Hemograma")

	c := withID(e.NewContext(request(http.MethodPost, "/", "", uuid.New(), auth.RoleDoctor), httptest.NewRecorder()), d.ID)
	expectHTTP(t, h.Finalize(c), http.StatusForbidden)

	rec := httptest.NewRecorder()
	c = withID(e.NewContext(request(http.MethodPost, "/", "", env.doctor.ID, auth.RoleDoctor), rec), d.ID)
	if err := h.Finalize(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rep Report
	json.Unmarshal(rec.Body.Bytes(), &rep)
	if rep.Status != StatusFinalized {
		t.Errorf("expected finalized, got %s", rep.Status)
	}
}

func TestHandler_InvalidID(t *testing.T) {
	h, e, env := newTestHandler()
	c := e.NewContext(request(http.MethodPost, "/", "", env.doctor.ID, auth.RoleDoctor), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	expectHTTP(t, h.Send(c), http.StatusBadRequest)
}
