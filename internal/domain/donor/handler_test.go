package donor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	h := NewHandler(NewService(NewRepoMem()))
	e := echo.New()
	return h, e
}

func httpCode(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

func TestHandler_RegisterDonor(t *testing.T) {
	h, e := newTestHandler()
	body := `{"name":"Alex Rivera","bloodType":"O-","organs":["Kidney"],"age":35,"location":"New York, NY"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.RegisterDonor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Donor      *Donor        `json:"donor"`
		NewMatches []interface{} `json:"newMatches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Donor == nil || resp.Donor.ID == uuid.Nil {
		t.Error("expected donor with assigned id")
	}
	if resp.NewMatches == nil {
		t.Error("expected newMatches array, got null")
	}
}

func TestHandler_RegisterDonor_Validation(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.RegisterDonor(c); httpCode(err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_RegisterDonor_Duplicate(t *testing.T) {
	h, e := newTestHandler()
	body := `{"externalId":"0xabc","name":"Alex","bloodType":"O-","organs":["Kidney"]}`
	for i, wantErr := range []bool{false, true} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		err := h.RegisterDonor(c)
		if !wantErr && err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if wantErr && httpCode(err) != http.StatusConflict {
			t.Errorf("attempt %d: expected 409, got %v", i, err)
		}
	}
}

func TestHandler_GetDonor(t *testing.T) {
	h, e := newTestHandler()
	d := validDonor()
	h.svc.Register(nil, d)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.GetDonor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetDonor_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if err := h.GetDonor(c); httpCode(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListDonors_VerifiedFilter(t *testing.T) {
	h, e := newTestHandler()
	d := validDonor()
	h.svc.Register(nil, d)
	h.svc.Verify(nil, d.ID)
	h.svc.Register(nil, validDonor())

	req := httptest.NewRequest(http.MethodGet, "/?verified=true", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.ListDonors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 verified donor, got %d", resp.Total)
	}
}

func TestHandler_VerifyDonor(t *testing.T) {
	h, e := newTestHandler()
	d := validDonor()
	h.svc.Register(nil, d)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.VerifyDonor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp registerResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Donor == nil || !resp.Donor.IsVerified {
		t.Error("expected verified donor in response")
	}
}

func TestHandler_DeactivateDonor(t *testing.T) {
	h, e := newTestHandler()
	d := validDonor()
	h.svc.Register(nil, d)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.DeactivateDonor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Donor
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.IsActive {
		t.Error("expected inactive donor in response")
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	api := e.Group("/api/v1")
	h.RegisterRoutes(api)
	routes := e.Routes()
	if len(routes) == 0 {
		t.Error("expected routes")
	}
	routePaths := make(map[string]bool)
	for _, r := range routes {
		routePaths[r.Method+":"+r.Path] = true
	}
	expected := []string{
		"GET:/api/v1/donors",
		"GET:/api/v1/donors/:id",
		"POST:/api/v1/donors",
		"POST:/api/v1/donors/:id/verify",
		"POST:/api/v1/donors/:id/deactivate",
	}
	for _, path := range expected {
		if !routePaths[path] {
			t.Errorf("missing route: %s", path)
		}
	}
}
