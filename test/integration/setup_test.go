// Package integration exercises the registry end to end over real HTTP:
// handlers, services, the matching engine and the in-memory repositories,
// wired the same way the serve command wires them. The suite needs no
// external services and runs with plain go test.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lifelink/lifelink/internal/domain/donor"
	"github.com/lifelink/lifelink/internal/domain/match"
	"github.com/lifelink/lifelink/internal/domain/recipient"
	"github.com/lifelink/lifelink/internal/matching"
	"github.com/lifelink/lifelink/internal/platform/auth"
	"github.com/lifelink/lifelink/internal/platform/middleware"
	"github.com/lifelink/lifelink/internal/platform/telemetry"
)

// testServer is one fully wired registry instance listening on a loopback
// port. Every test gets its own so state never leaks between tests.
type testServer struct {
	*httptest.Server
	tp *telemetry.TelemetryProvider
}

func newServer(t *testing.T) *testServer {
	t.Helper()

	logger := zerolog.Nop()

	donors := donor.NewRepoMem()
	recipients := recipient.NewRepoMem()
	matches := match.NewRepoMem()

	donorSvc := donor.NewService(donors)
	recipientSvc := recipient.NewService(recipients)
	matchSvc := match.NewService(matches)

	engine := matching.NewEngine(donors, recipients, matches, logger)
	donorSvc.SetMatchNotifier(engine)
	recipientSvc.SetMatchNotifier(engine)
	recipientSvc.SetDonorRanker(engine)
	matchSvc.SetRebuilder(engine)

	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName: "lifelink-test",
		Environment: "test",
	})
	matchSvc.SetTransplantRecorder(tp)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("256K"))
	e.Use(auth.DevAuthMiddleware())

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))
	apiV1.Use(tp.OperationCounterMiddleware())
	donor.NewHandler(donorSvc).RegisterRoutes(apiV1)
	recipient.NewHandler(recipientSvc).RegisterRoutes(apiV1)
	match.NewHandler(matchSvc).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", tp.PrometheusHandler())

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		tp.Shutdown(ctx)
	})
	return &testServer{Server: srv, tp: tp}
}

// do sends one request and decodes the JSON body into out when out is
// non-nil. It returns the response status code.
func (s *testServer) do(t *testing.T, method, path string, body, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode response %q: %v", raw, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	return s.do(t, http.MethodGet, path, nil, out)
}

func (s *testServer) post(t *testing.T, path string, body, out interface{}) int {
	t.Helper()
	return s.do(t, http.MethodPost, path, body, out)
}

func (s *testServer) patch(t *testing.T, path string, body, out interface{}) int {
	t.Helper()
	return s.do(t, http.MethodPatch, path, body, out)
}

// getRaw fetches a path and returns the status and the raw body, for
// endpoints that do not speak JSON.
func (s *testServer) getRaw(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := s.Client().Get(s.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp.StatusCode, string(raw)
}

// ---------------------------------------------------------------------------
// Request payloads and response envelopes
// ---------------------------------------------------------------------------

// kidneyDonor returns a registration payload for a healthy kidney donor.
// Callers override fields through mut.
func kidneyDonor(mut func(map[string]interface{})) map[string]interface{} {
	p := map[string]interface{}{
		"name":      "Alex Rivera",
		"bloodType": "O-",
		"organs":    []string{"Kidney"},
		"age":       30,
		"location":  "Austin, TX",
	}
	if mut != nil {
		mut(p)
	}
	return p
}

// kidneyRecipient returns a registration payload for a kidney recipient.
func kidneyRecipient(mut func(map[string]interface{})) map[string]interface{} {
	p := map[string]interface{}{
		"name":      "Sam Chen",
		"bloodType": "O+",
		"organ":     "Kidney",
		"age":       35,
		"location":  "Austin, TX",
		"urgency":   4,
	}
	if mut != nil {
		mut(p)
	}
	return p
}

type donorEnvelope struct {
	Donor      *donor.Donor   `json:"donor"`
	NewMatches []*match.Match `json:"newMatches"`
}

type recipientEnvelope struct {
	Recipient  *recipient.Recipient `json:"recipient"`
	NewMatches []*match.Match       `json:"newMatches"`
}

// listEnvelope mirrors pagination.Response with the page left raw so each
// test decodes it into the element type it expects.
type listEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"hasMore"`
}

type rankedDonor struct {
	Donor *donor.Donor `json:"donor"`
	Score int          `json:"score"`
}

type statsResponse struct {
	Total                int            `json:"total"`
	ByStatus             map[string]int `json:"byStatus"`
	TransplantsCompleted int            `json:"transplantsCompleted"`
}

// registerDonor registers a donor and fails the test on any non-201 reply.
func registerDonor(t *testing.T, s *testServer, payload map[string]interface{}) donorEnvelope {
	t.Helper()
	var env donorEnvelope
	if code := s.post(t, "/api/v1/donors", payload, &env); code != http.StatusCreated {
		t.Fatalf("register donor: status = %d, want %d", code, http.StatusCreated)
	}
	return env
}

// verifyDonor marks a registered donor as verified and returns the envelope
// carrying any matches the verification scan created.
func verifyDonor(t *testing.T, s *testServer, id string) donorEnvelope {
	t.Helper()
	var env donorEnvelope
	if code := s.post(t, "/api/v1/donors/"+id+"/verify", nil, &env); code != http.StatusOK {
		t.Fatalf("verify donor: status = %d, want %d", code, http.StatusOK)
	}
	return env
}

// registerRecipient registers a recipient and fails the test on any non-201
// reply.
func registerRecipient(t *testing.T, s *testServer, payload map[string]interface{}) recipientEnvelope {
	t.Helper()
	var env recipientEnvelope
	if code := s.post(t, "/api/v1/recipients", payload, &env); code != http.StatusCreated {
		t.Fatalf("register recipient: status = %d, want %d", code, http.StatusCreated)
	}
	return env
}
