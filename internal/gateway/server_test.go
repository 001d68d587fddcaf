package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rakunlabs/pcgate/internal/config"
	"github.com/rakunlabs/pcgate/internal/proof"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gen, err := proof.NewRandom()
	if err != nil {
		t.Fatalf("proof.NewRandom: %v", err)
	}
	gw, err := New(DefaultConfig(), gen)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := gw.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return NewServer(gw, config.Server{BasePath: "", AdminToken: "secret"})
}

func TestInfoAPIReportsRunningAndSkillCount(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	w := httptest.NewRecorder()
	s.InfoAPI(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp infoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Running {
		t.Fatalf("expected running=true")
	}
	if resp.SkillCount == 0 {
		t.Fatalf("expected builtin skills to be counted")
	}
}

func TestSubmitMessageAPIReturnsSignedPCA(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`{"channel_id":"test","sender_id":"u1","content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", body)
	w := httptest.NewRecorder()
	s.SubmitMessageAPI(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var pca proof.PCA
	if err := json.Unmarshal(w.Body.Bytes(), &pca); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !pca.IsSigned() {
		t.Fatalf("expected a signed PCA in the response")
	}
}

func TestSubmitMessageAPIRejectsMissingFields(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`{"content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", body)
	w := httptest.NewRecorder()
	s.SubmitMessageAPI(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListSkillsAPIIncludesBuiltins(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/skills", nil)
	w := httptest.NewRecorder()
	s.ListSkillsAPI(w, req)

	var resp struct {
		Skills []skillSummary `json:"skills"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, sk := range resp.Skills {
		if sk.Name == "echo" && sk.Builtin {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the builtin echo skill in the listing, got %+v", resp.Skills)
	}
}

func TestGetSkillAPINotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/skills/does-not-exist", nil)
	w := httptest.NewRecorder()
	s.GetSkillAPI(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAdminAuthMiddlewareRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	mw := s.adminAuthMiddleware()
	called := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/skills", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if called {
		t.Fatalf("handler should not run without a valid admin token")
	}
}

func TestAdminAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	s := newTestServer(t)
	mw := s.adminAuthMiddleware()
	called := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/skills", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if !called {
		t.Fatalf("handler should run with a valid admin token")
	}
}

func TestInstallAndUninstallSkillAPI(t *testing.T) {
	s := newTestServer(t)

	source := `{"name":"greeter","version":1,"entry_point":"msg","outputs":["msg"],"nodes":[{"id":"msg","type":0,"uri":"input://message"}]}`
	body := strings.NewReader(`{"name":"greeter","source":` + source + `}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/skills", body)
	w := httptest.NewRecorder()
	s.InstallSkillAPI(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("install status = %d, body = %s", w.Code, w.Body.String())
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/skills/greeter", nil)
	delW := httptest.NewRecorder()
	s.UninstallSkillAPI(delW, delReq)
	if delW.Code != http.StatusOK {
		t.Fatalf("uninstall status = %d, body = %s", delW.Code, delW.Body.String())
	}
}
