package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/hireflow/internal/config"
	"github.com/hitoshi/hireflow/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		DatabaseURL:       "postgres://app@localhost/hireflow",
		AdminDatabaseURL:  "postgres://app@localhost/hireflow",
		SessionSecret:     "test-session-secret-32bytes-long!",
		SessionMaxAge:     3600,
		AccessTokenTTL:    time.Minute,
		ImportTimeout:     time.Second,
		ImportMaxSize:     1024,
		ImportMaxItems:    5,
		RateLimitGeneral:  120,
		RateLimitAuth:     10,
		ServerPort:        "8080",
		BaseURL:           "http://localhost:8080",
		CORSAllowedOrigin: "http://localhost:8080",
	}
}

func TestNewHandler_ServesHealthAndMetrics(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	reg := prometheus.NewRegistry()
	h, cleanup := newHandler(testConfig(), db, db, reg)
	defer cleanup()

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `hireflow_http_requests_total{method="GET",route="/health",status_code="200"} 1`) {
		t.Errorf("metrics should count the health request, got:\n%s", body)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNewHandler_GuardsProtectedPages(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	h, cleanup := newHandler(testConfig(), db, db, prometheus.NewRegistry())
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

// fakeIdentities はuser.IdentityAdminのテスト用実装。
type fakeIdentities struct {
	created   []string
	deleted   []string
	createErr error
	deleteErr error
}

func (f *fakeIdentities) CreateIdentity(_ context.Context, email, _ string) (*model.Identity, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, email)
	return &model.Identity{ID: "id-" + email, Email: email}, nil
}

func (f *fakeIdentities) DeleteIdentity(_ context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, userID)
	return nil
}

type fakeProfiles struct {
	saved []*model.UserProfile
	err   error
}

func (f *fakeProfiles) Create(_ context.Context, profile *model.UserProfile) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, profile)
	return nil
}

func TestBootstrapAdmin_CreatesAdminProfile(t *testing.T) {
	identities := &fakeIdentities{}
	profiles := &fakeProfiles{}

	profile, err := bootstrapAdmin(context.Background(), identities, profiles, "root@example.com", "secret123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", profile.Role)
	}
	if len(profiles.saved) != 1 || profiles.saved[0].UserID != "id-root@example.com" {
		t.Errorf("saved = %+v", profiles.saved)
	}
}

func TestBootstrapAdmin_RollsBackIdentityOnProfileFailure(t *testing.T) {
	identities := &fakeIdentities{}
	profiles := &fakeProfiles{err: errors.New("insert failed")}

	if _, err := bootstrapAdmin(context.Background(), identities, profiles, "root@example.com", "secret123"); err == nil {
		t.Fatal("expected error")
	}
	if len(identities.deleted) != 1 || identities.deleted[0] != "id-root@example.com" {
		t.Errorf("deleted = %v, want the created identity", identities.deleted)
	}
}

func TestBootstrapAdmin_ReportsOrphanedIdentity(t *testing.T) {
	identities := &fakeIdentities{deleteErr: errors.New("delete failed")}
	profiles := &fakeProfiles{err: errors.New("insert failed")}

	_, err := bootstrapAdmin(context.Background(), identities, profiles, "root@example.com", "secret123")
	if err == nil || !strings.Contains(err.Error(), "id-root@example.com") {
		t.Fatalf("error should name the orphaned identity, got %v", err)
	}
}

func TestBootstrapAdmin_EmailTaken(t *testing.T) {
	identities := &fakeIdentities{createErr: model.NewEmailTakenError("root@example.com")}

	_, err := bootstrapAdmin(context.Background(), identities, &fakeProfiles{}, "root@example.com", "secret123")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmailTaken {
		t.Fatalf("expected EMAIL_TAKEN, got %v", err)
	}
}
