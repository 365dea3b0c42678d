//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/textra-ai/textra/internal/server"
	"github.com/textra-ai/textra/internal/auth"
	"github.com/textra-ai/textra/internal/config"
	"github.com/textra-ai/textra/internal/detection"
	"github.com/textra-ai/textra/internal/extract"
	"github.com/textra-ai/textra/internal/inference"
	mw "github.com/textra-ai/textra/internal/middleware"
	"github.com/textra-ai/textra/internal/quota"
	"github.com/textra-ai/textra/internal/ratelimit"
	"github.com/textra-ai/textra/internal/users"
)

const (
	AdminEmail    = "admin@textra.test"
	AdminPassword = "admin-password-123"

	// Throttle limits used by the test router.
	TestPerMinute = 10
	TestPerHour   = 100
)

// LongText clears the minimum-length validation with room to spare.
const LongText = "The quick brown fox jumps over the lazy dog, and then it keeps " +
	"going for a few more sentences so the detector has something substantial to work with."

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	AuthSvc     *auth.Service
	UserSvc     *users.Service
	QuotaSvc    *quota.Service
	Limiter     *ratelimit.Limiter

	mlMu       sync.Mutex
	mlResponse map[string]any
}

var testEnv *TestEnv

// SetMLResponse swaps the payload the stub inference service returns.
func (e *TestEnv) SetMLResponse(resp map[string]any) {
	e.mlMu.Lock()
	defer e.mlMu.Unlock()
	e.mlResponse = resp
}

func (e *TestEnv) mlRespond(w http.ResponseWriter, _ *http.Request) {
	e.mlMu.Lock()
	resp := e.mlResponse
	e.mlMu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "textra_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/textra_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	env := &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		mlResponse: map[string]any{
			"label":          "ai",
			"ai_probability": 0.91,
			"certainty":      0.91,
			"model_used":     "test-model",
		},
	}

	// Stub collaborator services
	mlServer := httptest.NewServer(http.HandlerFunc(env.mlRespond))
	t.Cleanup(mlServer.Close)

	extractorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": string(data)})
	}))
	t.Cleanup(extractorServer.Close)

	readerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Title: A Test Article\n\n# A Test Article\n\n%s\n", LongText)
	}))
	t.Cleanup(readerServer.Close)

	// Services
	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-long!!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	quotaSvc := quota.NewService(quota.NewPostgresStore(pool), config.QuotaConfig{
		DailyDefault:   100,
		MonthlyDefault: 1000,
	})
	limiter := ratelimit.New(redisClient, TestPerMinute, TestPerHour, true)

	detectionCfg := config.DetectionConfig{
		MaxFileSizeMB:     1,
		AllowedExtensions: []string{".txt", ".pdf"},
	}
	historyRepo := detection.NewHistoryRepository(pool)
	detectionSvc := detection.NewService(
		quotaSvc,
		historyRepo,
		inference.NewClient(config.MLConfig{BaseURL: mlServer.URL, Timeout: 5 * time.Second}),
		extract.NewExtractor(config.ExtractorConfig{BaseURL: extractorServer.URL, Timeout: 5 * time.Second}),
		extract.NewReader(config.ReaderConfig{BaseURL: readerServer.URL, Timeout: 5 * time.Second}),
		detectionCfg,
	)
	detectionHandler := detection.NewHandler(detectionSvc, quotaSvc, limiter, historyRepo, detectionCfg)

	router := server.NewRouter(pool, nil, server.RouterConfig{}, server.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		DetectText: detectionHandler.DetectText,
		DetectFile: detectionHandler.DetectFile,
		DetectURL:  detectionHandler.DetectURL,

		GetLimits:     detectionHandler.GetLimits,
		ListHistory:   detectionHandler.ListHistory,
		GetStats:      detectionHandler.GetStats,
		DeleteHistory: detectionHandler.DeleteHistory,

		UpdateUserLimits: detectionHandler.UpdateUserLimits,
		ResetRateLimit:   detectionHandler.ResetRateLimit,

		AuthMiddleware:      auth.Middleware(authSvc),
		UserRateLimit:       mw.UserRateLimit(limiter),
		AdminOnlyMiddleware: mw.AdminOnly([]string{AdminEmail}),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	env.Server = server
	env.AuthSvc = authSvc
	env.UserSvc = userSvc
	env.QuotaSvc = quotaSvc
	env.Limiter = limiter

	testEnv = env
	return testEnv
}

func getMigrationsPath() string {
	// Try relative paths from test directory
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func RegisterUser(t *testing.T, env *TestEnv, email, password string) map[string]any {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	return ParseResponse(t, resp)
}

func LoginUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

// NewUser registers a fresh account and returns its ID and access token.
func NewUser(t *testing.T, env *TestEnv, email string) (string, string) {
	t.Helper()
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	user, err := env.UserSvc.GetByEmail(context.Background(), email)
	if err != nil || user == nil {
		t.Fatalf("looking up user %s: %v", email, err)
	}
	return user.ID.String(), token
}

// AdminToken registers (once) and logs in the configured admin account.
func AdminToken(t *testing.T, env *TestEnv) string {
	t.Helper()
	user, err := env.UserSvc.GetByEmail(context.Background(), AdminEmail)
	if err != nil {
		t.Fatalf("looking up admin: %v", err)
	}
	if user == nil {
		RegisterUser(t, env, AdminEmail, AdminPassword)
	}
	return LoginUser(t, env, AdminEmail, AdminPassword)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
