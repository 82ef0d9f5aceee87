//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/expense-tracker/apiserver/config"
	"github.com/expense-tracker/apiserver/internal/db"
	"github.com/expense-tracker/apiserver/internal/server"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serverPort = 18080

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "postgres"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setTestEnv(root)

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := server.New(ctx, config.LoadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = srv.Shutdown(shutdownCtx)
	shutdownCancel()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestExpenseLifecycle(t *testing.T) {
	suffix := time.Now().UnixNano()
	email := fmt.Sprintf("user_%d@example.com", suffix)
	password := "testpass123!"

	status, body := call(t, http.MethodPost, "/api/v1/signup", "", map[string]string{
		"username": fmt.Sprintf("user_%d", suffix),
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, status, body)

	token := login(t, email, password)

	status, body = call(t, http.MethodPost, "/api/v2/expense/createExpense", token, map[string]any{
		"amount":        49.99,
		"date":          "2024-03-15",
		"category":      "E2E Groceries",
		"paymentMethod": "Credit Card",
		"description":   "weekly shop",
	})
	require.Equal(t, http.StatusCreated, status, body)
	id := body["expense"].(map[string]any)["id"].(string)

	inserted := uploadCSV(t, token, "e2e.csv",
		"amount,date,category,paymentMethod,description\n"+
			"10,2024-03-01,E2E Groceries,Cash,market\n"+
			"1200,2024-03-02,E2E Rent,Bank Transfer,march\n")
	require.Len(t, inserted, 2)

	status, body = call(t, http.MethodGet, "/api/v2/expense/?category=E2E%20Groceries&sortBy=amount&sortOrder=desc&limit=1", token, nil)
	require.Equal(t, http.StatusOK, status, body)
	expenses := body["expenses"].([]any)
	require.Len(t, expenses, 1)
	assert.Equal(t, 49.99, expenses[0].(map[string]any)["amount"])
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, 2.0, pagination["totalItems"])
	assert.Equal(t, 2.0, pagination["totalPages"])

	status, body = call(t, http.MethodPatch, "/api/v2/expense/"+id, token, map[string]any{"amount": 55})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "E2E Groceries", body["updatedExpense"].(map[string]any)["category"])

	ids := []string{id}
	for _, e := range inserted {
		ids = append(ids, e.(map[string]any)["id"].(string))
	}
	status, body = call(t, http.MethodDelete, "/api/v2/expense/expenses/bulk-delete", token, map[string]any{"ids": ids})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "3 expenses deleted successfully", body["message"])

	status, body = call(t, http.MethodDelete, "/api/v2/expense/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, status, body)
}

func TestAdminListsUsers(t *testing.T) {
	suffix := time.Now().UnixNano()
	username := fmt.Sprintf("admin_%d", suffix)
	email := username + "@example.com"
	password := "testpass123!"

	status, body := call(t, http.MethodPost, "/api/v1/signup", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, status, body)
	token := login(t, email, password)

	status, _ = call(t, http.MethodGet, "/api/v1/users", token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	require.NoError(t, promoteUserToAdmin(username))

	status, body = call(t, http.MethodGet, "/api/v1/users?limit=100", token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.NotEmpty(t, body["users"])

	status, _ = call(t, http.MethodGet, "/api/v2/expense/getall", token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := call(t, http.MethodPost, "/api/v1/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func call(t *testing.T, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return send(t, req)
}

func uploadCSV(t *testing.T, token, filename, content string) []any {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v2/expense/bulk-upload", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	status, resp := send(t, req)
	require.Equal(t, http.StatusCreated, status, resp)
	return resp["insertedRecords"].([]any)
}

func send(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &body), string(data))
	}
	return resp.StatusCode, body
}

func promoteUserToAdmin(username string) error {
	conn, err := sql.Open("postgres", db.URL(config.LoadConfig()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = conn.ExecContext(ctx, "UPDATE users SET role = 'admin', updated_at = NOW() WHERE username = $1", username)
	return err
}

func setTestEnv(root string) {
	_ = os.Setenv("ENV", "test")
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "expense")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "expense_db")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("UPLOAD_BACKEND", "local")
	_ = os.Setenv("UPLOAD_DIR", filepath.Join(os.TempDir(), "expense-e2e-uploads"))
	_ = os.Setenv("MQ_BACKEND", "")
	_ = os.Setenv("MIGRATIONS_PATH", filepath.Join(root, "internal", "db", "migrations"))
}

func waitForPostgres(ctx context.Context) error {
	conn, err := sql.Open("postgres", db.URL(config.LoadConfig()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("health check failed: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrator, err := migrate.New("file://"+filepath.Join(root, "internal", "db", "migrations"), db.URL(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
