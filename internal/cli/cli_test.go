package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/fleetfix/internal/auth"
	"github.com/pratik-mahalle/fleetfix/pkg/client"
)

// runCLI executes a fresh command tree against serverURL with a throwaway config file.
func runCLI(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()

	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	cfg := filepath.Join(t.TempDir(), "config.yaml")
	base := []string{"--config", cfg}
	if serverURL != "" {
		base = append(base, "--server", serverURL)
	}
	cmd.SetArgs(append(base, args...))

	err := cmd.Execute()
	return buf.String(), err
}

func envelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
}

func apiError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": msg},
	})
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name:  "plain string",
			pairs: []string{"service=nginx"},
			want:  map[string]interface{}{"service": "nginx"},
		},
		{
			name:  "json typed values",
			pairs: []string{"older_than_days=7", "force=true", "path=/var/log"},
			want:  map[string]interface{}{"older_than_days": float64(7), "force": true, "path": "/var/log"},
		},
		{
			name:  "value containing equals",
			pairs: []string{"arg=a=b"},
			want:  map[string]interface{}{"arg": "a=b"},
		},
		{name: "missing equals", pairs: []string{"nginx"}, wantErr: true},
		{name: "empty key", pairs: []string{"=nginx"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResults(t *testing.T) {
	results, err := parseResults([]string{"a1=success", "a2=failure"}, json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, client.OutcomeFailure, results[1].Outcome)
	assert.JSONEq(t, `{"x":1}`, string(results[0].Payload))

	_, err = parseResults([]string{"a1=done"}, nil)
	assert.Error(t, err)
	_, err = parseResults([]string{"a1"}, nil)
	assert.Error(t, err)
}

func TestActionsCreate(t *testing.T) {
	t.Setenv("FLEETFIX_AUTH_TOKEN", "tok")

	var got client.CreateActionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		envelope(w, http.StatusCreated, client.Action{ID: "a1", Status: client.StatusApproved})
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "actions", "create",
		"--host", "web-01", "--type", "restart-service",
		"-p", "service=nginx", "--origin", "alert", "--origin-ref", "cpu-7",
		"--notify-on-success", "true")
	require.NoError(t, err)
	assert.Contains(t, out, "Action a1 created (APPROVED)")

	assert.Equal(t, "web-01", got.HostID)
	assert.Equal(t, map[string]interface{}{"service": "nginx"}, got.Parameters)
	require.NotNil(t, got.Origin)
	assert.Equal(t, "alert", got.Origin.Kind)
	require.NotNil(t, got.NotifyOnSuccess)
	assert.True(t, *got.NotifyOnSuccess)
}

func TestActionsCreateConflict(t *testing.T) {
	t.Setenv("FLEETFIX_AUTH_TOKEN", "tok")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusConflict, client.CodeConflict, "already in flight")
	}))
	defer srv.Close()

	_, err := runCLI(t, srv.URL, "actions", "create", "--host", "web-01", "--type", "restart-service")
	require.Error(t, err)
	assert.True(t, client.IsConflict(err))
	assert.Contains(t, err.Error(), "already in flight for web-01")
}

func TestActionsListOutput(t *testing.T) {
	t.Setenv("FLEETFIX_AUTH_TOKEN", "tok")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, client.StatusPending, r.URL.Query().Get("status"))
		envelope(w, http.StatusOK, client.Page[client.Action]{
			Items: []client.Action{{ID: "a1", HostID: "web-01", ActionType: "restart-service", Status: client.StatusPending, CreatedAt: time.Now()}},
			Total: 1,
			Limit: 50,
		})
	}))
	defer srv.Close()

	t.Run("table", func(t *testing.T) {
		out, err := runCLI(t, srv.URL, "actions", "list", "--status", "pending")
		require.NoError(t, err)
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "[*] PENDING")
		assert.Contains(t, out, "Showing 1 of 1")
	})

	t.Run("json", func(t *testing.T) {
		out, err := runCLI(t, srv.URL, "-o", "json", "actions", "list", "--status", "PENDING")
		require.NoError(t, err)
		var page client.Page[client.Action]
		require.NoError(t, json.Unmarshal([]byte(out), &page))
		assert.Equal(t, "a1", page.Items[0].ID)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := runCLI(t, srv.URL, "-o", "yaml", "actions", "list", "--status", "PENDING")
		require.NoError(t, err)
		assert.Contains(t, out, "host_id: web-01")
	})
}

func TestActionsSummary(t *testing.T) {
	t.Setenv("FLEETFIX_AUTH_TOKEN", "tok")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/actions/summary", r.URL.Path)
		envelope(w, http.StatusOK, client.Summary{
			Total:  3,
			Counts: map[string]int64{client.StatusPending: 1, client.StatusCompleted: 2},
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "actions", "summary")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	assert.Contains(t, lines[2], client.StatusPending)
	assert.Contains(t, out, "TOTAL")
}

func TestRejectRequiresPending(t *testing.T) {
	t.Setenv("FLEETFIX_AUTH_TOKEN", "tok")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusConflict, client.CodeState, "action is APPROVED")
	}))
	defer srv.Close()

	_, err := runCLI(t, srv.URL, "actions", "reject", "a1", "--reason", "no")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer pending")
}

func TestHostsPause(t *testing.T) {
	t.Setenv("FLEETFIX_AUTH_TOKEN", "tok")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		envelope(w, http.StatusOK, client.Host{ID: "web-01", IsPaused: body["paused"]})
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "hosts", "pause", "web-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Host web-01 paused")

	out, err = runCLI(t, srv.URL, "hosts", "resume", "web-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Host web-01 resumed")
}

func TestMissingToken(t *testing.T) {
	t.Setenv("FLEETFIX_AUTH_TOKEN", "")
	_, err := runCLI(t, "http://127.0.0.1:1", "actions", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no operator token")
}

func TestAgentCheckIn(t *testing.T) {
	t.Setenv("FLEETFIX_AUTH_TOKEN", "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "web-01", r.Header.Get(client.HostIDHeader))
		assert.Equal(t, "Bearer host-secret-0123456789", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(client.CheckInResponse{
			PendingCommands: []client.PendingCommand{{ActionID: "a2", ActionType: "restart-service", Command: "systemctl restart {{service}}", Rendered: "systemctl restart nginx"}},
			ResultsApplied:  1,
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "agent", "checkin",
		"--host", "web-01", "--secret", "host-secret-0123456789", "--result", "a1=success")
	require.NoError(t, err)
	assert.Contains(t, out, "Results applied: 1, ignored: 0")
	assert.Contains(t, out, "systemctl restart nginx")
}

func TestAuthTokenAndWhoami(t *testing.T) {
	out, err := runCLI(t, "", "auth", "token", "--email", "ops@example.com", "--secret", "jwt-secret", "--role", auth.RoleViewer)
	require.NoError(t, err)

	token := strings.TrimSpace(out)
	claims, err := auth.ParseClaims(token, "jwt-secret")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Actor())
	assert.Equal(t, auth.RoleViewer, claims.Role)

	t.Setenv("FLEETFIX_AUTH_TOKEN", token)
	out, err = runCLI(t, "", "auth", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Actor:    ops@example.com")
	assert.Contains(t, out, "Role:     viewer")

	_, err = runCLI(t, "", "auth", "token", "--email", "x@example.com", "--secret", "s", "--role", "admin")
	assert.Error(t, err)
}
