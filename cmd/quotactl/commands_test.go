package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formloom/quota/pkg/config"
	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/quota"
)

func baseEnv() map[string]string {
	return map[string]string{
		"QUOTA_USAGE_BACKEND":        "memory",
		"QUOTA_SUBSCRIPTION_BACKEND": "memory",
		"LOG_LEVEL":                  "error",
	}
}

func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(config.WithEnvironment(env))
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPlansCommand(t *testing.T) {
	t.Parallel()

	t.Run("table", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, baseEnv(), "plans")
		require.NoError(t, err)
		assert.Contains(t, out, "FORMS")
		assert.Contains(t, out, "free")
		assert.Contains(t, out, "unlimited")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, baseEnv(), "plans", "-o", "json")
		require.NoError(t, err)

		var plans []plan.Plan
		require.NoError(t, json.Unmarshal([]byte(out), &plans))
		require.Len(t, plans, 2)
		assert.Equal(t, "free", plans[0].ID)
		assert.Equal(t, int64(3), plans[0].Limits[plan.ActionForms])
	})

	t.Run("yaml catalog", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - id: starter
    name: Starter
    tier: free
    position: 0
    limits:
      forms: 1
      responses: 10
      storage: 10
      apiCalls: 0
      aiGenerations: 0
      teamMembers: 1
`), 0o600))

		env := baseEnv()
		env["QUOTA_PLANS_FILE"] = path
		out, err := execute(t, env, "plans", "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"starter"`)
	})

	t.Run("invalid output", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, baseEnv(), "plans", "-o", "xml")
		require.Error(t, err)
	})
}

func TestCheckCommand(t *testing.T) {
	t.Parallel()

	t.Run("allowed", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, baseEnv(), "check", "t1", "forms")
		require.NoError(t, err)
		assert.Contains(t, out, "ALLOWED")
		assert.Contains(t, out, "true")
	})

	t.Run("denied exits with quota error", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, baseEnv(), "check", "t1", "forms", "4", "-o", "json")
		require.ErrorIs(t, err, quota.ErrQuotaExceeded)

		var d quota.Decision
		require.NoError(t, json.Unmarshal([]byte(out), &d))
		assert.False(t, d.Allowed)
		assert.Equal(t, int64(3), d.Limit)
		assert.Equal(t, "Free plan limit of 3 forms would be exceeded (0 used, 4 requested)", d.Reason)
	})

	t.Run("bad amount", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, baseEnv(), "check", "t1", "forms", "zero")
		require.ErrorIs(t, err, quota.ErrInvalidRequest)
	})

	t.Run("unknown action", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, baseEnv(), "check", "t1", "widgets")
		require.ErrorIs(t, err, plan.ErrUnknownAction)
	})
}

func TestRecordAndStatusCommands(t *testing.T) {
	t.Parallel()

	out, err := execute(t, baseEnv(), "record", "t1", "responses", "5")
	require.NoError(t, err)
	assert.Equal(t, "recorded 5 responses for t1\n", out)

	_, err = execute(t, baseEnv(), "record", "t1", "forms", "4", "--enforce")
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)

	out, err = execute(t, baseEnv(), "status", "t1", "-o", "json")
	require.NoError(t, err)
	var statuses []quota.Status
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, len(plan.Actions()))
	assert.Equal(t, plan.ActionForms, statuses[0].Action)

	out, err = execute(t, baseEnv(), "status", "t1", "aiGenerations")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "aiGenerations")
}

func TestResetCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, baseEnv(), "reset", "t1", "forms")
	require.NoError(t, err)
	assert.Equal(t, "reset forms for t1\n", out)
}

func TestRecommendCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, baseEnv(), "recommend", "forms=10", "responses=50")
	require.NoError(t, err)
	assert.Contains(t, out, "pro")

	out, err = execute(t, baseEnv(), "recommend", "forms=2")
	require.NoError(t, err)
	assert.Contains(t, out, "free")

	out, err = execute(t, baseEnv(), "recommend", "--tenant", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "free")

	_, err = execute(t, baseEnv(), "recommend", "forms")
	require.Error(t, err)
	_, err = execute(t, baseEnv(), "recommend")
	require.Error(t, err)
	_, err = execute(t, baseEnv(), "recommend", "--tenant", "t1", "forms=1")
	require.Error(t, err)
}

func TestSubscriptionCommands(t *testing.T) {
	t.Parallel()

	out, err := execute(t, baseEnv(), "subscription", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, "free")
	assert.Contains(t, out, "active")

	out, err = execute(t, baseEnv(), "set-plan", "t1", "pro")
	require.NoError(t, err)
	assert.Equal(t, "t1 moved to pro\n", out)

	_, err = execute(t, baseEnv(), "set-plan", "t1", "enterprise")
	require.ErrorIs(t, err, quota.ErrUnknownPlan)
}

func TestBackendValidation(t *testing.T) {
	t.Parallel()

	env := baseEnv()
	env["QUOTA_SUBSCRIPTION_BACKEND"] = "redis"
	_, err := execute(t, env, "status", "t1")
	require.ErrorIs(t, err, errUnsupportedBackend)

	env = baseEnv()
	env["QUOTA_USAGE_BACKEND"] = "cassandra"
	_, err = execute(t, env, "check", "t1", "forms")
	require.ErrorIs(t, err, errUnsupportedBackend)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	t.Parallel()

	_, err := execute(t, baseEnv(), "migrate")
	require.ErrorIs(t, err, errNoPostgres)
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, baseEnv(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "quotactl "))
}

func TestAppRouter(t *testing.T) {
	t.Parallel()

	var cfg appConfig
	env := baseEnv()
	env["QUOTA_METRICS_ADDR"] = ""
	require.NoError(t, config.Load(&cfg, config.WithEnvironment(env)))

	a, err := newApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv := httptest.NewServer(a.router())
	t.Cleanup(srv.Close)

	get := func(path string, header map[string]string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		for k, v := range header {
			req.Header.Set(k, v)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusOK, get("/healthz", nil).StatusCode)
	assert.Equal(t, http.StatusOK, get("/readyz", nil).StatusCode)
	assert.Equal(t, http.StatusOK, get("/v1/plans", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get("/v1/quota", nil).StatusCode)
	assert.Equal(t, http.StatusOK, get("/v1/quota/forms", map[string]string{"X-Tenant-ID": "t1"}).StatusCode)

	metrics := get("/metrics", nil)
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
	body := new(bytes.Buffer)
	_, err = body.ReadFrom(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "go_goroutines")
}

func TestAppIdentityWithTenantDomain(t *testing.T) {
	t.Parallel()

	var cfg appConfig
	env := baseEnv()
	env["QUOTA_TENANT_DOMAIN"] = "forms.example.com"
	require.NoError(t, config.Load(&cfg, config.WithEnvironment(env)))

	a, err := newApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	req := httptest.NewRequest(http.MethodGet, "http://acme.forms.example.com/v1/quota", nil)
	id, err := a.identity().Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "acme", id)
}
