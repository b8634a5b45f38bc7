package plan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formloom/quota/pkg/plan"
)

const catalogYAML = `
plans:
  - id: free
    name: Free
    tier: free
    position: 0
    limits:
      forms: 3
      responses: 100
      storage: 100
      apiCalls: 0
      aiGenerations: 10
      teamMembers: 1
  - id: pro
    name: Pro
    tier: pro
    position: 1
    interval: monthly
    price:
      amount: 2900
      currency: USD
    limits:
      forms: unlimited
      responses: 10000
      storage: 10240
      apiCalls: 10000
      aiGenerations: 500
      teamMembers: 5
`

func TestParseYAML(t *testing.T) {
	t.Parallel()

	t.Run("valid catalog", func(t *testing.T) {
		t.Parallel()

		plans, err := plan.ParseYAML([]byte(catalogYAML))
		require.NoError(t, err)
		require.Len(t, plans, 2)

		c, err := plan.NewCatalog(plans...)
		require.NoError(t, err)

		pro, err := c.Get("pro")
		require.NoError(t, err)
		assert.True(t, pro.IsUnlimited(plan.ActionForms))
		assert.Equal(t, plan.BillingIntervalMonthly, pro.Interval)
		assert.Equal(t, int64(2900), pro.Price.Amount)

		free, _ := c.Get("free")
		assert.Equal(t, plan.BillingIntervalNone, free.Interval)
	})

	t.Run("unknown action name", func(t *testing.T) {
		t.Parallel()

		_, err := plan.ParseYAML([]byte(`
plans:
  - id: free
    limits:
      formz: 3
`))
		assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)
	})

	t.Run("non numeric limit", func(t *testing.T) {
		t.Parallel()

		_, err := plan.ParseYAML([]byte(`
plans:
  - id: free
    limits:
      forms: lots
`))
		assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)
	})
}

func TestYAMLSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

	c, err := plan.LoadCatalog(context.Background(), plan.NewYAMLSource(path))
	require.NoError(t, err)
	assert.Equal(t, "free", c.Default().ID)

	_, err = plan.LoadCatalog(context.Background(), plan.NewYAMLSource(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.ErrorIs(t, err, plan.ErrFailedToLoadPlans)
}
