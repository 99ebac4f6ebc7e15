package services

import (
	"context"
	"hash/fnv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/models"
	"github.com/paradyne-ai/callcore/pkg/store"
)

func validExperiment() *models.Experiment {
	return &models.Experiment{
		TenantID: "t-1",
		AgentID:  "ag-1",
		Name:     "greeting-test",
		Variants: []models.Variant{
			{Name: "control", Weight: 50, IsControl: true},
			{Name: "friendly", Weight: 50},
		},
	}
}

func TestExperimentService_Create(t *testing.T) {
	ctx := context.Background()

	newService := func() (*ExperimentService, *fakeStore) {
		st := newFakeStore()
		st.agents["ag-1"] = testProviderAgent(models.ProviderB)
		return NewExperimentService(st), st
	}

	t.Run("creates with draft default", func(t *testing.T) {
		svc, st := newService()

		created, err := svc.Create(ctx, validExperiment())
		require.NoError(t, err)
		assert.Equal(t, "exp-1", created.ID)
		assert.Equal(t, models.ExperimentDraft, created.Status)
		require.Len(t, st.experiments, 1)
	})

	t.Run("keeps explicit status", func(t *testing.T) {
		svc, _ := newService()

		exp := validExperiment()
		exp.Status = models.ExperimentRunning
		created, err := svc.Create(ctx, exp)
		require.NoError(t, err)
		assert.Equal(t, models.ExperimentRunning, created.Status)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(exp *models.Experiment)
		}{
			{"missing tenant_id", func(exp *models.Experiment) { exp.TenantID = "" }},
			{"missing agent_id", func(exp *models.Experiment) { exp.AgentID = "" }},
			{"missing name", func(exp *models.Experiment) { exp.Name = "" }},
			{"unknown status", func(exp *models.Experiment) { exp.Status = "archived" }},
			{"single variant", func(exp *models.Experiment) {
				exp.Variants = []models.Variant{{Name: "control", Weight: 100, IsControl: true}}
			}},
			{"unnamed variant", func(exp *models.Experiment) { exp.Variants[1].Name = "" }},
			{"zero weight", func(exp *models.Experiment) { exp.Variants[1].Weight = 0 }},
			{"weight over 100", func(exp *models.Experiment) { exp.Variants[1].Weight = 101 }},
			{"weights do not sum to 100", func(exp *models.Experiment) { exp.Variants[1].Weight = 40 }},
			{"no control", func(exp *models.Experiment) { exp.Variants[0].IsControl = false }},
			{"two controls", func(exp *models.Experiment) { exp.Variants[1].IsControl = true }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, st := newService()

				exp := validExperiment()
				tt.mutate(exp)
				_, err := svc.Create(ctx, exp)
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				assert.Empty(t, st.experiments)
			})
		}
	})

	t.Run("unknown agent", func(t *testing.T) {
		svc, _ := newService()

		exp := validExperiment()
		exp.AgentID = "ag-missing"
		_, err := svc.Create(ctx, exp)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cross-tenant agent reads as not found", func(t *testing.T) {
		svc, st := newService()
		st.agents["ag-other"] = &models.Agent{ID: "ag-other", TenantID: "t-other", Provider: models.ProviderB}

		exp := validExperiment()
		exp.AgentID = "ag-other"
		_, err := svc.Create(ctx, exp)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate running experiment", func(t *testing.T) {
		svc, st := newService()
		st.createExperimentErr = store.ErrDuplicate

		exp := validExperiment()
		exp.Status = models.ExperimentRunning
		_, err := svc.Create(ctx, exp)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestExperimentService_SetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("updates status", func(t *testing.T) {
		st := newFakeStore()
		svc := NewExperimentService(st)

		require.NoError(t, svc.SetStatus(ctx, "exp-1", models.ExperimentPaused))
		require.Len(t, st.statusChanges, 1)
		assert.Equal(t, "exp-1", st.statusChanges[0].id)
		assert.Equal(t, models.ExperimentPaused, st.statusChanges[0].status)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		svc := NewExperimentService(newFakeStore())

		err := svc.SetStatus(ctx, "exp-1", "archived")
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("second running experiment for agent", func(t *testing.T) {
		st := newFakeStore()
		st.updateStatusErr = store.ErrDuplicate
		svc := NewExperimentService(st)

		err := svc.SetStatus(ctx, "exp-2", models.ExperimentRunning)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("unknown experiment", func(t *testing.T) {
		st := newFakeStore()
		st.updateStatusErr = store.ErrNotFound
		svc := NewExperimentService(st)

		err := svc.SetStatus(ctx, "exp-missing", models.ExperimentPaused)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestVariantIdentity(t *testing.T) {
	at := time.Date(2026, 6, 8, 16, 0, 0, 0, time.UTC)

	t.Run("scheduled call id wins", func(t *testing.T) {
		assert.Equal(t, "sc-1", VariantIdentity("sc-1", "+14155550123", &at))
	})

	t.Run("phone plus schedule instant", func(t *testing.T) {
		assert.Equal(t, "+14155550123|2026-06-08T16:00:00Z", VariantIdentity("", "+14155550123", &at))
	})

	t.Run("schedule instant normalized to UTC", func(t *testing.T) {
		pacific, err := time.LoadLocation("America/Los_Angeles")
		require.NoError(t, err)
		local := at.In(pacific)
		assert.Equal(t, VariantIdentity("", "+14155550123", &at), VariantIdentity("", "+14155550123", &local))
	})

	t.Run("phone only", func(t *testing.T) {
		assert.Equal(t, "+14155550123", VariantIdentity("", "+14155550123", nil))
	})
}

func TestPickVariant(t *testing.T) {
	bucketOf := func(identity string) int {
		h := fnv.New32a()
		h.Write([]byte(identity))
		return int(h.Sum32() % 100)
	}

	exp := &models.Experiment{
		ID:     "exp-1",
		Status: models.ExperimentRunning,
		Variants: []models.Variant{
			{Name: "control", Weight: 60, IsControl: true},
			{Name: "friendly", Weight: 40},
		},
	}

	t.Run("walks cumulative weights", func(t *testing.T) {
		// Probe identities until both arms are observed, checking each pick
		// against the hash bucket.
		seen := map[string]bool{}
		for _, identity := range []string{"sc-1", "sc-2", "sc-3", "sc-4", "sc-5", "sc-6", "sc-7", "sc-8"} {
			v := PickVariant(exp, identity)
			require.NotNil(t, v)
			if bucketOf(identity) < 60 {
				assert.Equal(t, "control", v.Name, "identity %q", identity)
			} else {
				assert.Equal(t, "friendly", v.Name, "identity %q", identity)
			}
			seen[v.Name] = true
		}
		assert.Len(t, seen, 2)
	})

	t.Run("deterministic per identity", func(t *testing.T) {
		first := PickVariant(exp, "sc-42")
		for i := 0; i < 10; i++ {
			assert.Equal(t, first.Name, PickVariant(exp, "sc-42").Name)
		}
	})

	t.Run("single full-weight variant always selected", func(t *testing.T) {
		solo := &models.Experiment{
			Variants: []models.Variant{{Name: "only", Weight: 100, IsControl: true}},
		}
		for _, identity := range []string{"a", "b", "c"} {
			v := PickVariant(solo, identity)
			require.NotNil(t, v)
			assert.Equal(t, "only", v.Name)
		}
	})

	t.Run("nil or empty experiment", func(t *testing.T) {
		assert.Nil(t, PickVariant(nil, "sc-1"))
		assert.Nil(t, PickVariant(&models.Experiment{}, "sc-1"))
	})
}
