package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoscuola/internal/consent/models"
	"autoscuola/pkg/testutil"
)

// Multi-step visits across page loads sharing one stored record.
func TestConsentScenarios(t *testing.T) {
	ctx := context.Background()

	testutil.Given(t, "a returning visitor who declined", func(t *testing.T) {
		store := &fakeStore{value: "declined", ok: true}
		maps := &countingLoader{}
		prompter := &recordingPrompter{}
		visit := func() *Gate {
			g := New(store, WithLoader(models.CapabilityMaps, maps), WithPrompter(prompter))
			_, err := g.EvaluateOnLoad(ctx)
			require.NoError(t, err)
			return g
		}

		testutil.When(t, "the contact page requests the map", func(t *testing.T) {
			g := visit()
			require.NoError(t, g.RequestCapability(ctx, models.CapabilityMaps))

			testutil.Then(t, "the consent control is shown and nothing loads", func(t *testing.T) {
				assert.Equal(t, []models.Capability{models.CapabilityMaps}, prompter.required)
				assert.Zero(t, maps.calls)
				assert.Zero(t, prompter.shown)
			})
		})

		testutil.When(t, "they reopen the banner and accept", func(t *testing.T) {
			g := visit()
			require.NoError(t, g.Reopen(ctx))
			assert.True(t, g.PromptVisible())
			require.NoError(t, g.Accept(ctx))

			testutil.Then(t, "the map loads once and the choice sticks", func(t *testing.T) {
				assert.Equal(t, 1, maps.calls)
				assert.Equal(t, "accepted", store.value)

				next := visit()
				assert.Equal(t, 2, maps.calls, "each page load renders its own map")
				require.NoError(t, next.RequestCapability(ctx, models.CapabilityMaps))
				assert.Equal(t, 2, maps.calls)
			})
		})
	})

	testutil.Given(t, "a first visit", func(t *testing.T) {
		store := &fakeStore{}
		maps := &countingLoader{}
		prompter := &recordingPrompter{}
		g := New(store, WithLoader(models.CapabilityMaps, maps), WithPrompter(prompter))
		_, err := g.EvaluateOnLoad(ctx)
		require.NoError(t, err)

		testutil.When(t, "the map is requested before any decision", func(t *testing.T) {
			require.NoError(t, g.RequestCapability(ctx, models.CapabilityMaps))

			testutil.Then(t, "it waits for the decision", func(t *testing.T) {
				assert.Zero(t, maps.calls)
				assert.Equal(t, []models.Capability{models.CapabilityMaps}, g.Pending())
			})
		})

		testutil.When(t, "they save preferences with maps off", func(t *testing.T) {
			require.NoError(t, g.SavePreferences(ctx, map[models.Capability]bool{models.CapabilityMaps: false}))

			testutil.Then(t, "the queued request is denied", func(t *testing.T) {
				assert.Zero(t, maps.calls)
				assert.Empty(t, g.Pending())
				assert.Contains(t, prompter.required, models.CapabilityMaps)
			})
		})
	})
}
