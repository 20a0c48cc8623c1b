//go:build e2e

package e2e

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entrhq/flowcheck/pkg/scenario"
	"github.com/entrhq/flowcheck/pkg/workflow"
)

func TestFullWorkflow(t *testing.T) {
	fx, err := workflow.LoadFixture()
	require.NoError(t, err)

	open := workflow.BrowserOpener(launcher, cfg.PageOptions())
	runScenarios(t, workflow.Scenarios(cfg.JourneyConfig(), fx, open)...)
}

func TestLogin(t *testing.T) {
	journey := cfg.JourneyConfig()
	if journey.Credentials.Username == "" {
		t.Skip("FLOWCHECK_USERNAME is not set")
	}

	runScenarios(t, withSession(scenario.Scenario{
		Name: "Login",
		Steps: []scenario.Step{
			{Name: "Open the login page", Run: func(st *scenario.T) {
				require.NoError(st, pagesOf(st).Login().Navigate(st.Context()))
			}},
			{Name: "Sign in", Run: func(st *scenario.T) {
				require.NoError(st, pagesOf(st).Login().Login(st.Context(), journey.Credentials))
			}},
			{Name: "Verify the signed-in user", Run: func(st *scenario.T) {
				login := pagesOf(st).Login()
				require.NoError(st, login.VerifyLogin(st.Context(), journey.DisplayName))
				name, err := login.DisplayedUsername(st.Context())
				require.NoError(st, err)
				st.Successf("Logged in as: %s", name)
			}},
		},
	}))
}
