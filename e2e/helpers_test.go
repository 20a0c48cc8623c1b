//go:build e2e

package e2e

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entrhq/flowcheck/pkg/browser"
	"github.com/entrhq/flowcheck/pkg/locator"
	"github.com/entrhq/flowcheck/pkg/pages"
	"github.com/entrhq/flowcheck/pkg/scenario"
)

const (
	sessionKey = "e2e.session"
	pagesKey   = "e2e.pages"
)

// runScenarios runs scenarios through the shared reporter and fails t for
// every scenario that fails. Scenarios filtered out by -grep are skipped.
func runScenarios(t *testing.T, scenarios ...scenario.Scenario) {
	t.Helper()

	res, err := scenario.Run(testContext(t), scenarios, scenario.Options{
		Filter:   *grep,
		Reporter: reporter,
		Log:      log.With("scenario"),
		RunID:    log.RunID(),
	})
	if errors.Is(err, scenario.ErrNoScenarios) {
		t.Skip(err)
	}
	require.NoError(t, err)

	resultsMu.Lock()
	results.Scenarios = append(results.Scenarios, res.Scenarios...)
	resultsMu.Unlock()

	for _, sc := range res.Scenarios {
		if sc.Status == scenario.StatusFailed {
			t.Errorf("%s: %s", sc.Name, sc.Error)
		}
	}
}

// withSession opens a fresh browser session before sc's own setup and closes
// it after sc's teardown. Steps reach it through documentOf and pagesOf.
func withSession(sc scenario.Scenario) scenario.Scenario {
	setup, teardown := sc.Setup, sc.Teardown

	sc.Setup = func(st *scenario.T) {
		s, err := launcher.NewSession(st.Name())
		require.NoError(st, err, "open browser session")
		opts := cfg.PageOptions()
		opts.Log = st
		st.Set(sessionKey, s)
		st.Set(pagesKey, pages.NewRegistry(s.Document(), opts))
		if setup != nil {
			setup(st)
		}
	}
	sc.Teardown = func(st *scenario.T) {
		defer closeSession(st)
		if teardown != nil {
			teardown(st)
		}
	}
	return sc
}

func closeSession(st *scenario.T) {
	s, ok := st.Value(sessionKey).(*browser.Session)
	if !ok {
		return
	}
	if err := s.Close(); err != nil {
		st.Warnf("close browser session: %v", err)
		return
	}
	if path := s.TracePath(); path != "" {
		st.Infof("Trace saved to %s", path)
	}
}

// documentOf returns the current scenario's page.
func documentOf(st *scenario.T) locator.Document {
	s, ok := st.Value(sessionKey).(*browser.Session)
	require.True(st, ok, "scenario has no browser session; wrap it with withSession")
	return s.Document()
}

// pagesOf returns the page objects bound to the current scenario's page.
func pagesOf(st *scenario.T) *pages.Registry {
	r, ok := st.Value(pagesKey).(*pages.Registry)
	require.True(st, ok, "scenario has no browser session; wrap it with withSession")
	return r
}

func baseURL() string {
	return cfg.BaseURL
}
