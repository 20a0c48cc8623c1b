package locator_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/flowcheck/pkg/locator"
	"github.com/entrhq/flowcheck/pkg/locator/locatortest"
	"github.com/entrhq/flowcheck/pkg/wait"
)

func newLocator(doc *locatortest.Document, c locator.Criteria) *locator.Locator {
	return locator.New(doc, c, locator.WithClock(wait.NewFakeClock()))
}

func TestWaitUntil_AlreadySatisfiedSkipsEngineWait(t *testing.T) {
	doc := locatortest.NewDocument()
	c := locator.CSS("input#LogOnUserName")
	doc.El(c).Show()

	for _, state := range []locator.State{locator.StateVisible, locator.StateAttached} {
		require.NoError(t, newLocator(doc, c).WaitUntil(context.Background(), state, time.Second))
	}
	assert.Zero(t, doc.El(c).Waits())

	gone := locator.CSS(".spinner")
	require.NoError(t, newLocator(doc, gone).WaitUntil(context.Background(), locator.StateDetached, time.Second))
	assert.Zero(t, doc.El(gone).Waits())
}

func TestWaitUntil_DelegatesToEngine(t *testing.T) {
	doc := locatortest.NewDocument()
	c := locator.RoleExact("button", "Go")
	doc.El(c).AppearOnWait()

	require.NoError(t, newLocator(doc, c).WaitUntil(context.Background(), locator.StateVisible, time.Second))
	assert.Equal(t, 1, doc.El(c).Waits())
}

func TestWaitUntil_TimeoutError(t *testing.T) {
	doc := locatortest.NewDocument()
	c := locator.CSS("#missing")

	err := newLocator(doc, c).WaitUntil(context.Background(), locator.StateVisible, 2*time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, locator.ErrLocatorTimeout)
	assert.ErrorIs(t, err, locator.ErrDeadline)

	var te *locator.TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, locator.StateVisible, te.State)
	assert.Equal(t, 2*time.Second, te.Timeout)
	assert.Equal(t, c.String(), te.Criteria.String())
	assert.Contains(t, te.Error(), "#missing")
}

func TestWaitUntil_PolledStates(t *testing.T) {
	doc := locatortest.NewDocument()
	c := locator.CSS(`button[title="Move Selected Right"]`)
	doc.El(c).Show().SetEnabled(false)

	err := newLocator(doc, c).WaitUntil(context.Background(), locator.StateEnabled, time.Second)
	assert.ErrorIs(t, err, locator.ErrLocatorTimeout)
	assert.Zero(t, doc.El(c).Waits(), "polled states never use the engine wait")

	doc.El(c).SetEnabled(true)
	assert.NoError(t, newLocator(doc, c).WaitUntil(context.Background(), locator.StateEnabled, time.Second))
}

func TestWaitUntil_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newLocator(locatortest.NewDocument(), locator.CSS("a")).WaitUntil(ctx, locator.StateVisible, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClick(t *testing.T) {
	t.Run("waits for visible", func(t *testing.T) {
		doc := locatortest.NewDocument()
		c := locator.CSS("#hidden")
		doc.El(c).Hide()

		err := newLocator(doc, c).Click(context.Background(), locator.ClickOptions{Timeout: time.Second})

		assert.ErrorIs(t, err, locator.ErrLocatorTimeout)
		assert.Zero(t, doc.El(c).Clicks())
	})

	t.Run("forced click only needs attached", func(t *testing.T) {
		doc := locatortest.NewDocument()
		c := locator.CSS("#hidden")
		doc.El(c).Hide()

		opts := locator.ClickOptions{Force: true, Modifiers: []locator.Modifier{locator.ModifierShift}}
		require.NoError(t, newLocator(doc, c).Click(context.Background(), opts))

		assert.Equal(t, 1, doc.El(c).Clicks())
		assert.Equal(t, []locator.Modifier{locator.ModifierShift}, doc.El(c).LastClick().Modifiers)
		assert.Equal(t, locator.DefaultTimeout, doc.El(c).LastClick().Timeout)
	})

	t.Run("engine error is wrapped", func(t *testing.T) {
		doc := locatortest.NewDocument()
		c := locator.CSS("#b")
		boom := errors.New("element is not stable")
		doc.El(c).Show().FailClick(boom)

		err := newLocator(doc, c).Click(context.Background(), locator.ClickOptions{})
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, locator.ErrLocatorTimeout)
	})
}

func TestFillAndInnerText(t *testing.T) {
	doc := locatortest.NewDocument()
	input := locator.CSS("input#Input_Password")
	doc.El(input).Show()

	require.NoError(t, newLocator(doc, input).Fill(context.Background(), "secret", time.Second))
	assert.Equal(t, "secret", doc.El(input).Value())

	label := locator.CSS("#userInfoMenus .k-button-text")
	doc.El(label).Show().SetText("Autouser3 Autouser3")
	text, err := newLocator(doc, label).InnerText(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Autouser3 Autouser3", text)
}

func TestCountNeverBlocks(t *testing.T) {
	doc := locatortest.NewDocument()
	rows := locator.CSS("tbody tr")

	n, err := newLocator(doc, rows).Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	doc.El(rows).SetCount(7)
	n, err = newLocator(doc, rows).Count()
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Zero(t, doc.El(rows).Waits())
}

func TestIsVisible_TimeoutIsFalse(t *testing.T) {
	doc := locatortest.NewDocument()
	c := locator.Role("link", "Continue")

	visible, err := newLocator(doc, c).IsVisible(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, visible)

	doc.El(c).Show()
	visible, err = newLocator(doc, c).IsVisible(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, visible)
}

func TestExpectations(t *testing.T) {
	doc := locatortest.NewDocument()
	box := locator.CSS(`input[type="checkbox"][aria-label="Select All"]`)
	doc.El(box).Show()
	l := newLocator(doc, box)

	err := l.ExpectChecked(context.Background(), time.Second)
	assert.ErrorIs(t, err, locator.ErrLocatorTimeout)

	require.NoError(t, l.Check(context.Background(), time.Second))
	assert.NoError(t, l.ExpectChecked(context.Background(), time.Second))
	assert.NoError(t, l.ExpectVisible(context.Background(), time.Second))
	assert.NoError(t, l.ExpectEnabled(context.Background(), time.Second))
}

func TestDerivedLocatorsResolveIndependently(t *testing.T) {
	doc := locatortest.NewDocument()
	rows := newLocator(doc, locator.CSS(`tbody tr[role="row"]`))
	matching := rows.Filter("As fears of a nuclear apocalypse")

	doc.El(matching.Criteria()).SetCount(3)

	n, err := matching.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = rows.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCriteriaString(t *testing.T) {
	tests := []struct {
		name     string
		criteria locator.Criteria
		want     string
	}{
		{"css", locator.CSS("input#docNumInput"), "css=input#docNumInput"},
		{"xpath", locator.XPath(`//button[@id="maButton-Next"]`), `xpath=//button[@id="maButton-Next"]`},
		{"role substring", locator.Role("link", "Continue"), `role=link[name="Continue"]`},
		{"role exact", locator.RoleExact("button", "Go"), `role=button[name="Go" exact]`},
		{"role pattern", locator.RolePattern("listitem", regexp.MustCompile("Annotation Mode")), "role=listitem[name=/Annotation Mode/]"},
		{"text exact", locator.Text("Primary", true), `text="Primary" exact`},
		{"title", locator.Title("Select Annotation Set"), `title="Select Annotation Set"`},
		{"has text", locator.CSS("th span.k-column-title").WithText("LT FIELD1"), `css=th span.k-column-title[has-text="LT FIELD1"]`},
		{"chain", locator.Role("link", "Records").First(), `role=link[name="Records"] >> first`},
		{"descend nth", locator.CSS("tbody").Descend("tr").Nth(2), "css=tbody >> css=tr >> nth=2"},
		{"filter", locator.CSS("tbody tr").Filter("x"), `css=tbody tr >> has-text="x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.String())
		})
	}
}

func TestCriteriaRefinementDoesNotAlias(t *testing.T) {
	base := locator.CSS("tbody tr").Filter("a")
	first := base.First()
	nth := base.Nth(1)

	assert.Equal(t, `css=tbody tr >> has-text="a" >> first`, first.String())
	assert.Equal(t, `css=tbody tr >> has-text="a" >> nth=1`, nth.String())
}

func TestCriteriaValidate(t *testing.T) {
	assert.NoError(t, locator.CSS("a").Validate())
	assert.Error(t, locator.CSS("").Validate())
	assert.Error(t, locator.CSS("a").Descend("").Validate())
	assert.Error(t, locator.CSS("a").Nth(-1).Validate())
}
