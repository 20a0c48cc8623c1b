package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/flowcheck/pkg/locator"
	"github.com/entrhq/flowcheck/pkg/locator/locatortest"
	"github.com/entrhq/flowcheck/pkg/wait"
)

type recordingLogger struct {
	mu    sync.Mutex
	infos []string
	warns []string
}

func (l *recordingLogger) Infof(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

type fixture struct {
	doc   *locatortest.Document
	clock *wait.FakeClock
	log   *recordingLogger
	reg   *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		doc:   locatortest.NewDocument(),
		clock: wait.NewFakeClock(),
		log:   &recordingLogger{},
	}
	f.reg = NewRegistry(f.doc, Options{BaseURL: "https://app.example.test/", Clock: f.clock, Log: f.log})
	return f
}

func (f *fixture) show(cs ...locator.Criteria) {
	for _, c := range cs {
		f.doc.El(c).Show()
	}
}

func TestRegistryReturnsStableInstances(t *testing.T) {
	f := newFixture(t)

	assert.Same(t, f.reg.Login(), f.reg.Login())
	assert.Same(t, f.reg.Projects(), f.reg.Projects())
	assert.Same(t, f.reg.Fields(), f.reg.Fields())
	assert.Same(t, f.reg.Records(), f.reg.Records())
	assert.Same(t, f.reg.DocumentView(), f.reg.DocumentView())
	assert.Same(t, f.reg.Annotations(), f.reg.Annotations())
}

func TestOptionsLoginURL(t *testing.T) {
	assert.Equal(t, "https://app.example.test/account/signin?ReturnUrl=%2F",
		Options{BaseURL: "https://app.example.test/", LoginPath: DefaultLoginPath}.LoginURL())
}

func TestLoginPage_Navigate(t *testing.T) {
	f := newFixture(t)
	f.show(loginUsername)

	require.NoError(t, f.reg.Login().Navigate(context.Background()))
	assert.Equal(t, []string{"https://app.example.test/account/signin?ReturnUrl=%2F"}, f.doc.Gotos())
}

func TestLoginPage_Navigate_UsernameNeverShown(t *testing.T) {
	f := newFixture(t)

	err := f.reg.Login().Navigate(context.Background())
	assert.ErrorIs(t, err, locator.ErrLocatorTimeout)
}

func TestLoginPage_Login(t *testing.T) {
	t.Run("without continue prompt", func(t *testing.T) {
		f := newFixture(t)
		f.show(loginUsername, loginNext, loginPassword, loginSubmit, loginUserNameMenu)

		err := f.reg.Login().Login(context.Background(), Credentials{Username: "autouser3", Password: "pw"})

		require.NoError(t, err)
		assert.Equal(t, "autouser3", f.doc.El(loginUsername).Value())
		assert.Equal(t, "pw", f.doc.El(loginPassword).Value())
		assert.Zero(t, f.doc.El(loginContinue).Clicks())
		assert.Equal(t, []string{
			"fill " + loginUsername.String(),
			"click " + loginNext.String(),
			"fill " + loginPassword.String(),
			"click " + loginSubmit.String(),
		}, f.doc.Log())
	})

	t.Run("dismisses continue prompt", func(t *testing.T) {
		f := newFixture(t)
		f.show(loginUsername, loginNext, loginPassword, loginSubmit, loginUserNameMenu, loginContinue)

		require.NoError(t, f.reg.Login().Login(context.Background(), Credentials{Username: "u", Password: "p"}))
		assert.Equal(t, 1, f.doc.El(loginContinue).Clicks())
		assert.Equal(t, []locator.LoadState{locator.LoadStateNetworkIdle, locator.LoadStateNetworkIdle}, f.doc.LoadStates())
	})

	t.Run("password step fails", func(t *testing.T) {
		f := newFixture(t)
		f.show(loginUsername, loginNext)

		err := f.reg.Login().Login(context.Background(), Credentials{Username: "u", Password: "p"})
		assert.ErrorIs(t, err, locator.ErrLocatorTimeout)
		assert.Zero(t, f.doc.El(loginSubmit).Clicks())
	})
}

func TestLoginPage_VerifyLogin(t *testing.T) {
	t.Run("already shown needs no wait", func(t *testing.T) {
		f := newFixture(t)
		f.doc.El(loginUserNameMenu).Show().SetText(" Autouser3 Autouser3\n")

		require.NoError(t, f.reg.Login().VerifyLogin(context.Background(), "Autouser3 Autouser3"))
		assert.Empty(t, f.clock.Sleeps())
	})

	t.Run("never shown", func(t *testing.T) {
		f := newFixture(t)

		err := f.reg.Login().VerifyLogin(context.Background(), "Autouser3 Autouser3")

		assert.ErrorIs(t, err, ErrNotObserved)
		assert.Len(t, f.clock.Sleeps(), UsernamePolicy.MaxAttempts-1)
		assert.Len(t, f.log.infos, UsernamePolicy.MaxAttempts)
	})

	t.Run("wrong user", func(t *testing.T) {
		f := newFixture(t)
		f.doc.El(loginUserNameMenu).Show().SetText("Someone Else")

		err := f.reg.Login().VerifyLogin(context.Background(), "Autouser3 Autouser3")
		assert.ErrorIs(t, err, ErrNotObserved)
	})
}

func TestProjectsPage_VerifyLoaded(t *testing.T) {
	t.Run("heading mentions projects", func(t *testing.T) {
		f := newFixture(t)
		f.show(projectsHeading)
		f.doc.El(projectsHeading.First()).Show().SetText(" Projects ")

		ok, err := f.reg.Projects().VerifyLoaded(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, f.clock.Slept())
	})

	t.Run("heading never appears", func(t *testing.T) {
		f := newFixture(t)

		ok, err := f.reg.Projects().VerifyLoaded(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, HeadingPolicy.MaxAttempts, f.doc.El(projectsHeading).Waits())
		assert.Equal(t, 3*headingRetryDelay, f.clock.Slept())
	})

	t.Run("other heading is re-read without pausing", func(t *testing.T) {
		f := newFixture(t)
		f.show(projectsHeading)
		f.doc.El(projectsHeading.First()).Show().SetText("Dashboard")

		ok, err := f.reg.Projects().VerifyLoaded(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, f.clock.Slept())
	})
}

func TestProjectsPage_OpenProject(t *testing.T) {
	f := newFixture(t)
	f.show(projectsGoToLink)
	f.doc.SetTitle("QA ACL Resesarch3 - Records")

	require.NoError(t, f.reg.Projects().OpenProject(context.Background(), "QA ACL Resesarch3"))
	assert.Equal(t, 1, f.doc.El(projectsGoToLink).Clicks())
	assert.Equal(t, 7*time.Second, f.clock.Slept())

	ok, err := f.reg.Projects().VerifyProjectOpened(context.Background(), "QA ACL Resesarch3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.reg.Projects().VerifyProjectOpened(context.Background(), "Other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFieldsPage_CreateLimitedTextField(t *testing.T) {
	f := newFixture(t)
	f.show(fieldsLink, fieldsNewButton, fieldsNameInput, fieldsLengthInput, fieldsCreate)

	require.NoError(t, f.reg.Fields().Navigate(context.Background()))
	require.NoError(t, f.reg.Fields().CreateLimitedTextField(context.Background(), "LT FIELD1", 4000))

	assert.Equal(t, "LT FIELD1", f.doc.El(fieldsNameInput).Value())
	assert.Equal(t, "4000", f.doc.El(fieldsLengthInput).Value())
	assert.Equal(t, 1, f.doc.El(fieldsCreate).Clicks())
}

func TestFieldsPage_CreateDisabledButton(t *testing.T) {
	f := newFixture(t)
	f.show(fieldsNewButton, fieldsNameInput, fieldsLengthInput)
	f.doc.El(fieldsCreate).Show().SetEnabled(false)

	err := f.reg.Fields().CreateLimitedTextField(context.Background(), "LT FIELD1", 4000)
	assert.ErrorIs(t, err, locator.ErrLocatorTimeout)
	assert.Zero(t, f.doc.El(fieldsCreate).Clicks())
}

func TestFieldsPage_VerifyFieldCreated(t *testing.T) {
	t.Run("found on a later row", func(t *testing.T) {
		f := newFixture(t)
		f.doc.El(fieldsRows).SetCount(2)
		f.doc.El(fieldsRows.Nth(0)).Show().SetText("Custodian\tText")
		f.doc.El(fieldsRows.Nth(1)).Show().SetText("LT FIELD1\tLimited Text\t4000")

		ok, err := f.reg.Fields().VerifyFieldCreated(context.Background(), "LT FIELD1", FieldPolicy)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []time.Duration{4 * time.Second}, f.clock.Sleeps())
	})

	t.Run("never found", func(t *testing.T) {
		f := newFixture(t)

		ok, err := f.reg.Fields().VerifyFieldCreated(context.Background(), "LT FIELD1", FieldPolicy)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Len(t, f.clock.Sleeps(), FieldPolicy.MaxAttempts)
		assert.Len(t, f.log.infos, FieldPolicy.MaxAttempts-1)
	})
}

func massEditControls() []locator.Criteria {
	return []locator.Criteria{
		recordsMassAction, recordsEditRadio, recordsMassNext, recordsFieldCombo,
		recordsFieldListbox, fieldOption("LT FIELD1"), recordsReplaceText, recordsGoButton,
		recordsConfirmButton,
	}
}

func TestRecordsPage_PerformMassEdit(t *testing.T) {
	f := newFixture(t)
	f.show(massEditControls()...)

	require.NoError(t, f.reg.Records().PerformMassEdit(context.Background(), "LT FIELD1", "As fears of a nuclear apocalypse"))

	assert.Equal(t, "As fears of a nuclear apocalypse", f.doc.El(recordsReplaceText).Value())
	checked, err := f.doc.El(recordsEditRadio).IsChecked()
	require.NoError(t, err)
	assert.True(t, checked)
	assert.Equal(t, []locator.Modifier{locator.ModifierShift}, f.doc.El(recordsConfirmButton).LastClick().Modifiers)
	assert.Equal(t, 1, f.doc.El(fieldOption("LT FIELD1")).Clicks())
}

func TestRecordsPage_PerformMassEdit_FailingTransition(t *testing.T) {
	f := newFixture(t)
	f.show(massEditControls()...)
	f.doc.El(fieldOption("LT FIELD1")).Detach()

	err := f.reg.Records().PerformMassEdit(context.Background(), "LT FIELD1", "text")

	var mee *MassEditError
	require.True(t, errors.As(err, &mee))
	assert.Equal(t, MassEditActionSelected, mee.Reached)
	assert.Equal(t, MassEditFieldChosen, mee.Attempted)
	assert.Equal(t, "LT FIELD1", mee.Field)
	assert.ErrorIs(t, err, locator.ErrLocatorTimeout)
	assert.Zero(t, f.doc.El(recordsGoButton).Clicks())
	assert.Contains(t, err.Error(), "action selected")
}

func TestRecordsPage_OpenSettleTimes(t *testing.T) {
	for _, tt := range []struct {
		refresh bool
		want    time.Duration
	}{{false, recordsSettle}, {true, recordsRefreshSettle}} {
		f := newFixture(t)
		f.show(recordsLink, recordsPrimaryWidget)

		require.NoError(t, f.reg.Records().Open(context.Background(), tt.refresh))
		assert.Equal(t, tt.want, f.clock.Slept())
	}
}

func TestRecordsPage_SelectAllRecords(t *testing.T) {
	f := newFixture(t)
	box := f.doc.El(recordsSelectAll).Show()
	box.OnClick(func() { box.SetChecked(true) })

	require.NoError(t, f.reg.Records().SelectAllRecords(context.Background()))
	assert.True(t, box.LastClick().Force)

	selected, err := f.reg.Records().RecordsSelected(context.Background())
	require.NoError(t, err)
	assert.True(t, selected)
}

func TestRecordsPage_Searches(t *testing.T) {
	f := newFixture(t)
	f.show(recordsSearchInput, locator.Text("179 / 179", false))
	f.doc.El(recordsResultCounter).Show().SetText("179")
	f.doc.El(recordsTotalCounter).Show().SetText(" 179 ")

	queries := []string{"hillary within 'LT FIELD1'", "9849876 within 'LT FIELD1'"}
	require.NoError(t, f.reg.Records().RunSearches(context.Background(), queries, "179 / 179"))
	assert.Equal(t, []string{"Enter", "Enter"}, f.doc.El(recordsSearchInput).Presses())
	assert.Equal(t, queries[1], f.doc.El(recordsSearchInput).Value())

	counts, err := f.reg.Records().SearchCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SearchCounts{Result: 179, Total: 179}, counts)
}

func TestRecordsPage_RunSearchesStopsOnMismatch(t *testing.T) {
	f := newFixture(t)
	f.show(recordsSearchInput)

	err := f.reg.Records().RunSearches(context.Background(), []string{"a", "b"}, "179 / 179")
	assert.ErrorIs(t, err, locator.ErrLocatorTimeout)
	assert.Equal(t, []string{"Enter"}, f.doc.El(recordsSearchInput).Presses())
}

func TestRecordsPage_ColumnsAndRows(t *testing.T) {
	f := newFixture(t)
	f.show(recordsCustomizeView, locator.Role("gridcell", "LT FIELD1"), recordsMoveRight, recordsMoveTop, recordsApply,
		columnHeader("LT FIELD1"))
	f.doc.El(locator.CSS(`tbody tr[role="row"]`).Filter("As fears")).SetCount(25)

	require.NoError(t, f.reg.Records().CustomizeViewToShowField(context.Background(), "LT FIELD1"))
	assert.Equal(t, 1, f.doc.El(recordsApply).Clicks())

	visible, err := f.reg.Records().FieldColumnVisible(context.Background(), "LT FIELD1")
	require.NoError(t, err)
	assert.True(t, visible)

	n, err := f.reg.Records().CountRowsContaining(context.Background(), "As fears")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	visible, err = f.reg.Records().FieldColumnVisible(context.Background(), "Other")
	assert.Error(t, err)
	assert.False(t, visible)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"179", 179, false},
		{" 179\n", 179, false},
		{"1,024 records", 1024, false},
		{"", 0, true},
		{"n/a", 0, true},
	}
	for _, tt := range tests {
		got, err := parseCount(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestRecordURLPattern(t *testing.T) {
	re := RecordURLPattern("165")

	assert.True(t, re.MatchString("https://app/projects/12/records/165"))
	assert.True(t, re.MatchString("https://app/projects/12/records/165?view=text"))
	assert.True(t, re.MatchString("https://app/projects/12/RECORDS/165"))
	assert.False(t, re.MatchString("https://app/projects/12/records/1650"))
	assert.False(t, re.MatchString("https://app/projects/12/records/165/next"))
	assert.False(t, RecordURLPattern("1.5").MatchString("/records/145"))
}

func TestDocumentViewPage(t *testing.T) {
	f := newFixture(t)
	f.show(viewerOpenButton, viewerText, viewerRecord)
	hits := viewerText.Descend("span").Filter("Hillary")
	f.doc.El(hits).SetCount(3)
	f.doc.El(hits.First()).Show()

	dv := f.reg.DocumentView()
	require.NoError(t, dv.Navigate(context.Background()))

	n, err := dv.VerifyHighlights(context.Background(), "Hillary")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, f.doc.Log(), "scroll "+hits.First().String())

	f.doc.SetURL("https://app/projects/7/records/1")
	require.NoError(t, dv.NavigateToRecord(context.Background(), "165"))
	assert.Equal(t, "165", f.doc.El(viewerRecord).Value())
	assert.Equal(t, []string{"Enter"}, f.doc.El(viewerRecord).Presses())

	ok, err := dv.VerifyRecordInURL(context.Background(), "165")
	assert.ErrorIs(t, err, ErrNotObserved)
	assert.False(t, ok)

	f.doc.SetURL("https://app/projects/7/records/165?tab=text")
	ok, err = dv.VerifyRecordInURL(context.Background(), "165")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDocumentViewPage_NoHighlights(t *testing.T) {
	f := newFixture(t)
	f.show(viewerText)

	n, err := f.reg.DocumentView().VerifyHighlights(context.Background(), "Hillary")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.log.infos, HighlightPolicy.MaxAttempts)
}

func TestDocumentViewPage_HighlightsInField(t *testing.T) {
	f := newFixture(t)
	f.doc.El(viewerText).Show().SetHTML(`
		<div class="field"><label>LT FIELD1</label><p>Former <span class="hit">Hillary</span> aide</p></div>
		<div class="field"><label>Body</label><p><span class="hit">Hillary</span> said</p></div>`)

	ok, err := f.reg.DocumentView().HighlightsInField(context.Background(), "Hillary", "LT FIELD1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, f.log.warns, 1)
	assert.Contains(t, f.log.warns[0], "Highlight 1")
}

func TestAnalyzeHighlights(t *testing.T) {
	tests := []struct {
		name      string
		markup    string
		wantHits  int
		wantField int
	}{
		{
			name:      "all in field",
			markup:    `<div>LT FIELD1<div><span>Hillary</span> and <span>Hillary Clinton</span></div></div>`,
			wantHits:  2,
			wantField: 2,
		},
		{
			name:      "nested spans count once",
			markup:    `<div>LT FIELD1 <span class="line"><span class="hit">Hillary</span></span></div>`,
			wantHits:  1,
			wantField: 1,
		},
		{
			name:     "outside field",
			markup:   `<div>Body <span>Hillary</span></div>`,
			wantHits: 1,
		},
		{
			name:   "no hits",
			markup: `<div>LT FIELD1 <span>nothing</span></div>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := analyzeHighlights(tt.markup, "Hillary", "LT FIELD1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantHits, report.Hits)
			assert.Equal(t, tt.wantField, report.InField)
			assert.Equal(t, tt.wantHits > 0 && tt.wantHits == tt.wantField, report.AllInField())
		})
	}

	_, err := analyzeHighlights("<div></div>", "", "LT FIELD1")
	assert.Error(t, err)
}

func TestAnnotationPage_SoftFails(t *testing.T) {
	f := newFixture(t)

	ok := f.reg.Annotations().CreateAnnotationSet(context.Background(), "Testannotation")

	assert.False(t, ok)
	assert.Len(t, f.log.warns, 5, "every step runs and warns")
	for _, w := range f.log.warns {
		assert.True(t, strings.HasPrefix(w, "Failed to "), w)
	}
	assert.Contains(t, f.log.infos, "Annotation set 'Testannotation' creation attempted")
}

func TestAnnotationPage_CreatesSet(t *testing.T) {
	f := newFixture(t)
	f.show(annotationTab, annotationDropdown, annotationNewSet, annotationNameInput, annotationCreate)

	ok := f.reg.Annotations().CreateAnnotationSet(context.Background(), "Testannotation")

	assert.True(t, ok)
	assert.Empty(t, f.log.warns)
	assert.Equal(t, "Testannotation", f.doc.El(annotationNameInput).Value())
	assert.Equal(t, 1, f.doc.El(annotationCreate).Clicks())
}
