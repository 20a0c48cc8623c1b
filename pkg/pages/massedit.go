package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/flowcheck/pkg/locator"
)

// MassEditState is a step of the mass edit dialog.
type MassEditState int

const (
	MassEditIdle MassEditState = iota
	MassEditMenuOpened
	MassEditActionSelected
	MassEditFieldChosen
	MassEditTextFilled
	MassEditSubmitted
	MassEditConfirmationHandled
)

func (s MassEditState) String() string {
	switch s {
	case MassEditIdle:
		return "idle"
	case MassEditMenuOpened:
		return "menu opened"
	case MassEditActionSelected:
		return "action selected"
	case MassEditFieldChosen:
		return "field chosen"
	case MassEditTextFilled:
		return "text filled"
	case MassEditSubmitted:
		return "submitted"
	case MassEditConfirmationHandled:
		return "confirmation handled"
	default:
		return fmt.Sprintf("MassEditState(%d)", int(s))
	}
}

// MassEditError reports the transition that failed.
type MassEditError struct {
	Field string

	// Reached is the last state completed.
	Reached MassEditState

	// Attempted is the state the failing transition was moving to.
	Attempted MassEditState

	Err error
}

func (e *MassEditError) Error() string {
	return fmt.Sprintf("mass edit of %q failed moving from %s to %s: %v", e.Field, e.Reached, e.Attempted, e.Err)
}

func (e *MassEditError) Unwrap() error {
	return e.Err
}

var (
	recordsMassAction    = locator.XPath(`//button[@id="toggle_mass_action"]`)
	recordsEditRadio     = locator.CSS(`input#ma-action-radio-edit[type="radio"][value="Edit"]`)
	recordsMassNext      = locator.XPath(`//button[@id="maButton-Next"]`)
	recordsFieldCombo    = locator.RoleExact("combobox", "Field")
	recordsFieldListbox  = locator.CSS("#maFindInField_listbox")
	recordsReplaceText   = locator.Role("textbox", "Replace Text")
	recordsGoButton      = locator.RoleExact("button", "Go")
	recordsConfirmButton = locator.Role("button", "Yes")
)

func fieldOption(field string) locator.Criteria {
	return locator.CSS("#maFindInField_listbox li").WithText(field)
}

type massEditTransition struct {
	to  MassEditState
	run func(ctx context.Context) error
}

// PerformMassEdit replaces the value of field with text on every selected
// record. The dialog is walked as a fixed sequence of states; a failing step
// returns a *MassEditError naming the last state reached.
func (p *RecordsPage) PerformMassEdit(ctx context.Context, field, text string) error {
	steps := []massEditTransition{
		{MassEditMenuOpened, p.openMassAction},
		{MassEditActionSelected, p.selectEditAction},
		{MassEditFieldChosen, func(ctx context.Context) error { return p.chooseField(ctx, field) }},
		{MassEditTextFilled, func(ctx context.Context) error { return p.fillReplacement(ctx, text) }},
		{MassEditSubmitted, p.submitMassEdit},
		{MassEditConfirmationHandled, p.confirmMassEdit},
	}

	state := MassEditIdle
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			return &MassEditError{Field: field, Reached: state, Attempted: step.to, Err: err}
		}
		state = step.to
		p.log.Infof("Mass edit: %s", state)
	}
	return nil
}

func (p *RecordsPage) openMassAction(ctx context.Context) error {
	button := p.loc(recordsMassAction)
	if err := button.WaitUntil(ctx, locator.StateVisible, 80*time.Second); err != nil {
		return err
	}
	if err := button.Click(ctx, locator.ClickOptions{}); err != nil {
		return err
	}
	return p.pause(ctx, 5*time.Second)
}

func (p *RecordsPage) selectEditAction(ctx context.Context) error {
	radio := p.loc(recordsEditRadio)
	if err := radio.ExpectVisible(ctx, 80*time.Second); err != nil {
		return err
	}
	if err := radio.ExpectEnabled(ctx, 80*time.Second); err != nil {
		return err
	}
	if err := radio.Check(ctx, 80*time.Second); err != nil {
		return err
	}
	if err := p.pause(ctx, 5*time.Second); err != nil {
		return err
	}
	if err := p.loc(recordsMassNext).Click(ctx, locator.ClickOptions{}); err != nil {
		return err
	}
	return p.pause(ctx, 8*time.Second)
}

func (p *RecordsPage) chooseField(ctx context.Context, field string) error {
	combo := p.loc(recordsFieldCombo)
	if err := combo.ExpectVisible(ctx, 30*time.Second); err != nil {
		return err
	}
	if err := combo.Click(ctx, locator.ClickOptions{}); err != nil {
		return err
	}
	if err := p.loc(recordsFieldListbox).WaitUntil(ctx, locator.StateVisible, 30*time.Second); err != nil {
		return err
	}
	// Newly created fields are appended to the list after it opens.
	if err := p.pause(ctx, 2*time.Second); err != nil {
		return err
	}
	option := p.loc(fieldOption(field))
	if err := option.Click(ctx, locator.ClickOptions{Timeout: 30 * time.Second}); err != nil {
		return err
	}
	return p.pause(ctx, 500*time.Millisecond)
}

func (p *RecordsPage) fillReplacement(ctx context.Context, text string) error {
	input := p.loc(recordsReplaceText)
	if err := input.ExpectVisible(ctx, 30*time.Second); err != nil {
		return err
	}
	if err := input.Click(ctx, locator.ClickOptions{}); err != nil {
		return err
	}
	if err := input.Fill(ctx, text, 30*time.Second); err != nil {
		return err
	}
	return p.pause(ctx, 500*time.Millisecond)
}

func (p *RecordsPage) submitMassEdit(ctx context.Context) error {
	if err := p.loc(recordsGoButton).Click(ctx, locator.ClickOptions{}); err != nil {
		return err
	}
	return p.pause(ctx, time.Second)
}

// confirmMassEdit shift-clicks "Yes"; a plain click leaves the confirmation
// dialog open.
func (p *RecordsPage) confirmMassEdit(ctx context.Context) error {
	yes := p.loc(recordsConfirmButton)
	if err := yes.WaitUntil(ctx, locator.StateVisible, 30*time.Second); err != nil {
		return err
	}
	err := yes.Click(ctx, locator.ClickOptions{Modifiers: []locator.Modifier{locator.ModifierShift}})
	if err != nil {
		return err
	}
	return p.pause(ctx, 5*time.Second)
}
