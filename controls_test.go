package engrave

import (
	"errors"
	"testing"
)

type testMode uint8

func (m testMode) String() string { return [...]string{"a", "b", "c"}[m] }

func TestControlOrdered(t *testing.T) {
	var got float64
	c := &ControlOrdered[float64]{
		Name: "Add", Value: 127, Min: -10, Max: 300,
		OnChange: func(v float64) error { got = v; return nil },
	}
	if name, _ := c.Describe(); name != "Add" {
		t.Errorf("Describe name = %q", name)
	}
	if err := c.ChangeValue(200.0); err != nil || got != 200 || c.ActualValue() != 200.0 {
		t.Errorf("ChangeValue(200): err=%v got=%v actual=%v", err, got, c.ActualValue())
	}
	if err := c.ChangeValue(400.0); err == nil {
		t.Error("expected out of range error")
	}
	if err := c.ChangeValue(1); err == nil {
		t.Error("expected type error for int value")
	}
	if c.Value != 200 {
		t.Errorf("rejected change modified value: %v", c.Value)
	}
}

func TestControlEnum(t *testing.T) {
	c := &ControlEnum[testMode]{
		Value:       0,
		ValidValues: []testMode{0, 1},
		OnChange:    func(testMode) error { return nil },
	}
	if err := c.ChangeValue(testMode(1)); err != nil || c.Value != 1 {
		t.Errorf("ChangeValue(1): err=%v value=%v", err, c.Value)
	}
	if err := c.ChangeValue(testMode(2)); err == nil {
		t.Error("expected invalid value error")
	}
}

func TestControlBoolVeto(t *testing.T) {
	veto := errors.New("veto")
	c := &ControlBool{OnChange: func(v bool) error {
		if v {
			return veto
		}
		return nil
	}}
	if err := c.ChangeValue(true); !errors.Is(err, veto) || c.Value {
		t.Errorf("vetoed change: err=%v value=%v", err, c.Value)
	}
	if err := c.ChangeValue("yes"); err == nil {
		t.Error("expected type error")
	}
}

func TestFindControl(t *testing.T) {
	a := &ControlBool{Name: "Invert"}
	b := &ControlOrdered[float64]{Name: "Contrast", Max: 1}
	ctrls := []Control{a, b}
	if got := FindControl(ctrls, "Contrast"); got != Control(b) {
		t.Errorf("FindControl(Contrast) = %v", got)
	}
	if got := FindControl(ctrls, "Gray"); got != nil {
		t.Errorf("FindControl(Gray) = %v, want nil", got)
	}
	// Nil hooks accept every valid value.
	if err := b.ChangeValue(0.5); err != nil || b.Value != 0.5 {
		t.Errorf("ChangeValue with nil hook: err=%v value=%v", err, b.Value)
	}
}
