package engrave

import (
	"cmp"
	"fmt"
	"slices"
)

// Control is an editable parameter of a filter. A change is stored only
// after the control's OnChange hook accepts it; a nil hook accepts anything.
type Control interface {
	// Describe returns the display name and description.
	Describe() (name, description string)
	// ActualValue returns the current value of the control.
	ActualValue() any
	// ChangeValue attempts to update the ActualValue to newValue.
	ChangeValue(newValue any) error
}

// FindControl returns the control in ctrls with the given display name or nil.
func FindControl(ctrls []Control, name string) Control {
	for _, c := range ctrls {
		if n, _ := c.Describe(); n == name {
			return c
		}
	}
	return nil
}

// changeValue asserts newValue to T, validates it and runs the veto hook
// before storing it in dst.
func changeValue[T any](dst *T, newValue any, valid func(T) error, onChange func(T) error) error {
	v, ok := newValue.(T)
	if !ok {
		return fmt.Errorf("new value %T not of type %T", newValue, *dst)
	}
	if valid != nil {
		if err := valid(v); err != nil {
			return err
		}
	}
	if onChange != nil {
		if err := onChange(v); err != nil {
			return err
		}
	}
	*dst = v
	return nil
}

// ControlOrdered is a value bounded by Min and Max, shown as a slider moving by Step.
type ControlOrdered[T cmp.Ordered] struct {
	Name        string
	Description string
	Value       T
	Min         T
	Max         T
	Step        T
	OnChange    func(T) error
}

func (co *ControlOrdered[T]) Describe() (name, description string) { return co.Name, co.Description }
func (co *ControlOrdered[T]) ActualValue() any                     { return co.Value }

func (co *ControlOrdered[T]) ChangeValue(newValue any) error {
	return changeValue(&co.Value, newValue, co.inRange, co.OnChange)
}

func (co *ControlOrdered[T]) inRange(v T) error {
	if v < co.Min || v > co.Max {
		return fmt.Errorf("new value %v exceeds limits %v..%v", v, co.Min, co.Max)
	}
	return nil
}

type integer interface {
	~int | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64
}

type enum interface {
	integer
	fmt.Stringer
}

// ControlEnum is one of ValidValues, shown as a dropdown of their String forms.
type ControlEnum[T enum] struct {
	Name        string
	Description string
	Value       T
	ValidValues []T
	OnChange    func(T) error
}

func (ce *ControlEnum[T]) Describe() (name, description string) { return ce.Name, ce.Description }
func (ce *ControlEnum[T]) ActualValue() any                     { return ce.Value }

func (ce *ControlEnum[T]) ChangeValue(newValue any) error {
	return changeValue(&ce.Value, newValue, ce.isValid, ce.OnChange)
}

func (ce *ControlEnum[T]) isValid(v T) error {
	if !slices.Contains(ce.ValidValues, v) {
		return fmt.Errorf("value %v of %T not valid", v, v)
	}
	return nil
}

// ControlBool is a switch, shown as a checkbox.
type ControlBool struct {
	Name        string
	Description string
	Value       bool
	OnChange    func(bool) error
}

func (cb *ControlBool) Describe() (name, description string) { return cb.Name, cb.Description }
func (cb *ControlBool) ActualValue() any                     { return cb.Value }

func (cb *ControlBool) ChangeValue(newValue any) error {
	return changeValue(&cb.Value, newValue, nil, cb.OnChange)
}
