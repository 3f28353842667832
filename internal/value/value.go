// Package value implements the typed argument carried by every trigger
// fired into the render core (see the event grammar in SPEC_FULL.md).
package value

import (
	"fmt"

	"github.com/kunquat/kunquat-sub007/internal/tstamp"
)

// Kind discriminates the type carried by a Value.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindTstamp
	KindString
	KindPatternInstRef
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTstamp:
		return "tstamp"
	case KindString:
		return "string"
	case KindPatternInstRef:
		return "pattern_instance_ref"
	default:
		return "unknown"
	}
}

// PatternInstRef names one instance of a pattern placed on the timeline.
type PatternInstRef struct {
	Pattern  int
	Instance int
}

// Value is a closed tagged union of the argument types a trigger may
// carry. Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind

	Bool   bool
	Int    int64
	Float  float64
	Tstamp tstamp.T
	Str    string
	PatRef PatternInstRef
}

func None() Value                       { return Value{Kind: KindNone} }
func Bool(b bool) Value                 { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value                 { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value             { return Value{Kind: KindFloat, Float: f} }
func Tstamp(t tstamp.T) Value           { return Value{Kind: KindTstamp, Tstamp: t} }
func String(s string) Value             { return Value{Kind: KindString, Str: s} }
func PatternRef(p PatternInstRef) Value { return Value{Kind: KindPatternInstRef, PatRef: p} }

// AsFloat coerces int/float/bool values to a float64, matching the
// engine's relaxed numeric-argument handling for processor parameters.
func (v Value) AsFloat() (float64, error) {
	switch v.Kind {
	case KindFloat:
		return v.Float, nil
	case KindInt:
		return float64(v.Int), nil
	case KindBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value: cannot coerce %s to float", v.Kind)
	}
}

// AsInt coerces int/float/bool values to an int64.
func (v Value) AsInt() (int64, error) {
	switch v.Kind {
	case KindInt:
		return v.Int, nil
	case KindFloat:
		return int64(v.Float), nil
	case KindBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value: cannot coerce %s to int", v.Kind)
	}
}

func (v Value) AsBool() (bool, error) {
	switch v.Kind {
	case KindBool:
		return v.Bool, nil
	case KindInt:
		return v.Int != 0, nil
	case KindFloat:
		return v.Float != 0, nil
	default:
		return false, fmt.Errorf("value: cannot coerce %s to bool", v.Kind)
	}
}

func (v Value) AsTstamp() (tstamp.T, error) {
	if v.Kind != KindTstamp {
		return tstamp.Zero, fmt.Errorf("value: cannot coerce %s to tstamp", v.Kind)
	}
	return v.Tstamp, nil
}

func (v Value) AsString() (string, error) {
	if v.Kind != KindString {
		return "", fmt.Errorf("value: cannot coerce %s to string", v.Kind)
	}
	return v.Str, nil
}

func (v Value) String() string {
	switch v.Kind {
	case KindNone:
		return "none"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindTstamp:
		return v.Tstamp.String()
	case KindString:
		return v.Str
	case KindPatternInstRef:
		return fmt.Sprintf("pat(%d,%d)", v.PatRef.Pattern, v.PatRef.Instance)
	default:
		return "?"
	}
}
