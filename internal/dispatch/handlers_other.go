package dispatch

import (
	"fmt"

	"github.com/kunquat/kunquat-sub007/internal/value"
)

// fireAU handles a.* triggers: audio-unit-scoped controls that apply to
// every voice currently assigned to the firing channel's AU, rather than
// to one voice group. This core only defines "a.bypass", matching
// SPEC_FULL.md's audio-unit scope; AU construction-time parameters
// (ports, processor graph) are immutable for the module's lifetime and
// are not retriggerable.
func (d *Dispatcher) fireAU(ch int, rest string, arg value.Value) error {
	switch rest {
	case "bypass":
		on, err := arg.AsBool()
		if err != nil {
			return err
		}
		au := d.channels[ch].AUIndex
		if d.auBypass == nil {
			d.auBypass = make(map[int]bool)
		}
		d.auBypass[au] = on
		return nil
	default:
		return fmt.Errorf("unknown a.* event %q", rest)
	}
}

// AUBypassed reports whether a.bypass has silenced au, consulted by core
// before mixing an AU's output into the master bus.
func (d *Dispatcher) AUBypassed(au int) bool {
	return d.auBypass != nil && d.auBypass[au]
}

// fireGenerator handles g.* triggers: named per-processor-type runtime
// overrides layered on top of a processor's module-defined parameters
// (e.g. nudging a chorus voice's speed without redefining the AU). The
// override is stored per (channel, name) and can be read back with
// GeneratorOverride; the render path does not read it, so it does not
// change what the processors produce.
func (d *Dispatcher) fireGenerator(ch int, rest string, arg value.Value) error {
	f, err := arg.AsFloat()
	if err != nil {
		return err
	}
	if d.genOverrides == nil {
		d.genOverrides = make(map[int]map[string]float64)
	}
	if d.genOverrides[ch] == nil {
		d.genOverrides[ch] = make(map[string]float64)
	}
	d.genOverrides[ch][rest] = f
	return nil
}

// GeneratorOverride returns a runtime g.* override for (channel, name),
// if one was fired.
func (d *Dispatcher) GeneratorOverride(ch int, name string) (float64, bool) {
	if d.genOverrides == nil {
		return 0, false
	}
	v, ok := d.genOverrides[ch][name]
	return v, ok
}

// fireControlVar handles cv.* triggers: the per-AU, per-channel typed
// control variables AU.ControlVars declares. Setting one updates
// Channel.CVState; if the variable's carry flag was armed via a prior
// "cv.<name>.carry" trigger, the value persists across note boundaries
// (the default, per DESIGN.md's Open Question resolution, is off: a
// control variable's value is cleared on every note_on unless
// cv.<name>.carry true was fired first).
func (d *Dispatcher) fireControlVar(ch int, rest string, arg value.Value) error {
	name := rest
	if isCarrySuffix(rest) {
		name = rest[:len(rest)-len(".carry")]
		on, err := arg.AsBool()
		if err != nil {
			return err
		}
		d.channels[ch].CVCarry[name] = on
		return nil
	}

	c := d.channels[ch]
	if !d.controlVarDeclared(c.AUIndex, name) {
		return fmt.Errorf("control variable %q not declared on this audio unit", name)
	}
	c.CVState[name] = arg
	return nil
}

func isCarrySuffix(name string) bool {
	const suffix = ".carry"
	return len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix
}

func (d *Dispatcher) controlVarDeclared(auIndex int, name string) bool {
	if auIndex < 0 || auIndex >= len(d.mod.AudioUnits) {
		return false
	}
	for _, cv := range d.mod.AudioUnits[auIndex].ControlVars {
		if cv.Name == name {
			return true
		}
	}
	return false
}

// ResetControlVarsForNoteOn clears every control variable on ch that is
// not carry-armed, called by channelNoteOn immediately before allocating
// a note-on's voice group.
func (d *Dispatcher) ResetControlVarsForNoteOn(ch int) {
	c := d.channels[ch]
	for name := range c.CVState {
		if !c.CVCarry[name] {
			delete(c.CVState, name)
		}
	}
}
