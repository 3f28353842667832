package graph

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/proc"
	"github.com/kunquat/kunquat-sub007/internal/rng"
	"github.com/kunquat/kunquat-sub007/internal/slider"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
	"github.com/kunquat/kunquat-sub007/internal/voice"
)

// masterSink is the pseudo AU index module.Connections use as the
// destination of the final summed signal, mirroring the -1 "pseudo
// device" convention module.Connection already uses for AU-local ports.
const masterSink = -1

// ActiveVoice names one pool slot the voice pipeline must render this
// chunk: its owning channel/AU and the group it belongs to, so the
// executor can fan work out per AU without consulting the pool's
// internal layout.
type ActiveVoice struct {
	Slot       int
	ChannelNum int
	AUIndex    int
	GroupID    uint64
	NoteOff    bool
}

// dcBlocker is the one-pole DC-blocking filter y = x - x_prev + r*y_prev,
// r = 0.995, carried across chunk boundaries.
type dcBlocker struct {
	prevIn, prevOut float64
}

func (d *dcBlocker) process(x float32) float32 {
	const r = 0.995
	y := float64(x) - d.prevIn + r*d.prevOut
	d.prevIn = float64(x)
	d.prevOut = y
	return float32(y)
}

// voiceArena is the per-voice-slot, per-processor state array for the AU
// the slot is currently rendering. It lives behind voice.Voice's opaque
// VState field since the pool package must not depend on proc.
type voiceArena struct {
	auIndex int
	states  []any
}

// Graph owns the device graph's render-time state: one voice-output and
// one mixed-output accumulator per audio unit, persistent global state
// for effect AUs, and the master DC-blocker/volume stage.
type Graph struct {
	mod       *module.Module
	procTable proc.Table
	pool      *voice.Pool
	audioRate int64
	chunkMax  int

	auProcOrder   [][]int
	auVoiceBuf    []*WorkBuffer
	auMixedBuf    []*WorkBuffer
	auInBuf       []*WorkBuffer
	auGlobalState [][]any

	masterOrder []int
	masterBuf   *WorkBuffer

	dcL, dcR  dcBlocker
	masterVol *slider.Slider

	// auBypassed mutes an audio unit's contribution to both the voice
	// and mixed pipelines without touching its processor state, per the
	// a.bypass event (§6.3's a.* namespace).
	auBypassed map[int]bool

	// lastSilent records, per pool slot, whether that voice's
	// AU-output-connected processors produced no non-final output this
	// chunk; core consults this alongside the keep-alive window to
	// decide deactivation (§4.5.6).
	lastSilent map[int]bool
}

// NewGraph validates the module's connection graphs (no cycles, per
// §4.4's "Device_state reachable from two paths") and that every
// processor type is registered in procTable, reporting either failure as
// an error, and allocates the work buffers.
func NewGraph(mod *module.Module, procTable proc.Table, pool *voice.Pool, audioRate int64, chunkMax int) (*Graph, error) {
	g := &Graph{
		mod:        mod,
		procTable:  procTable,
		pool:       pool,
		audioRate:  audioRate,
		chunkMax:   chunkMax,
		masterBuf:  NewWorkBuffer(chunkMax),
		masterVol:  slider.New(slider.ModeLinear, float64(audioRate), 120),
		lastSilent: make(map[int]bool),
	}
	g.masterVol.SetImmediate(1.0)

	g.auProcOrder = make([][]int, len(mod.AudioUnits))
	g.auVoiceBuf = make([]*WorkBuffer, len(mod.AudioUnits))
	g.auMixedBuf = make([]*WorkBuffer, len(mod.AudioUnits))
	g.auInBuf = make([]*WorkBuffer, len(mod.AudioUnits))
	g.auGlobalState = make([][]any, len(mod.AudioUnits))

	for i, au := range mod.AudioUnits {
		order, err := topoSortProcessors(au)
		if err != nil {
			return nil, fmt.Errorf("audio unit %d: %w", i, err)
		}
		g.auProcOrder[i] = order
		for p, pd := range au.Processors {
			if _, ok := procTable[pd.Type]; !ok {
				return nil, fmt.Errorf("audio unit %d processor %d: unregistered processor type %v", i, p, pd.Type)
			}
		}
		g.auVoiceBuf[i] = NewWorkBuffer(chunkMax)
		g.auMixedBuf[i] = NewWorkBuffer(chunkMax)
		g.auInBuf[i] = NewWorkBuffer(chunkMax)
		if au.Kind == module.AUEffect {
			states := make([]any, len(au.Processors))
			for p, pd := range au.Processors {
				impl, ok := procTable[pd.Type]
				if !ok {
					return nil, fmt.Errorf("audio unit %d processor %d: unregistered processor type %v", i, p, pd.Type)
				}
				states[p] = impl.NewVoiceState(pd.Params, procInitCtx(audioRate))
			}
			g.auGlobalState[i] = states
		}
	}

	order, err := topoSortMaster(mod)
	if err != nil {
		return nil, fmt.Errorf("master connection graph: %w", err)
	}
	g.masterOrder = order

	return g, nil
}

func procInitCtx(rate int64) proc.InitContext { return proc.InitContext{AudioRate: rate} }

// topoSortProcessors orders an AU's processors so every input is
// computed before the processor that reads it, via Kahn's algorithm over
// InnerConnections; pseudo-device endpoints (<0) impose no ordering
// constraint.
func topoSortProcessors(au module.AudioUnit) ([]int, error) {
	n := len(au.Processors)
	indeg := make([]int, n)
	adj := make([][]int, n)
	for _, c := range au.InnerConnections {
		if c.FromDevice < 0 || c.ToDevice < 0 {
			continue
		}
		adj[c.FromDevice] = append(adj[c.FromDevice], c.ToDevice)
		indeg[c.ToDevice]++
	}
	return kahn(n, indeg, adj)
}

// topoSortMaster orders audio units so every AU feeding another AU (or
// the master sink) via module.Connections is rendered first.
func topoSortMaster(mod *module.Module) ([]int, error) {
	n := len(mod.AudioUnits)
	indeg := make([]int, n)
	adj := make([][]int, n)
	for _, c := range mod.Connections {
		if c.FromDevice < 0 || c.ToDevice < 0 {
			continue
		}
		adj[c.FromDevice] = append(adj[c.FromDevice], c.ToDevice)
		indeg[c.ToDevice]++
	}
	return kahn(n, indeg, adj)
}

func kahn(n int, indeg []int, adj [][]int) ([]int, error) {
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, next := range adj[cur] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(order) != n {
		return nil, fmt.Errorf("cyclic connection graph")
	}
	return order, nil
}

// ensureArena lazily (re)allocates a voice's per-processor state array,
// discarding all processor history whenever the slot starts a new AU (a
// steal): it builds fresh states with NewVoiceState rather than calling
// ClearHistory on the old ones.
func (g *Graph) ensureArena(v *voice.Voice, auIndex int) *voiceArena {
	a, ok := v.VState.(*voiceArena)
	if ok && a.auIndex == auIndex {
		return a
	}
	au := g.mod.AudioUnits[auIndex]
	states := make([]any, len(au.Processors))
	for i, p := range au.Processors {
		impl := g.procTable[p.Type]
		states[i] = impl.NewVoiceState(p.Params, procInitCtx(g.audioRate))
	}
	a = &voiceArena{auIndex: auIndex, states: states}
	v.VState = a
	return a
}

func newPort(n int) proc.Port {
	return proc.Port{L: make([]float32, n), R: make([]float32, n)}
}

// buildInputs gathers the ports connected to procIdx's input side from
// the already-rendered outputs of earlier processors in the same AU.
func buildInputs(conns []module.Connection, procIdx int, outputs []proc.Port, external proc.Port, hasExternal bool) map[module.Port]proc.Port {
	ins := map[module.Port]proc.Port{}
	for _, c := range conns {
		if c.ToDevice != procIdx {
			continue
		}
		if c.FromDevice == masterSink && hasExternal {
			ins[c.ToPort] = external
			continue
		}
		if c.FromDevice >= 0 {
			ins[c.ToPort] = outputs[c.FromDevice]
		}
	}
	return ins
}

// renderAUVoices renders every active voice owned by one AU and sums the
// processors wired to the AU's output into that AU's voice-output
// accumulator. Each AU is handled by exactly one goroutine, so no
// synchronization is needed around auVoiceBuf[auIndex].
func (g *Graph) renderAUVoices(auIndex int, voices []ActiveVoice, frames int, tempo float64, moduleSeed uint64) {
	au := g.mod.AudioUnits[auIndex]
	order := g.auProcOrder[auIndex]
	outBuf := g.auVoiceBuf[auIndex]

	for _, av := range voices {
		slot := g.pool.Slot(av.Slot)
		arena := g.ensureArena(slot, auIndex)

		outputs := make([]proc.Port, len(au.Processors))
		lastStop := 0
		lastWasOutput := false

		for _, idx := range order {
			p := au.Processors[idx]
			impl := g.procTable[p.Type]
			ins := buildInputs(au.InnerConnections, idx, outputs, proc.Port{}, false)
			out := newPort(frames)
			outputs[idx] = out

			ctx := proc.RenderContext{
				Frames:     frames,
				AudioRate:  g.audioRate,
				Tempo:      tempo,
				In:         ins,
				Out:        map[module.Port]proc.Port{0: out},
				ParamRand:  rng.New(moduleSeed, av.GroupID, rng.StreamParam),
				SignalRand: rng.New(moduleSeed, av.GroupID, rng.StreamSignal),
				NoteOff:    av.NoteOff,
			}
			stop := impl.RenderVoice(arena.states[idx], p.Params, ctx)

			connectsToOutput := false
			for _, c := range au.InnerConnections {
				if c.FromDevice == idx && c.ToDevice == masterSink {
					connectsToOutput = true
					break
				}
			}
			if connectsToOutput {
				lastWasOutput = true
				if stop > lastStop {
					lastStop = stop
				}
			}
		}

		for _, c := range au.InnerConnections {
			if c.ToDevice == masterSink && c.FromDevice >= 0 {
				wrapped := &WorkBuffer{L: outputs[c.FromDevice].L, R: outputs[c.FromDevice].R}
				outBuf.AddFrom(wrapped, frames)
			}
		}

		if lastWasOutput {
			g.lastSilent[av.Slot] = lastStop == 0
		}
	}
}

// renderEffect runs an effect AU's processor chain once per chunk over
// its persistent global state, feeding inBuf in through connections from
// the master-sink pseudo-device and summing processors wired back to it
// into the AU's mixed output.
func (g *Graph) renderEffect(auIndex int, frames int, tempo float64) {
	au := g.mod.AudioUnits[auIndex]
	order := g.auProcOrder[auIndex]
	states := g.auGlobalState[auIndex]
	inBuf := g.auInBuf[auIndex]
	mixedOut := g.auMixedBuf[auIndex]

	outputs := make([]proc.Port, len(au.Processors))
	external := inBuf.Port(frames)

	for _, idx := range order {
		p := au.Processors[idx]
		impl := g.procTable[p.Type]
		ins := buildInputs(au.InnerConnections, idx, outputs, external, true)
		out := newPort(frames)
		outputs[idx] = out

		ctx := proc.RenderContext{
			Frames:    frames,
			AudioRate: g.audioRate,
			Tempo:     tempo,
			In:        ins,
			Out:       map[module.Port]proc.Port{0: out},
		}
		impl.RenderVoice(states[idx], p.Params, ctx)
	}

	for _, c := range au.InnerConnections {
		if c.ToDevice == masterSink && c.FromDevice >= 0 {
			wrapped := &WorkBuffer{L: outputs[c.FromDevice].L, R: outputs[c.FromDevice].R}
			mixedOut.AddFrom(wrapped, frames)
		}
	}
}

// Render advances the whole device graph by frames: the voice pipeline
// (parallel across AUs with active voices), then the mixed pipeline
// (serial, in dependency order), then the DC-blocker and master volume.
// It returns the master output buffer, valid for [0, frames).
func (g *Graph) Render(frames int, active []ActiveVoice, tempo float64, moduleSeed uint64) (*WorkBuffer, error) {
	for _, b := range g.auVoiceBuf {
		b.Clear(frames)
	}
	for _, b := range g.auMixedBuf {
		b.Clear(frames)
	}
	for _, b := range g.auInBuf {
		b.Clear(frames)
	}
	g.masterBuf.Clear(frames)

	byAU := map[int][]ActiveVoice{}
	for _, av := range active {
		byAU[av.AUIndex] = append(byAU[av.AUIndex], av)
	}

	var eg errgroup.Group
	for auIdx, voices := range byAU {
		if g.auBypassed[auIdx] {
			continue
		}
		auIdx, voices := auIdx, voices
		eg.Go(func() error {
			g.renderAUVoices(auIdx, voices, frames, tempo, moduleSeed)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, a := range g.masterOrder {
		if g.auBypassed[a] {
			continue
		}
		au := g.mod.AudioUnits[a]
		in := g.auInBuf[a]
		for _, c := range g.mod.Connections {
			if c.ToDevice == a && c.FromDevice >= 0 && !g.auBypassed[c.FromDevice] {
				in.AddFrom(g.auMixedBuf[c.FromDevice], frames)
			}
		}
		in.AddFrom(g.auVoiceBuf[a], frames)

		if au.Kind == module.AUEffect {
			g.renderEffect(a, frames, tempo)
		} else {
			g.auMixedBuf[a].AddFrom(in, frames)
		}
	}

	for _, c := range g.mod.Connections {
		if c.ToDevice == masterSink && c.FromDevice >= 0 && !g.auBypassed[c.FromDevice] {
			g.masterBuf.AddFrom(g.auMixedBuf[c.FromDevice], frames)
		}
	}

	vol := g.masterVol.Value()
	for i := 0; i < frames; i++ {
		g.masterBuf.L[i] = g.dcL.process(g.masterBuf.L[i]) * float32(vol)
		g.masterBuf.R[i] = g.dcR.process(g.masterBuf.R[i]) * float32(vol)
		g.masterVol.Step()
	}
	g.masterBuf.Valid = true

	return g.masterBuf, nil
}

// SetMasterVolume schedules a slide of the master linear gain to target
// over length, per §4.2's m.volume event.
func (g *Graph) SetMasterVolume(target float64, length tstamp.T) {
	g.masterVol.ChangeLength(length)
	g.masterVol.ChangeTarget(target)
}

// SetAUBypass mutes or unmutes an audio unit's contribution to both
// pipelines, without resetting its processor state, per a.bypass.
func (g *Graph) SetAUBypass(auIndex int, bypassed bool) {
	if g.auBypassed == nil {
		g.auBypassed = make(map[int]bool)
	}
	g.auBypassed[auIndex] = bypassed
}

// VoiceSilent reports whether slot's AU-output-connected processors
// produced no audible output in the most recent chunk it rendered.
func (g *Graph) VoiceSilent(slot int) bool {
	return g.lastSilent[slot]
}
