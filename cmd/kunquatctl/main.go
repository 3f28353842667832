// Command kunquatctl is the external caller that owns core_init's
// configuration, the audio sink (or output file) and the render loop
// that repeatedly calls core_render (§6.2). Grounded on the teacher's
// cmd/play_mml, adapted from flag to github.com/spf13/pflag and from a
// parsed-MML score to a built-in demo composition, since parsing an
// on-disk module format is outside this engine's scope (§1's
// non-goals).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"

	"github.com/kunquat/kunquat-sub007/internal/audio"
	"github.com/kunquat/kunquat-sub007/internal/core"
	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
	"github.com/kunquat/kunquat-sub007/internal/value"
	"github.com/kunquat/kunquat-sub007/internal/wav"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	args := os.Args[2:]

	switch sub {
	case "render":
		if err := runRender(args); err != nil {
			log.Fatal(err)
		}
	case "play":
		if err := runPlay(args); err != nil {
			log.Fatal(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kunquatctl render|play [flags]")
}

// demoFlags are the note/timing parameters shared by both subcommands;
// they stand in for the composition an on-disk module would otherwise
// supply.
type demoFlags struct {
	rate     int
	chunkMax int
	cents    float64
	beats    int64
	tempo    float64
	poolSize int
}

func registerDemoFlags(fs *flag.FlagSet) *demoFlags {
	d := &demoFlags{}
	fs.IntVar(&d.rate, "rate", 48000, "audio rate in Hz")
	fs.IntVar(&d.chunkMax, "chunk", 512, "render chunk_max in frames")
	fs.Float64Var(&d.cents, "cents", 0, "note pitch in cents from the instrument's reference pitch")
	fs.Int64Var(&d.beats, "beats", 4, "demo pattern length in whole beats")
	fs.Float64Var(&d.tempo, "tempo", 120, "tempo in beats per minute")
	fs.IntVar(&d.poolSize, "voices", 16, "voice pool size")
	return d
}

// demoModule builds a single-song, single-pattern module with one debug
// instrument and a lone note_on at the start of its only column —
// enough to exercise core_init/core_render end to end without an
// on-disk format parser.
func demoModule(d *demoFlags) *module.Module {
	au := module.AudioUnit{
		Kind:       module.AUInstrument,
		Processors: []module.Processor{{Type: module.ProcDebug}},
		InnerConnections: []module.Connection{
			{FromDevice: 0, ToDevice: -1},
		},
	}
	pattern := module.Pattern{
		Length: tstamp.New(d.beats, 0),
		Columns: []module.Column{{
			Triggers: []module.Trigger{
				{Name: "m.tempo", Arg: value.Float(d.tempo), Pos: tstamp.Zero},
				{Name: "c.note_on", Arg: value.Float(d.cents), Pos: tstamp.Zero},
			},
		}},
	}
	return &module.Module{
		AudioUnits:  []module.AudioUnit{au},
		Connections: []module.Connection{{FromDevice: 0, ToDevice: -1}},
		Patterns:    []module.Pattern{pattern},
		Songs:       []module.Song{{Instances: []module.PatternInstance{{Pattern: 0}}}},
	}
}

func newDemoCore(d *demoFlags) (*core.Core, error) {
	mod := demoModule(d)
	c, err := core.New(mod, int64(d.rate), d.chunkMax, core.WithVoicePoolSize(d.poolSize))
	if err != nil {
		return nil, fmt.Errorf("kunquatctl: core_init: %w", err)
	}
	if err := c.Play(0); err != nil {
		return nil, fmt.Errorf("kunquatctl: core_play: %w", err)
	}
	return c, nil
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	d := registerDemoFlags(fs)
	out := fs.String("out", "out.wav", "output WAV path")
	maxFrames := fs.Int("max-frames", 10*48000, "safety cap on total rendered frames")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := newDemoCore(d)
	if err != nil {
		return err
	}

	var l, r []float32
	for len(l) < *maxFrames && !c.EndReached() {
		produced := c.Render(d.chunkMax)
		if produced == 0 {
			break
		}
		l = append(l, c.OutputBuffer(0)...)
		r = append(r, c.OutputBuffer(1)...)
	}

	data := wav.Encode(l, r, d.rate)
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("kunquatctl: write %s: %w", *out, err)
	}
	log.Info("rendered", "frames", len(l), "file", *out)
	return nil
}

func runPlay(args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	d := registerDemoFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := newDemoCore(d)
	if err != nil {
		return err
	}

	source := audio.NewCoreSource(c, d.chunkMax)
	player, err := audio.NewPlayer(d.rate, source)
	if err != nil {
		return fmt.Errorf("kunquatctl: audio sink: %w", err)
	}
	player.Play()
	for player.IsPlaying() {
		time.Sleep(20 * time.Millisecond)
	}
	return player.Stop()
}
