package audio

// Renderer is the subset of internal/core's Core the CLI needs to drive
// live playback: pull up to n frames, read them back per channel
// (core_get_output_buffer's split-by-channel convention, 0=left,
// 1=right), and ask whether the timeline has ended.
type Renderer interface {
	Render(frames int) int
	OutputBuffer(channelIndex int) []float32
	EndReached() bool
}

// CoreSource adapts a Renderer to SampleSource/FinishingSource: it pulls
// fixed-size chunks from the render core and interleaves its separate
// L/R buffers into the stereo layout StreamReader expects.
type CoreSource struct {
	core  Renderer
	chunk int
}

// NewCoreSource builds a CoreSource that never asks the core to render
// more than chunk frames per Render call, matching the core's own
// chunk_max contract.
func NewCoreSource(core Renderer, chunk int) *CoreSource {
	if chunk <= 0 {
		chunk = 512
	}
	return &CoreSource{core: core, chunk: chunk}
}

func (s *CoreSource) Process(dst []float32) {
	frames := len(dst) / 2
	produced := 0
	for produced < frames {
		want := frames - produced
		if want > s.chunk {
			want = s.chunk
		}
		got := s.core.Render(want)
		l := s.core.OutputBuffer(0)
		r := s.core.OutputBuffer(1)
		for i := 0; i < got; i++ {
			dst[(produced+i)*2] = l[i]
			dst[(produced+i)*2+1] = r[i]
		}
		produced += got
		if got < want {
			break
		}
	}
	for i := produced; i < frames; i++ {
		dst[i*2] = 0
		dst[i*2+1] = 0
	}
}

// Finished reports the core's timeline as ended, letting StreamReader
// signal io.EOF to the ebiten player.
func (s *CoreSource) Finished() bool { return s.core.EndReached() }
