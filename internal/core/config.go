package core

// defaultVoicePoolSize mirrors the original engine's fixed voice budget;
// modules that need more or fewer concurrent voices configure it via
// WithVoicePoolSize.
const defaultVoicePoolSize = 256

// numChannels is the fixed channel count (§3.4): 64 per-column state
// blocks, independent of how many columns a given module actually uses.
const numChannels = 64

// Config bundles core_init's construction-time parameters that aren't
// already implied by the module tree: how many voice slots to allocate
// and which random seed drives the deterministic per-voice streams.
type Config struct {
	VoicePoolSize int
	RandomSeed    uint64
}

// Option mutates a Config during New, following the functional-options
// pattern the teacher's Player constructor uses for PlayerOption.
type Option func(*Config)

// WithVoicePoolSize overrides the default fixed number of voice slots.
func WithVoicePoolSize(n int) Option {
	return func(c *Config) { c.VoicePoolSize = n }
}

// WithRandomSeed overrides the module's own random_seed for the
// deterministic per-voice rand_p/rand_s streams, e.g. for reproducible
// tests independent of the module under test.
func WithRandomSeed(seed uint64) Option {
	return func(c *Config) { c.RandomSeed = seed }
}

func defaultConfig() Config {
	return Config{VoicePoolSize: defaultVoicePoolSize}
}
