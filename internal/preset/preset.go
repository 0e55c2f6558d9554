package preset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnknownPreset is returned when a selection names a preset outside the catalog.
var ErrUnknownPreset = errors.New("unknown preset")

// DefaultPreset is used when a request does not name one.
const DefaultPreset = "ProRes HQ"

// Engine selects the implementation that executes a job.
type Engine string

const (
	EngineFFmpeg Engine = "ffmpeg"
	EngineDrapto Engine = "drapto"
)

// VideoCodec is an ffmpeg video encoder name.
type VideoCodec string

const (
	VideoProRes VideoCodec = "prores_ks"
	VideoDNxHR  VideoCodec = "dnxhd"
	VideoH264   VideoCodec = "libx264"
	VideoHEVC   VideoCodec = "libx265"
	VideoAV1    VideoCodec = "libsvtav1"
	VideoCopy   VideoCodec = "copy"
	VideoNone   VideoCodec = "none"
)

// AudioCodec is an ffmpeg audio encoder name.
type AudioCodec string

const (
	AudioPCM16 AudioCodec = "pcm_s16le"
	AudioPCM24 AudioCodec = "pcm_s24le"
	AudioAAC   AudioCodec = "aac"
	AudioOpus  AudioCodec = "libopus"
	AudioCopy  AudioCodec = "copy"
)

// Container is the output wrapper format.
type Container string

const (
	ContainerMOV Container = "mov"
	ContainerMP4 Container = "mp4"
	ContainerMXF Container = "mxf"
	ContainerMKV Container = "mkv"
	ContainerWAV Container = "wav"
)

// Config is a fully resolved encode configuration. It is immutable once a job
// has been submitted.
type Config struct {
	Engine        Engine     `json:"engine"`
	VideoCodec    VideoCodec `json:"video_codec"`
	AudioCodec    AudioCodec `json:"audio_codec"`
	Container     Container  `json:"container"`
	ProResProfile string     `json:"prores_profile,omitempty"`
	DNxHRProfile  string     `json:"dnxhr_profile,omitempty"`
	VideoBitrate  string     `json:"video_bitrate,omitempty"`
	AudioBitrate  string     `json:"audio_bitrate,omitempty"`
	SampleRate    int        `json:"sample_rate,omitempty"`
	Resolution    string     `json:"resolution,omitempty"`
	FrameRate     string     `json:"frame_rate,omitempty"`
	LUTPath       string     `json:"lut_path,omitempty"`
	MapAllAudio   bool       `json:"map_all_audio,omitempty"`
}

// Overrides are the per-request adjustments allowed on top of a preset.
type Overrides struct {
	VideoBitrate string `json:"video_bitrate,omitempty"`
	AudioBitrate string `json:"audio_bitrate,omitempty"`
	SampleRate   int    `json:"sample_rate,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
	FrameRate    string `json:"frame_rate,omitempty"`
	LUTPath      string `json:"lut_path,omitempty"`
	MapAllAudio  *bool  `json:"map_all_audio,omitempty"`
}

// IsZero reports whether no override is set.
func (o Overrides) IsZero() bool {
	return o.VideoBitrate == "" && o.AudioBitrate == "" && o.SampleRate == 0 &&
		o.Resolution == "" && o.FrameRate == "" && o.LUTPath == "" && o.MapAllAudio == nil
}

// Selection is what a caller submits: a named preset plus explicit overrides.
type Selection struct {
	Preset    string    `json:"preset"`
	Overrides Overrides `json:"overrides,omitempty"`
}

// Preset is a named, documented encode configuration.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Config      Config `json:"config"`
}

// Resolve looks up the selected preset, applies overrides, and validates the result.
func Resolve(sel Selection) (Config, error) {
	name := strings.TrimSpace(sel.Preset)
	if name == "" {
		name = DefaultPreset
	}
	p, ok := Lookup(name)
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	if p.Config.Engine == EngineDrapto && !sel.Overrides.IsZero() {
		return Config{}, fmt.Errorf("preset %q does not accept overrides", p.Name)
	}
	cfg := p.Config.apply(sel.Overrides)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("preset %q: %w", p.Name, err)
	}
	return cfg, nil
}

func (c Config) apply(o Overrides) Config {
	if v := strings.TrimSpace(o.VideoBitrate); v != "" {
		c.VideoBitrate = v
	}
	if v := strings.TrimSpace(o.AudioBitrate); v != "" {
		c.AudioBitrate = v
	}
	if o.SampleRate != 0 {
		c.SampleRate = o.SampleRate
	}
	if v := strings.TrimSpace(o.Resolution); v != "" {
		c.Resolution = strings.ToLower(v)
	}
	if v := strings.TrimSpace(o.FrameRate); v != "" {
		c.FrameRate = v
	}
	if v := strings.TrimSpace(o.LUTPath); v != "" {
		c.LUTPath = v
	}
	if o.MapAllAudio != nil {
		c.MapAllAudio = *o.MapAllAudio
	}
	return c
}

// Extensions lists the output file extensions compatible with the container.
func (c Config) Extensions() []string {
	switch c.Container {
	case ContainerMOV:
		return []string{".mov"}
	case ContainerMP4:
		return []string{".mp4", ".m4v"}
	case ContainerMXF:
		return []string{".mxf"}
	case ContainerMKV:
		return []string{".mkv"}
	case ContainerWAV:
		return []string{".wav"}
	default:
		return nil
	}
}

// CheckOutputPath rejects output paths whose extension does not match the container.
func (c Config) CheckOutputPath(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	allowed := c.Extensions()
	for _, candidate := range allowed {
		if ext == candidate {
			return nil
		}
	}
	return fmt.Errorf("output extension %q does not match %s container (want %s)", ext, c.Container, strings.Join(allowed, ", "))
}
