package preset

import (
	"sort"
	"strings"
)

var proresProfiles = map[string]string{
	"proxy":    "0",
	"lt":       "1",
	"standard": "2",
	"hq":       "3",
	"4444":     "4",
	"4444xq":   "5",
}

var dnxhrProfiles = map[string]string{
	"lb":  "yuv422p",
	"sq":  "yuv422p",
	"hq":  "yuv422p",
	"hqx": "yuv422p10le",
	"444": "yuv444p10le",
}

var catalog = []Preset{
	{
		Name:        "ProRes HQ",
		Description: "Apple ProRes 422 HQ with 24-bit PCM audio",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoProRes, ProResProfile: "hq", AudioCodec: AudioPCM24, SampleRate: 48000, Container: ContainerMOV},
	},
	{
		Name:        "ProRes 422",
		Description: "Apple ProRes 422 with 24-bit PCM audio",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoProRes, ProResProfile: "standard", AudioCodec: AudioPCM24, SampleRate: 48000, Container: ContainerMOV},
	},
	{
		Name:        "ProRes LT",
		Description: "Apple ProRes 422 LT with 24-bit PCM audio",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoProRes, ProResProfile: "lt", AudioCodec: AudioPCM24, SampleRate: 48000, Container: ContainerMOV},
	},
	{
		Name:        "ProRes Proxy",
		Description: "Apple ProRes 422 Proxy for offline editing",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoProRes, ProResProfile: "proxy", AudioCodec: AudioPCM16, SampleRate: 48000, Container: ContainerMOV},
	},
	{
		Name:        "ProRes 4444",
		Description: "Apple ProRes 4444 with alpha and 24-bit PCM audio",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoProRes, ProResProfile: "4444", AudioCodec: AudioPCM24, SampleRate: 48000, Container: ContainerMOV},
	},
	{
		Name:        "DNxHR HQX",
		Description: "Avid DNxHR HQX 10-bit in MXF",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoDNxHR, DNxHRProfile: "hqx", AudioCodec: AudioPCM24, SampleRate: 48000, Container: ContainerMXF},
	},
	{
		Name:        "DNxHR HQ",
		Description: "Avid DNxHR HQ 8-bit in MXF",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoDNxHR, DNxHRProfile: "hq", AudioCodec: AudioPCM24, SampleRate: 48000, Container: ContainerMXF},
	},
	{
		Name:        "DNxHR SQ",
		Description: "Avid DNxHR SQ 8-bit in MXF",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoDNxHR, DNxHRProfile: "sq", AudioCodec: AudioPCM24, SampleRate: 48000, Container: ContainerMXF},
	},
	{
		Name:        "DNxHR LB",
		Description: "Avid DNxHR LB proxy quality in MOV",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoDNxHR, DNxHRProfile: "lb", AudioCodec: AudioPCM16, SampleRate: 48000, Container: ContainerMOV},
	},
	{
		Name:        "H.264 High",
		Description: "H.264 at 20 Mb/s with 320k AAC for review copies",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoH264, VideoBitrate: "20M", AudioCodec: AudioAAC, AudioBitrate: "320k", SampleRate: 48000, Container: ContainerMP4},
	},
	{
		Name:        "HEVC High",
		Description: "HEVC at 18 Mb/s with 320k AAC",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoHEVC, VideoBitrate: "18M", AudioCodec: AudioAAC, AudioBitrate: "320k", SampleRate: 48000, Container: ContainerMP4},
	},
	{
		Name:        "Audio Only (PCM 24-bit)",
		Description: "Extract all audio streams to 24-bit 48 kHz WAV",
		Config:      Config{Engine: EngineFFmpeg, VideoCodec: VideoNone, AudioCodec: AudioPCM24, SampleRate: 48000, Container: ContainerWAV, MapAllAudio: true},
	},
	{
		Name:        "AV1 (Drapto)",
		Description: "SVT-AV1 with Opus audio in MKV via the Drapto encoder library",
		Config:      Config{Engine: EngineDrapto, VideoCodec: VideoAV1, AudioCodec: AudioOpus, Container: ContainerMKV},
	},
}

// Catalog returns every preset in display order.
func Catalog() []Preset {
	return append([]Preset(nil), catalog...)
}

// Names returns the preset names sorted alphabetically.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for _, p := range catalog {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a preset by name, ignoring case and surrounding whitespace.
func Lookup(name string) (Preset, bool) {
	name = strings.TrimSpace(name)
	for _, p := range catalog {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Preset{}, false
}
