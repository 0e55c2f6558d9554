package preset

import (
	"strconv"
	"strings"
)

// Args builds the ffmpeg argument list for an input/output pair. The caller
// owns the binary name; progress is read from ffmpeg's default stderr stats.
func (c Config) Args(input, output string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", input}

	args = append(args, c.videoArgs()...)
	args = append(args, c.audioArgs()...)

	if c.MapAllAudio {
		if c.VideoCodec != VideoNone {
			args = append(args, "-map", "0:v:0?")
		}
		args = append(args, "-map", "0:a?")
	}
	args = append(args, "-threads", "0", "-f", c.muxer(), output)
	return args
}

func (c Config) videoArgs() []string {
	if c.VideoCodec == VideoNone {
		return []string{"-vn"}
	}
	args := []string{"-c:v", string(c.VideoCodec)}
	switch c.VideoCodec {
	case VideoProRes:
		args = append(args, "-profile:v", proresProfiles[c.ProResProfile])
		if strings.HasPrefix(c.ProResProfile, "4444") {
			args = append(args, "-pix_fmt", "yuva444p10le")
		} else {
			args = append(args, "-pix_fmt", "yuv422p10le")
		}
	case VideoDNxHR:
		args = append(args, "-profile:v", "dnxhr_"+c.DNxHRProfile, "-pix_fmt", dnxhrProfiles[c.DNxHRProfile])
	case VideoH264, VideoHEVC:
		args = append(args, "-pix_fmt", "yuv420p")
	}
	if c.VideoBitrate != "" && c.VideoCodec != VideoCopy {
		args = append(args, "-b:v", c.VideoBitrate)
	}
	if c.Resolution != "" {
		args = append(args, "-s", c.Resolution)
	}
	if c.FrameRate != "" {
		args = append(args, "-r", c.FrameRate)
	}
	if c.LUTPath != "" {
		args = append(args, "-vf", "lut3d=file="+escapeFilterValue(c.LUTPath))
	}
	return args
}

func (c Config) audioArgs() []string {
	args := []string{"-c:a", string(c.AudioCodec)}
	if c.AudioCodec == AudioCopy {
		return args
	}
	if c.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(c.SampleRate))
	}
	if c.AudioBitrate != "" && c.AudioCodec != AudioPCM16 && c.AudioCodec != AudioPCM24 {
		args = append(args, "-b:a", c.AudioBitrate)
	}
	return args
}

func (c Config) muxer() string {
	if c.Container == ContainerMKV {
		return "matroska"
	}
	return string(c.Container)
}

// escapeFilterValue quotes characters that are special inside an ffmpeg filtergraph.
func escapeFilterValue(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`)
	return replacer.Replace(value)
}
