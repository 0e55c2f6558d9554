package preset

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	bitratePattern    = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[kKmM]?$`)
	resolutionPattern = regexp.MustCompile(`^([0-9]{2,5})x([0-9]{2,5})$`)
)

// Validate checks codec/container compatibility and override formats.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineFFmpeg, EngineDrapto:
	default:
		return fmt.Errorf("unsupported engine %q", c.Engine)
	}
	if len(c.Extensions()) == 0 {
		return fmt.Errorf("unsupported container %q", c.Container)
	}
	if err := c.validateCodecs(); err != nil {
		return err
	}
	if c.VideoBitrate != "" && !bitratePattern.MatchString(c.VideoBitrate) {
		return fmt.Errorf("invalid video bitrate %q", c.VideoBitrate)
	}
	if c.AudioBitrate != "" && !bitratePattern.MatchString(c.AudioBitrate) {
		return fmt.Errorf("invalid audio bitrate %q", c.AudioBitrate)
	}
	if c.SampleRate < 0 || c.SampleRate > 192000 {
		return fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}
	if c.Resolution != "" {
		if err := validateResolution(c.Resolution); err != nil {
			return err
		}
	}
	if c.FrameRate != "" {
		if err := validateFrameRate(c.FrameRate); err != nil {
			return err
		}
	}
	if c.LUTPath != "" {
		if c.VideoCodec == VideoNone || c.VideoCodec == VideoCopy {
			return errors.New("a LUT requires a video re-encode")
		}
		info, err := os.Stat(c.LUTPath)
		if err != nil {
			return fmt.Errorf("lut file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("lut file %q is a directory", c.LUTPath)
		}
	}
	return nil
}

func (c Config) validateCodecs() error {
	switch c.VideoCodec {
	case VideoProRes:
		if _, ok := proresProfiles[c.ProResProfile]; !ok {
			return fmt.Errorf("unknown ProRes profile %q", c.ProResProfile)
		}
		if c.Container != ContainerMOV && c.Container != ContainerMXF {
			return fmt.Errorf("ProRes requires a mov or mxf container, got %s", c.Container)
		}
	case VideoDNxHR:
		if _, ok := dnxhrProfiles[c.DNxHRProfile]; !ok {
			return fmt.Errorf("unknown DNxHR profile %q", c.DNxHRProfile)
		}
		if c.Container != ContainerMOV && c.Container != ContainerMXF {
			return fmt.Errorf("DNxHR requires a mov or mxf container, got %s", c.Container)
		}
	case VideoH264, VideoHEVC, VideoCopy:
		if c.Container == ContainerWAV {
			return fmt.Errorf("%s cannot be stored in a wav container", c.VideoCodec)
		}
	case VideoNone:
	case VideoAV1:
		if c.Engine != EngineDrapto {
			return errors.New("AV1 encodes are only available through the drapto engine")
		}
	default:
		return fmt.Errorf("unsupported video codec %q", c.VideoCodec)
	}
	switch c.AudioCodec {
	case AudioPCM16, AudioPCM24:
		if c.Container == ContainerMP4 {
			return errors.New("PCM audio is not supported in an mp4 container")
		}
	case AudioAAC, AudioOpus, AudioCopy:
		if c.Container == ContainerWAV {
			return fmt.Errorf("%s audio cannot be stored in a wav container", c.AudioCodec)
		}
	default:
		return fmt.Errorf("unsupported audio codec %q", c.AudioCodec)
	}
	return nil
}

func validateResolution(value string) error {
	match := resolutionPattern.FindStringSubmatch(value)
	if match == nil {
		return fmt.Errorf("invalid resolution %q (want WIDTHxHEIGHT)", value)
	}
	for _, part := range match[1:] {
		n, _ := strconv.Atoi(part)
		if n%2 != 0 {
			return fmt.Errorf("invalid resolution %q: dimensions must be even", value)
		}
	}
	return nil
}

func validateFrameRate(value string) error {
	if num, den, ok := strings.Cut(value, "/"); ok {
		n, errN := strconv.Atoi(num)
		d, errD := strconv.Atoi(den)
		if errN != nil || errD != nil || n <= 0 || d <= 0 {
			return fmt.Errorf("invalid frame rate %q", value)
		}
		return nil
	}
	rate, err := strconv.ParseFloat(value, 64)
	if err != nil || rate <= 0 || rate > 240 {
		return fmt.Errorf("invalid frame rate %q", value)
	}
	return nil
}
