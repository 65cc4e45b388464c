package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
)

// FFmpegConfig holds configuration for the ffmpeg-backed source.
type FFmpegConfig struct {
	FFmpegPath  string // resolved from PATH when empty
	FFprobePath string
	ScanWidth   int  // coarse-scan frame size, aspect ratio is not preserved
	ScanHeight  int
	Serialize   bool // route all decodes through one lock
}

// DefaultFFmpegConfig returns default configuration.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		ScanWidth:  160,
		ScanHeight: 90,
	}
}

// FFmpegSource decodes a local media file by running ffmpeg/ffprobe.
// Every call spawns its own process, so seeks are independent.
type FFmpegSource struct {
	path   string
	config FFmpegConfig
	log    *log.Helper

	once    sync.Once
	info    *Info
	infoErr error
}

// OpenFFmpeg resolves the binaries and checks the file is readable.
func OpenFFmpeg(path string, config FFmpegConfig, logger log.Logger) (*FFmpegSource, error) {
	var err error
	if config.FFmpegPath == "" {
		if config.FFmpegPath, err = exec.LookPath("ffmpeg"); err != nil {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
	}
	if config.FFprobePath == "" {
		if config.FFprobePath, err = exec.LookPath("ffprobe"); err != nil {
			return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
	}
	if config.ScanWidth <= 0 || config.ScanHeight <= 0 {
		def := DefaultFFmpegConfig()
		config.ScanWidth, config.ScanHeight = def.ScanWidth, def.ScanHeight
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	f.Close()

	return &FFmpegSource{
		path:   path,
		config: config,
		log:    log.NewHelper(log.With(logger, "component", "ffmpeg")),
	}, nil
}

type probeResult struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe runs ffprobe once and caches the result.
func (s *FFmpegSource) Probe(ctx context.Context) (*Info, error) {
	s.once.Do(func() {
		s.info, s.infoErr = s.probe(ctx)
	})
	return s.info, s.infoErr
}

func (s *FFmpegSource) probe(ctx context.Context) (*Info, error) {
	out, err := s.run(ctx, s.config.FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		s.path,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe failed: %v", ErrUnreadable, err)
	}

	var probe probeResult
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrUnreadable, err)
	}

	info := &Info{Format: probe.Format.FormatName}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	for _, st := range probe.Streams {
		switch st.CodecType {
		case "video":
			info.HasVideo = true
			info.Width, info.Height = st.Width, st.Height
		case "audio":
			info.HasAudio = true
		}
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("%w: no duration", ErrUnreadable)
	}
	s.log.Debugf("probed %s: duration=%.2fs video=%v audio=%v", s.path, info.Duration, info.HasVideo, info.HasAudio)
	return info, nil
}

// ScanFrames streams fixed-size grayscale frames from a single ffmpeg process.
func (s *FFmpegSource) ScanFrames(ctx context.Context, interval float64, fn FrameFunc) error {
	if interval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %g", interval)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, h := s.config.ScanWidth, s.config.ScanHeight
	cmd := exec.CommandContext(ctx, s.config.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", s.path,
		"-an",
		"-vf", fmt.Sprintf("fps=1/%g,scale=%d:%d,format=gray", interval, w, h),
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	r := bufio.NewReaderSize(stdout, w*h*4)
	var cbErr error
	for i := 0; ; i++ {
		img := image.NewGray(image.Rect(0, 0, w, h))
		if _, err := io.ReadFull(r, img.Pix); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				cbErr = fmt.Errorf("failed to read frame %d: %w", i, err)
			}
			break
		}
		if cbErr = fn(float64(i)*interval, img); cbErr != nil {
			cancel()
			break
		}
	}
	io.Copy(io.Discard, r)
	waitErr := cmd.Wait()

	if cbErr != nil {
		return cbErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg scan failed: %w: %s", waitErr, stderr.String())
	}
	return nil
}

// Frame decodes the frame at ts as PNG scaled down to maxWidth.
func (s *FFmpegSource) Frame(ctx context.Context, ts float64, maxWidth int) (image.Image, error) {
	if maxWidth <= 0 {
		maxWidth = 512
	}
	out, err := s.run(ctx, s.config.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':-2", maxWidth),
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract frame at %.3fs: %w", ts, err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame at %.3fs: %w", ts, err)
	}
	return img, nil
}

// Audio decodes the full track as mono signed 16-bit PCM.
func (s *FFmpegSource) Audio(ctx context.Context, sampleRate int) (*PCM, error) {
	info, err := s.Probe(ctx)
	if err != nil {
		return nil, err
	}
	if !info.HasAudio {
		return nil, ErrNoAudio
	}
	out, err := s.run(ctx, s.config.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", s.path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract audio: %w", err)
	}

	samples := make([]float64, len(out)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(out[i*2:]))
		samples[i] = float64(v) / 32768
	}
	s.log.Debugf("decoded %d audio samples at %d Hz", len(samples), sampleRate)
	return &PCM{Samples: samples, SampleRate: sampleRate}, nil
}

// ConcurrentSeek is true unless decodes were configured to serialise.
func (s *FFmpegSource) ConcurrentSeek() bool {
	return !s.config.Serialize
}

// Close is a no-op; no handle stays open between calls.
func (s *FFmpegSource) Close() error { return nil }

func (s *FFmpegSource) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}
