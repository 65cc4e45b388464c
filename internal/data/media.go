package data

import (
	"context"
	"fmt"
	"strings"

	"videoanalyzer/internal/biz"
	"videoanalyzer/internal/conf"
	"videoanalyzer/internal/pkg/media"

	"github.com/go-kratos/kratos/v2/log"
)

type mediaOpener struct {
	config media.FFmpegConfig
	logger log.Logger
}

// NewMediaOpener opens local files through ffmpeg.
func NewMediaOpener(c *conf.Media, logger log.Logger) biz.MediaOpener {
	cfg := media.DefaultFFmpegConfig()
	if c != nil {
		cfg.FFmpegPath = c.FFmpegPath
		cfg.FFprobePath = c.FFprobePath
		cfg.Serialize = c.SerializeDecode
	}
	return &mediaOpener{config: cfg, logger: logger}
}

// Open accepts a filesystem path or a file:// URI.
func (o *mediaOpener) Open(ctx context.Context, uri string) (media.Source, error) {
	path, err := localPath(uri)
	if err != nil {
		return nil, err
	}
	return media.OpenFFmpeg(path, o.config, o.logger)
}

func localPath(uri string) (string, error) {
	if rest, ok := strings.CutPrefix(uri, "file://"); ok {
		uri = rest
	} else if i := strings.Index(uri, "://"); i > 0 {
		return "", fmt.Errorf("%w: unsupported scheme %q", media.ErrUnreadable, uri[:i])
	}
	if uri == "" {
		return "", fmt.Errorf("%w: empty path", media.ErrUnreadable)
	}
	return uri, nil
}
