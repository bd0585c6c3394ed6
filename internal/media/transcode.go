package media

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

const (
	videoStickerFilter = "fps=10,scale=512:512"
	imageStickerFilter = "scale=512:512"
)

// Transcoder converts media with ffmpeg and tags stickers with webpmux.
type Transcoder struct {
	tools  Tools
	runner Runner
	ws     *Workspace
}

func NewTranscoder(tools Tools, runner Runner, ws *Workspace) *Transcoder {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Transcoder{tools: tools.withDefaults(), runner: runner, ws: ws}
}

// StickerFilter is the ffmpeg -vf value for a sticker source.
func StickerFilter(video bool) string {
	if video {
		return videoStickerFilter
	}
	return imageStickerFilter
}

func webpArgs(in, out string, video bool) []string {
	return []string{
		"-y", "-i", in,
		"-vcodec", "libwebp",
		"-lossless", "1",
		"-loop", "0",
		"-preset", "default",
		"-an",
		"-vf", StickerFilter(video),
		out,
	}
}

// ToWebP converts an image or short video into a 512x512 webp.
func (t *Transcoder) ToWebP(ctx context.Context, src []byte, video bool) ([]byte, error) {
	ext := ".jpg"
	if video {
		ext = ".mp4"
	}
	in, err := t.ws.Write("temp", ext, src)
	if err != nil {
		return nil, err
	}
	out := t.ws.Path("sticker", ".webp")
	defer t.ws.Remove(in, out)

	if _, err := t.runner.Run(ctx, t.tools.FFmpeg, webpArgs(in, out, video)...); err != nil {
		return nil, err
	}
	return readOutput(out)
}

// ToJPEG converts a webp sticker back into a still image.
func (t *Transcoder) ToJPEG(ctx context.Context, webp []byte) ([]byte, error) {
	in, err := t.ws.Write("temp_file", ".webp", webp)
	if err != nil {
		return nil, err
	}
	out := t.ws.Path("image", ".jpg")
	defer t.ws.Remove(in, out)

	if _, err := t.runner.Run(ctx, t.tools.FFmpeg, "-y", "-i", in, out); err != nil {
		return nil, err
	}
	return readOutput(out)
}

// EmbedExif writes the exif blob into a webp with webpmux -set exif.
func (t *Transcoder) EmbedExif(ctx context.Context, webp, exif []byte) ([]byte, error) {
	in, err := t.ws.Write("sticker", ".webp", webp)
	if err != nil {
		return nil, err
	}
	meta, err := t.ws.Write("meta", ".temp.exif", exif)
	if err != nil {
		t.ws.Remove(in)
		return nil, err
	}
	defer t.ws.Remove(in, meta)

	if _, err := t.runner.Run(ctx, t.tools.WebPMux, "-set", "exif", meta, in, "-o", in); err != nil {
		return nil, err
	}
	return readOutput(in)
}

func readOutput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read transcoder output")
	}
	if len(data) == 0 {
		return nil, errors.Errorf("transcoder produced an empty file: %s", path)
	}
	return data, nil
}
