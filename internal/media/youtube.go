package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNoResults is returned when a search finds nothing.
var ErrNoResults = errors.New("no videos found")

// Video is the subset of yt-dlp metadata the bot shows.
type Video struct {
	ID        string
	Title     string
	URL       string
	Uploader  string
	Duration  time.Duration
	Views     int64
	Thumbnail string
}

// Timestamp formats the duration as m:ss or h:mm:ss.
func (v Video) Timestamp() string {
	total := int(v.Duration.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

type ytdlpInfo struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	WebpageURL string      `json:"webpage_url"`
	URL        string      `json:"url"`
	Uploader   string      `json:"uploader"`
	Channel    string      `json:"channel"`
	Duration   float64     `json:"duration"`
	ViewCount  int64       `json:"view_count"`
	Thumbnail  string      `json:"thumbnail"`
	Entries    []ytdlpInfo `json:"entries"`
}

func (i ytdlpInfo) video() Video {
	v := Video{
		ID:        i.ID,
		Title:     i.Title,
		URL:       i.WebpageURL,
		Uploader:  i.Uploader,
		Duration:  time.Duration(i.Duration * float64(time.Second)),
		Views:     i.ViewCount,
		Thumbnail: i.Thumbnail,
	}
	if v.URL == "" {
		v.URL = i.URL
	}
	if v.URL == "" && i.ID != "" {
		v.URL = "https://www.youtube.com/watch?v=" + i.ID
	}
	if v.Uploader == "" {
		v.Uploader = i.Channel
	}
	return v
}

// parseInfo decodes a --dump-single-json document. Playlists and searches
// yield their first entry.
func parseInfo(data []byte) (Video, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return Video{}, errors.Wrap(err, "failed to decode yt-dlp output")
	}
	if info.Entries != nil {
		if len(info.Entries) == 0 {
			return Video{}, ErrNoResults
		}
		info = info.Entries[0]
	}
	if info.ID == "" && info.Title == "" {
		return Video{}, ErrNoResults
	}
	return info.video(), nil
}

// IsURL reports whether the argument looks like a link rather than a query.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Downloader looks up and downloads videos with yt-dlp.
type Downloader struct {
	tools  Tools
	runner Runner
	ws     *Workspace
}

func NewDownloader(tools Tools, runner Runner, ws *Workspace) *Downloader {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Downloader{tools: tools.withDefaults(), runner: runner, ws: ws}
}

// Search returns the top result for query.
func (d *Downloader) Search(ctx context.Context, query string) (Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Video{}, ErrNoResults
	}
	return d.dump(ctx, "ytsearch1:"+query)
}

// Info returns metadata for a video URL.
func (d *Downloader) Info(ctx context.Context, url string) (Video, error) {
	return d.dump(ctx, url)
}

func (d *Downloader) dump(ctx context.Context, target string) (Video, error) {
	out, err := d.runner.Run(ctx, d.tools.YtDlp, "--dump-single-json", "--no-warnings", "--skip-download", target)
	if err != nil {
		return Video{}, err
	}
	return parseInfo(out)
}

// DownloadAudio fetches the audio track as m4a and returns its path. The
// caller removes the file.
func (d *Downloader) DownloadAudio(ctx context.Context, url string) (string, error) {
	out := d.ws.Path("audio", ".m4a")
	_, err := d.runner.Run(ctx, d.tools.YtDlp,
		"-f", "bestaudio[ext=m4a]/bestaudio",
		"--no-playlist", "--no-warnings",
		"-o", out, url)
	if err != nil {
		d.ws.Remove(out)
		return "", err
	}
	return out, nil
}

// DownloadVideo fetches an mp4 and returns its path.
func (d *Downloader) DownloadVideo(ctx context.Context, url string) (string, error) {
	out := d.ws.Path("video", ".mp4")
	_, err := d.runner.Run(ctx, d.tools.YtDlp,
		"-f", "best[ext=mp4]/mp4",
		"--no-playlist", "--no-warnings",
		"-o", out, url)
	if err != nil {
		d.ws.Remove(out)
		return "", err
	}
	return out, nil
}
