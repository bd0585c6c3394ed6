package bot

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/fpt/klein-bot/internal/media"
	"github.com/fpt/klein-bot/internal/session"
)

func videoCard(v media.Video) string {
	lines := []string{
		"🎬 *Title:* " + v.Title,
		"⏱️ *Duration:* " + v.Timestamp(),
	}
	if v.Uploader != "" {
		lines = append(lines, "📺 *Channel:* "+v.Uploader)
	}
	lines = append(lines,
		"👁️ *Views:* "+humanize.Comma(v.Views),
		"🔗 *Link:* "+v.URL,
	)
	return strings.Join(lines, "\n")
}

// sendCard sends the thumbnail with caption, or just the caption when the
// thumbnail cannot be fetched.
func (p *Pipeline) sendCard(ctx context.Context, req *Request, thumbnail, caption string) {
	if thumbnail != "" {
		img, err := media.Fetch(ctx, p.http, thumbnail, p.cfg.Media.FetchLimit)
		if err == nil {
			req.ReplyContent(ctx, session.Content{Image: img, Caption: caption, Mimetype: "image/jpeg"})
			return
		}
		req.logger.Warn("failed to fetch thumbnail", "url", thumbnail, "error", err)
	}
	req.Reply(ctx, caption)
}

func (p *Pipeline) cmdVideoInfo(ctx context.Context, req *Request) error {
	query := req.Command.Text
	if query == "" {
		req.Reply(ctx, "Please provide a YouTube link or video name.")
		return nil
	}

	if media.IsURL(query) {
		preview, err := media.Preview(ctx, p.http, query)
		if err != nil {
			req.logger.Error("failed to preview link", "url", query, "error", err)
			req.Reply(ctx, "Could not read that link.")
			return nil
		}
		caption := "🎬 *Title:* " + preview.Title
		if preview.Description != "" {
			caption += "\n📝 " + preview.Description
		}
		caption += "\n🔗 *Link:* " + preview.URL
		p.sendCard(ctx, req, preview.Image, caption)
		return nil
	}

	if p.videos == nil {
		req.Reply(ctx, "Video search is not available.")
		return nil
	}
	v, err := p.videos.Search(ctx, query)
	if errors.Is(err, media.ErrNoResults) {
		req.Reply(ctx, "No video found for that search.")
		return nil
	}
	if err != nil {
		req.logger.Error("video search failed", "query", query, "error", err)
		req.Reply(ctx, "Error searching for the video. Please try again.")
		req.ReportOwner(ctx, fmt.Sprintf("ytbuscar failed for %q: %v", query, err))
		return nil
	}
	p.sendCard(ctx, req, v.Thumbnail, videoCard(v))
	return nil
}

// resolveVideo turns the argument into a URL, showing the card and enforcing
// the duration limit. It reports false when a reply was already sent.
func (p *Pipeline) resolveVideo(ctx context.Context, req *Request) (string, bool) {
	query := req.Command.Text
	if query == "" {
		req.Reply(ctx, "Please provide a YouTube link or video name.")
		return "", false
	}
	if p.videos == nil {
		req.Reply(ctx, "Video downloads are not available.")
		return "", false
	}

	var (
		v   media.Video
		err error
	)
	if media.IsURL(query) {
		v, err = p.videos.Info(ctx, query)
		if err != nil {
			// Still try the download; yt-dlp reports its own errors.
			req.logger.Warn("failed to read video info", "url", query, "error", err)
			return query, true
		}
	} else {
		v, err = p.videos.Search(ctx, query)
		if errors.Is(err, media.ErrNoResults) {
			req.Reply(ctx, "No video found for that search.")
			return "", false
		}
		if err != nil {
			req.logger.Error("video search failed", "query", query, "error", err)
			req.Reply(ctx, "Error searching for the video. Please try again.")
			return "", false
		}
	}

	if v.Duration > p.cfg.MaxYouTube() {
		req.Reply(ctx, fmt.Sprintf("The video is too long. Please choose one shorter than %d minutes.", int(p.cfg.MaxYouTube().Minutes())))
		return "", false
	}
	p.sendCard(ctx, req, v.Thumbnail, videoCard(v))
	if v.URL != "" {
		return v.URL, true
	}
	return query, true
}

func (p *Pipeline) cmdPlayAudio(ctx context.Context, req *Request) error {
	url, ok := p.resolveVideo(ctx, req)
	if !ok {
		return nil
	}
	path, err := p.videos.DownloadAudio(ctx, url)
	if err != nil {
		req.logger.Error("audio download failed", "url", url, "error", err)
		req.Reply(ctx, "Error downloading the audio. Please try again.")
		return nil
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read downloaded audio")
	}
	req.ReplyContent(ctx, session.Content{Audio: data, Mimetype: "audio/mp4"})
	return nil
}

func (p *Pipeline) cmdPlayVideo(ctx context.Context, req *Request) error {
	url, ok := p.resolveVideo(ctx, req)
	if !ok {
		return nil
	}
	path, err := p.videos.DownloadVideo(ctx, url)
	if err != nil {
		req.logger.Error("video download failed", "url", url, "error", err)
		req.Reply(ctx, "Error downloading the video. Please try again.")
		return nil
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read downloaded video")
	}
	req.ReplyContent(ctx, session.Content{Video: data, Mimetype: "video/mp4"})
	return nil
}
