package media

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// DefaultFetchLimit caps downloads of thumbnails and attachments.
const DefaultFetchLimit = 16 << 20

var defaultClient = &http.Client{Timeout: 30 * time.Second}

// ErrTooLarge is returned when a download exceeds its limit.
var ErrTooLarge = errors.New("file too large")

// Fetch downloads url, refusing bodies over limit bytes.
func Fetch(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	if client == nil {
		client = defaultClient
	}
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid url")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("download returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > limit {
		return nil, errors.Wrapf(ErrTooLarge, "%s exceeds %s", humanize.Bytes(uint64(resp.ContentLength)), humanize.Bytes(uint64(limit)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "read failed")
	}
	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrTooLarge, "exceeds %s", humanize.Bytes(uint64(limit)))
	}
	return data, nil
}

// PagePreview holds the Open Graph card of a page.
type PagePreview struct {
	URL         string
	Title       string
	Description string
	Image       string
	SiteName    string
}

// Preview reads og: meta tags from url, falling back to <title> and the
// description meta tag.
func Preview(ctx context.Context, client *http.Client, url string) (PagePreview, error) {
	body, err := Fetch(ctx, client, url, 2<<20)
	if err != nil {
		return PagePreview{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return PagePreview{}, errors.Wrap(err, "failed to parse page")
	}

	meta := func(names ...string) string {
		for _, n := range names {
			sel := doc.Find(`meta[property="` + n + `"], meta[name="` + n + `"]`).First()
			if v, ok := sel.Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	p := PagePreview{
		URL:         meta("og:url"),
		Title:       meta("og:title", "twitter:title"),
		Description: meta("og:description", "description"),
		Image:       meta("og:image", "twitter:image"),
		SiteName:    meta("og:site_name"),
	}
	if p.Title == "" {
		p.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if p.URL == "" {
		p.URL = url
	}
	return p, nil
}
