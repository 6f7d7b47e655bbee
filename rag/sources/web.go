package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mudler/xlog"
	sitemap "github.com/oxffaa/gopher-parse-sitemap"
	"jaytaylor.com/html2text"
)

// GetWebPage downloads url and converts its HTML to plain text.
func GetWebPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return html2text.FromString(string(body), html2text.Options{PrettyTables: true})
}

// GetWebSitemapContent downloads every page listed in a sitemap. Pages that
// fail to download are skipped.
func GetWebSitemapContent(ctx context.Context, url string) (res []Content, err error) {
	err = sitemap.ParseFromSite(url, func(e sitemap.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		location := e.GetLocation()
		xlog.Debug("Sitemap page", "url", location)
		content, err := GetWebPage(ctx, location)
		if err != nil {
			xlog.Warn("Skipping sitemap page", "url", location, "error", err)
			return nil
		}
		res = append(res, Content{Source: location, Text: content})
		return nil
	})
	return
}
