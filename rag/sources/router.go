package sources

import (
	"context"
	"strings"

	"github.com/mudler/xlog"
)

// Config carries credentials used while fetching sources.
type Config struct {
	// GitPrivateKey is a base64 encoded SSH private key used for git URLs.
	GitPrivateKey string
}

// Content is a piece of text fetched from a source.
type Content struct {
	Source string
	Text   string
}

// IsGitURL reports whether url points to a git repository.
func IsGitURL(url string) bool {
	return strings.HasSuffix(url, ".git") ||
		strings.HasPrefix(url, "git@") ||
		strings.HasPrefix(url, "ssh://")
}

// SourceRouter fetches url with the matching fetcher: git repositories are
// cloned, sitemaps are walked page by page, anything else is downloaded as a
// single web page.
func SourceRouter(ctx context.Context, url string, config *Config) ([]Content, error) {
	if config == nil {
		config = &Config{}
	}

	xlog.Info("Downloading content", "url", url)
	switch {
	case IsGitURL(url):
		return GetGitRepositoryContent(ctx, url, config.GitPrivateKey)
	case strings.HasSuffix(url, "sitemap.xml"):
		content, err := GetWebSitemapContent(ctx, url)
		if err != nil {
			return nil, err
		}
		xlog.Info("Downloaded all content from sitemap", "url", url, "pages", len(content))
		return content, nil
	}

	text, err := GetWebPage(ctx, url)
	if err != nil {
		return nil, err
	}
	return []Content{{Source: url, Text: text}}, nil
}
