package resolver

import (
	"net/url"
	"strings"

	"blogmusic/logger"
)

const dropboxContentHost = "dl.dropboxusercontent.com"

// resolveDropbox points a share link at the raw-content host and drops the dl flag that
// makes dropbox.com answer with an HTML preview page.
func resolveDropbox(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		logger.Debug("unparseable dropbox link, using original url",
			logger.String("url", sourceURL),
			logger.Any("error", err))
		return sourceURL
	}

	switch strings.ToLower(u.Hostname()) {
	case "www.dropbox.com", "dropbox.com":
		u.Host = dropboxContentHost
	}

	q := u.Query()
	if q.Has("dl") {
		q.Del("dl")
		u.RawQuery = q.Encode()
	}
	u.ForceQuery = false
	return u.String()
}
