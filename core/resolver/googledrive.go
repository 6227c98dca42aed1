package resolver

import (
	"net/url"
	"regexp"

	"blogmusic/logger"
)

// Share-link shapes, tried in order. The bare token is a last resort for pasted ids or
// unusual links that still carry one.
var drivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`([a-zA-Z0-9_-]{25,})`),
}

var driveFallbacks = []func(id string) string{
	func(id string) string { return "https://docs.google.com/uc?export=download&id=" + url.QueryEscape(id) },
	func(id string) string { return "https://drive.google.com/uc?export=open&id=" + url.QueryEscape(id) },
	func(id string) string {
		return "https://drive.usercontent.google.com/download?id=" + url.QueryEscape(id) + "&export=download"
	},
}

func extractDriveID(sourceURL string) (string, bool) {
	for _, re := range drivePatterns {
		if m := re.FindStringSubmatch(sourceURL); len(m) == 2 && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

func resolveGoogleDrive(sourceURL string) string {
	id, ok := extractDriveID(sourceURL)
	if !ok {
		logger.Debug("google drive link without file id, using original url",
			logger.String("url", sourceURL))
		return sourceURL
	}
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(id)
}
