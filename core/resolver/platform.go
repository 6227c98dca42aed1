// Package resolver turns human-shared music links into URLs an audio element can stream.
package resolver

import "strings"

// Platform 音频链接的托管平台
type Platform string

const (
	Direct      Platform = "direct"
	SoundCloud  Platform = "soundcloud"
	GoogleDrive Platform = "googledrive"
	Dropbox     Platform = "dropbox"
)

// Platforms lists every supported platform, Direct first.
var Platforms = []Platform{Direct, SoundCloud, GoogleDrive, Dropbox}

// ParsePlatform accepts the stored/admin spellings ("GoogleDrive", "google_drive",
// "gdrive", "Dropbox", ...). Anything unknown is Direct.
func ParsePlatform(s string) Platform {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	switch key {
	case "soundcloud":
		return SoundCloud
	case "googledrive", "gdrive", "drive":
		return GoogleDrive
	case "dropbox":
		return Dropbox
	default:
		return Direct
	}
}

// IsValid reports whether p is one of the known platforms.
func (p Platform) IsValid() bool {
	switch p {
	case Direct, SoundCloud, GoogleDrive, Dropbox:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

// IdentifyPlatform classifies a link by host substrings. Used when the caller did not tag
// the platform explicitly.
func IdentifyPlatform(sourceURL string) Platform {
	lower := strings.ToLower(sourceURL)
	switch {
	case strings.Contains(lower, "drive.google.com"), strings.Contains(lower, "docs.google.com"):
		return GoogleDrive
	case strings.Contains(lower, "dropbox.com"):
		return Dropbox
	case strings.Contains(lower, "soundcloud.com"):
		return SoundCloud
	default:
		return Direct
	}
}
