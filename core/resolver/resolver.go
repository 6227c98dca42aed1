package resolver

import (
	"iter"
	"slices"
)

// ResolvedSource is the primary stream URL plus ordered alternatives to try when the
// primary is rejected. It is derived from the source link and never persisted.
type ResolvedSource struct {
	Platform     Platform `json:"platform"`
	PrimaryURL   string   `json:"primaryUrl"`
	FallbackURLs []string `json:"fallbackUrls"`
}

// Candidates returns the primary URL followed by the fallbacks, with empty entries and
// duplicates removed. Order is preserved.
func (r ResolvedSource) Candidates() []string {
	out := make([]string, 0, 1+len(r.FallbackURLs))
	for _, u := range append([]string{r.PrimaryURL}, r.FallbackURLs...) {
		if u == "" || slices.Contains(out, u) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// Resolver converts a raw link into playable URLs. Implementations must be total and
// side-effect free: a failure to understand the link degrades to returning it unchanged.
type Resolver interface {
	ResolvePrimary(sourceURL string, platform Platform) string
	Fallbacks(sourceURL string, platform Platform) iter.Seq[string]
	Resolve(sourceURL string, platform Platform) ResolvedSource
}

// Heuristic is the default Resolver. It recognises the share-link shapes of Google Drive
// and Dropbox with regular expressions and string rewriting.
type Heuristic struct{}

var _ Resolver = Heuristic{}

// Default is the resolver used by the package-level helpers.
var Default Resolver = Heuristic{}

// ResolvePrimary never fails; see Heuristic.ResolvePrimary.
func ResolvePrimary(sourceURL string, platform Platform) string {
	return Default.ResolvePrimary(sourceURL, platform)
}

// PlatformFallbacks returns the finite fallback sequence for the link.
func PlatformFallbacks(sourceURL string, platform Platform) iter.Seq[string] {
	return Default.Fallbacks(sourceURL, platform)
}

// Resolve computes the full ResolvedSource with the default resolver.
func Resolve(sourceURL string, platform Platform) ResolvedSource {
	return Default.Resolve(sourceURL, platform)
}

// ResolvePrimary maps the link to the URL most likely to stream directly.
//
// SoundCloud links are returned unchanged: streaming them requires an authenticated API
// lookup that this resolver does not perform.
func (Heuristic) ResolvePrimary(sourceURL string, platform Platform) string {
	switch platform {
	case GoogleDrive:
		return resolveGoogleDrive(sourceURL)
	case Dropbox:
		return resolveDropbox(sourceURL)
	default:
		return sourceURL
	}
}

// Fallbacks yields alternative endpoint shapes, most reliable first. Only Google Drive
// has known alternatives; every other platform yields nothing.
func (Heuristic) Fallbacks(sourceURL string, platform Platform) iter.Seq[string] {
	return func(yield func(string) bool) {
		if platform != GoogleDrive {
			return
		}
		id, ok := extractDriveID(sourceURL)
		if !ok {
			return
		}
		for _, build := range driveFallbacks {
			if !yield(build(id)) {
				return
			}
		}
	}
}

func (h Heuristic) Resolve(sourceURL string, platform Platform) ResolvedSource {
	return ResolvedSource{
		Platform:     platform,
		PrimaryURL:   h.ResolvePrimary(sourceURL, platform),
		FallbackURLs: slices.Collect(h.Fallbacks(sourceURL, platform)),
	}
}
