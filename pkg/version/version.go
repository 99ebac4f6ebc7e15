// Package version stamps build metadata into startup logs, the health
// endpoint, and the User-Agent of outbound vendor requests.
//
// Release builds inject both values:
//
//	go build -ldflags "\
//	  -X github.com/paradyne-ai/callcore/pkg/version.release=v1.4.0 \
//	  -X github.com/paradyne-ai/callcore/pkg/version.commit=$(git rev-parse HEAD)"
//
// Unstamped binaries fall back to module build info, then to "dev".
package version

import "runtime/debug"

var (
	release = ""
	commit  = ""
)

// Release reports the stamped release tag, or "dev" for local builds.
func Release() string {
	if release != "" {
		return release
	}
	return "dev"
}

// Commit reports the short VCS revision, from the ldflags stamp first and
// module build info second.
func Commit() string {
	if commit != "" {
		return short(commit)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return short(s.Value)
			}
		}
	}
	return "unknown"
}

// Full combines release and commit for logs and the health payload,
// e.g. "v1.4.0 (a3f8c2d1)".
func Full() string {
	return Release() + " (" + Commit() + ")"
}

// UserAgent identifies this service to vendor APIs, e.g. "callcore/v1.4.0".
func UserAgent() string {
	return "callcore/" + Release()
}

func short(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
