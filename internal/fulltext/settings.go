// Package fulltext pulls document text for records through an external
// extraction tool (Aperture or Tika) named in configuration.
package fulltext

import "strings"

// Backend names an extraction tool.
type Backend string

const (
	BackendNone     Backend = "none"
	BackendAperture Backend = "aperture"
	BackendTika     Backend = "tika"
)

// Settings mirrors the fulltext configuration section.
type Settings struct {
	// Parser forces a backend. Empty picks the first configured path.
	Parser string
	// AperturePath is the Aperture webcrawler script.
	AperturePath string
	// TikaPath is the tika-app jar.
	TikaPath string
}

// Resolve picks the active backend and its path. An explicit parser wins;
// otherwise Aperture is preferred over Tika. A backend without a path
// resolves to BackendNone.
func (s Settings) Resolve() (Backend, string) {
	parser := strings.ToLower(strings.TrimSpace(s.Parser))

	if (parser == "" && s.AperturePath != "") || parser == string(BackendAperture) {
		if s.AperturePath == "" {
			return BackendNone, ""
		}
		return BackendAperture, s.AperturePath
	}
	if (parser == "" && s.TikaPath != "") || parser == string(BackendTika) {
		if s.TikaPath == "" {
			return BackendNone, ""
		}
		return BackendTika, s.TikaPath
	}
	return BackendNone, ""
}
