package converter

import (
	"path/filepath"
	"strings"
)

// OutputSuffix replaces the source extension in derived file names
const OutputSuffix = "_converted.mid"

// AudioExtensions lists the file extensions offered for conversion
var AudioExtensions = []string{".mp3", ".wav", ".m4a", ".aac"}

// IsAudioFile reports whether a file should be offered for conversion, either
// by extension or by a MIME type in the audio/ family
func IsAudioFile(filename, mimeType string) bool {
	if strings.HasPrefix(strings.ToLower(mimeType), "audio/") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// OutputName derives "<basename>_converted.mid" from the source file name
func OutputName(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + OutputSuffix
}
