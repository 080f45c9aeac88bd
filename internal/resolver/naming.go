package resolver

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vmunix/tvgrab/internal/fsutil"
)

// highMP4 marks the site's preferred stream, always saved as .mp4.
const highMP4 = "high mp4"

// Extension returns the file extension, without dot, implied by the text of
// an episode's format anchor. "High MP4" means mp4; anything else is the
// site's own token, e.g. "[AVI]" or "(webm)", unwrapped and lower-cased.
func Extension(formatHint string) string {
	hint := strings.ToLower(strings.TrimSpace(formatHint))
	if strings.Contains(hint, highMP4) {
		return "mp4"
	}
	hint = strings.TrimLeft(hint, "[({<")
	hint = strings.TrimRight(hint, "])}>")
	return fsutil.SanitizeFilename(strings.TrimSpace(hint))
}

// FileName builds the on-disk name of an episode from its label and format
// anchor text.
func FileName(label, formatHint string) string {
	name := fsutil.SanitizeFilename(label)
	if ext := Extension(formatHint); ext != "" {
		name += "." + ext
	}
	return name
}

// withSuffix inserts " (n)" before the extension: "Ep 1.mp4" -> "Ep 1 (2).mp4".
func withSuffix(name string, n int) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + " (" + strconv.Itoa(n) + ")" + ext
}
