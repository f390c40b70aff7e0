package torrentqueue

import (
	"path/filepath"
	"strings"

	"github.com/moistari/rls"

	"fetcharr/internal/transfer"
)

// defaultExtensions is the fallback whitelist for main-file detection when a
// record carries none of its own.
var defaultExtensions = []string{".mkv", ".mp4", ".avi", ".m4v", ".ts", ".wmv"}

// findMainFile picks the single payload file worth keeping: the largest
// file whose extension is whitelisted. Reports false when no file
// qualifies.
func findMainFile(files []transfer.File, wanted []string) (transfer.File, bool) {
	if len(wanted) == 0 {
		wanted = defaultExtensions
	}

	var (
		main  transfer.File
		found bool
	)
	for _, f := range files {
		if !extensionWanted(f.Path, wanted) {
			continue
		}
		if !found || f.Size > main.Size {
			main = f
			found = true
		}
	}
	return main, found
}

func extensionWanted(path string, wanted []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, w := range wanted {
		if !strings.HasPrefix(w, ".") {
			w = "." + w
		}
		if strings.EqualFold(ext, w) {
			return true
		}
	}
	return false
}

// qualityTags extracts quality markers (resolution, source, codec, audio)
// from a release name.
func qualityTags(name string) []string {
	r := rls.ParseString(name)

	var tags []string
	if r.Resolution != "" {
		tags = append(tags, r.Resolution)
	}
	if r.Source != "" {
		tags = append(tags, r.Source)
	}
	tags = append(tags, r.Codec...)
	tags = append(tags, r.Audio...)
	return tags
}

// renderRename expands a rename template against the record name, detected
// quality tags and the main file's extension. Unknown placeholders pass
// through untouched; a template without {ext} keeps the original extension.
func renderRename(template, name string, tags []string, mainPath string) string {
	ext := filepath.Ext(mainPath)
	out := strings.NewReplacer(
		"{name}", name,
		"{quality}", strings.Join(tags, "."),
		"{ext}", ext,
	).Replace(template)

	if !strings.Contains(template, "{ext}") && !strings.HasSuffix(out, ext) {
		out += ext
	}
	return out
}
