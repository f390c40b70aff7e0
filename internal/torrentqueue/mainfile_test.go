package torrentqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fetcharr/internal/transfer"
)

func TestFindMainFileLargestWhitelisted(t *testing.T) {
	files := []transfer.File{
		{Index: 0, Path: "pack/sample.mkv", Size: 50},
		{Index: 1, Path: "pack/episode.mkv", Size: 5000},
		{Index: 2, Path: "pack/huge.iso", Size: 90000},
	}

	main, ok := findMainFile(files, nil)
	assert.True(t, ok)
	assert.Equal(t, 1, main.Index, "largest whitelisted file wins, not largest overall")
}

func TestFindMainFileCustomExtensions(t *testing.T) {
	files := []transfer.File{
		{Index: 0, Path: "pack/album.flac", Size: 300},
		{Index: 1, Path: "pack/cover.jpg", Size: 10},
	}

	main, ok := findMainFile(files, []string{"flac"})
	assert.True(t, ok)
	assert.Equal(t, 0, main.Index)

	_, ok = findMainFile(files, nil)
	assert.False(t, ok, "default whitelist has no audio extensions")
}

func TestExtensionWantedNormalizesDot(t *testing.T) {
	assert.True(t, extensionWanted("a/B.MKV", []string{"mkv"}))
	assert.True(t, extensionWanted("a/b.mp4", []string{".mp4"}))
	assert.False(t, extensionWanted("a/b.txt", []string{"mkv", "mp4"}))
}

func TestQualityTags(t *testing.T) {
	tags := qualityTags("Some.Show.S01E01.1080p.WEB-DL.x264-GRP")
	assert.Contains(t, tags, "1080p")
}

func TestRenderRename(t *testing.T) {
	tags := []string{"1080p", "WEB-DL"}

	out := renderRename("{name} [{quality}]{ext}", "My Show S01E01", tags, "dir/file.mkv")
	assert.Equal(t, "My Show S01E01 [1080p.WEB-DL].mkv", out)

	// Template without {ext} keeps the original extension.
	out = renderRename("{name}", "My Show S01E01", nil, "dir/file.mkv")
	assert.Equal(t, "My Show S01E01.mkv", out)
}
