package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposePathShape(t *testing.T) {
	path := ComposePath("app:/yacut", "My Report.PDF")

	assert.Regexp(t, `^app:/yacut/[0-9a-f]{32}_My_Report\.PDF$`, path)
}

func TestComposePathSameNameNeverCollides(t *testing.T) {
	a := ComposePath("app:/yacut", "photo.jpg")
	b := ComposePath("app:/yacut", "photo.jpg")

	assert.NotEqual(t, a, b)
}

func TestComposePathUnsafeNameFallsBack(t *testing.T) {
	path := ComposePath("app:/yacut", "  ../../  ")

	assert.Regexp(t, `^app:/yacut/[0-9a-f]{32}_file$`, path)
}

func TestComposePathStripsDirectories(t *testing.T) {
	path := ComposePath("app:/yacut", `C:\Users\me\notes.txt`)

	assert.Regexp(t, `^app:/yacut/[0-9a-f]{32}_notes\.txt$`, path)
}

func TestDisplayNameRoundTrip(t *testing.T) {
	path := ComposePath("app:/yacut", "My Report.PDF")

	assert.Equal(t, "My_Report.PDF", DisplayName(path))
}

func TestDisplayNameKeepsLaterUnderscores(t *testing.T) {
	assert.Equal(t, "my_notes.txt", DisplayName("app:/yacut/deadbeef_my_notes.txt"))
}

func TestDisplayNameWithoutSeparator(t *testing.T) {
	// A segment with no token prefix is used as-is.
	assert.Equal(t, "plain.txt", DisplayName("app:/yacut/plain.txt"))
}
