package cookcard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"LowercasesHostAndStripsWWW", "HTTPS://WWW.TikTok.com/@chef/video/123", "https://tiktok.com/@chef/video/123"},
		{"DropsFragment", "https://instagram.com/reel/abc/#comments", "https://instagram.com/reel/abc"},
		{"DropsTrackingParams", "https://www.instagram.com/reel/abc/?igshid=xyz&utm_source=ig_web", "https://instagram.com/reel/abc"},
		{"SortsRemainingParams", "https://example.com/r?b=2&a=1&utm_medium=x", "https://example.com/r?a=1&b=2"},
		{"ShortYouTubeLink", "https://youtu.be/dQw4w9WgXcQ?si=abc", "https://youtube.com/watch?v=dQw4w9WgXcQ"},
		{"YouTubeShorts", "https://m.youtube.com/shorts/abc123?feature=share", "https://youtube.com/watch?v=abc123"},
		{"StripsTrailingSlash", "https://pinterest.com/pin/42/", "https://pinterest.com/pin/42"},
		{"DropsShareParams", "https://tiktok.com/v/1?share_app_id=9&_r=1&_t=x", "https://tiktok.com/v/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURL_EquivalentLinksCollapse(t *testing.T) {
	a, err := NormalizeURL("https://youtu.be/xyz")
	require.NoError(t, err)
	b, err := NormalizeURL("https://www.youtube.com/watch?v=xyz&feature=youtu.be")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestNormalizeURL_Rejects(t *testing.T) {
	_, err := NormalizeURL("not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = NormalizeURL("ftp://example.com/file")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestDetectPlatform(t *testing.T) {
	assert.Equal(t, PlatformYouTube, DetectPlatform("https://youtube.com/watch?v=1"))
	assert.Equal(t, PlatformTikTok, DetectPlatform("https://vm.tiktok.com/abc"))
	assert.Equal(t, PlatformInstagram, DetectPlatform("https://instagram.com/reel/1"))
	assert.Equal(t, PlatformFacebook, DetectPlatform("https://fb.watch/1"))
	assert.Equal(t, PlatformPinterest, DetectPlatform("https://pin.it/1"))
	assert.Equal(t, PlatformOther, DetectPlatform("https://notyoutube.com/x"))
}
