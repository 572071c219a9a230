package cookcard

import (
	"net/url"
	"sort"
	"strings"
)

// Platform identifies the social network hosting a source URL
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformPinterest Platform = "pinterest"
	PlatformOther     Platform = "other"
)

var hostPrefixes = []string{"www.", "m.", "mobile."}

var trackingParams = map[string]struct{}{
	"igshid":         {},
	"igsh":           {},
	"si":             {},
	"feature":        {},
	"fbclid":         {},
	"gclid":          {},
	"_r":             {},
	"_t":             {},
	"is_from_webapp": {},
	"sender_device":  {},
}

var trackingPrefixes = []string{"utm_", "share_"}

// NormalizeURL canonicalizes a share URL so equivalent links hash to the same cache key.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrUnsupportedScheme
	}

	host := strings.ToLower(u.Hostname())
	for _, prefix := range hostPrefixes {
		host = strings.TrimPrefix(host, prefix)
	}
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host = host + ":" + port
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	query := u.Query()

	switch {
	case host == "youtu.be" && path != "":
		query.Set("v", strings.TrimPrefix(path, "/"))
		host, path = "youtube.com", "/watch"
	case host == "youtube.com" && strings.HasPrefix(path, "/shorts/"):
		query.Set("v", strings.TrimPrefix(path, "/shorts/"))
		path = "/watch"
	}

	for key := range query {
		if isTrackingParam(key) {
			query.Del(key)
		}
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if encoded := encodeSorted(query); encoded != "" {
		b.WriteByte('?')
		b.WriteString(encoded)
	}
	return b.String(), nil
}

// DetectPlatform classifies a normalized URL by host
func DetectPlatform(normalized string) Platform {
	u, err := url.Parse(normalized)
	if err != nil {
		return PlatformOther
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case hostMatches(host, "youtube.com"), hostMatches(host, "youtu.be"):
		return PlatformYouTube
	case hostMatches(host, "tiktok.com"):
		return PlatformTikTok
	case hostMatches(host, "instagram.com"):
		return PlatformInstagram
	case hostMatches(host, "facebook.com"), hostMatches(host, "fb.watch"):
		return PlatformFacebook
	case hostMatches(host, "pinterest.com"), hostMatches(host, "pin.it"):
		return PlatformPinterest
	default:
		return PlatformOther
	}
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	if _, ok := trackingParams[k]; ok {
		return true
	}
	for _, prefix := range trackingPrefixes {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// encodeSorted is url.Values.Encode with values also sorted, so parameter order never matters.
func encodeSorted(v url.Values) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vals := append([]string(nil), v[k]...)
		sort.Strings(vals)
		for _, val := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}
