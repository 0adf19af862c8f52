package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}`)

var videoHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

// ValidateURL checks that raw is an absolute http(s) URL with a host.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, Fail(KindInvalidURL, MsgURLRequired, nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, Fail(KindInvalidURL, MsgInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, Fail(KindInvalidURL, MsgInvalidURL, nil)
	}
	return u, nil
}

// VideoID returns the 11-character video id when raw is a watch, short-link,
// embed or shorts URL on a video-platform host.
func VideoID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !videoHosts[strings.ToLower(u.Hostname())] {
		return "", false
	}

	var candidate string
	switch {
	case strings.EqualFold(u.Hostname(), "youtu.be"):
		candidate = strings.TrimPrefix(u.Path, "/")
	case u.Path == "/watch":
		candidate = u.Query().Get("v")
	case strings.HasPrefix(u.Path, "/embed/"):
		candidate = strings.TrimPrefix(u.Path, "/embed/")
	case strings.HasPrefix(u.Path, "/shorts/"):
		candidate = strings.TrimPrefix(u.Path, "/shorts/")
	}

	id := videoIDRe.FindString(candidate)
	if id == "" {
		return "", false
	}
	return id, true
}
