package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned for anything that is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("url must be an absolute http or https url")

// Normalize prepares a target URL for probing:
//  1. Surrounding whitespace is trimmed.
//  2. Scheme and host are lowercased.
//  3. Default ports (80 for http, 443 for https) are stripped.
//  4. The fragment is removed, since it is never sent to the server.
//
// Path, query and trailing slashes are kept as given; the server may treat
// them differently.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && u.Port() == "80") || (u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}

	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}
