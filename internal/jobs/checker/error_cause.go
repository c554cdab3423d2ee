package checker

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var quotedClauseRe = regexp.MustCompile(`"([^"]+)"`)

// ExtractErrorCause reduces a transport error to its most specific clause, e.g.
// "connection refused" out of a proxyconnect dial error.
func ExtractErrorCause(err error) string {
	if err == nil {
		return ""
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}

	text := strings.TrimSpace(err.Error())
	if match := quotedClauseRe.FindStringSubmatch(text); match != nil {
		if cause := strings.TrimSpace(match[1]); cause != "" {
			return cause
		}
	}

	if i := strings.LastIndex(text, ": "); i >= 0 {
		if cause := strings.TrimSpace(text[i+2:]); cause != "" {
			return cause
		}
	}

	return text
}
