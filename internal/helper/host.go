package helper

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/match"
)

// MatchHost reports whether address is covered by any of the host patterns.
// Patterns take the form "host[:port]" where the host part may contain the
// glob characters '*' and '?'. A leading "*." also covers the bare apex, so
// "*.example.com" matches both "example.com" and "api.example.com". A pattern
// without a port matches any port.
func MatchHost(address string, patterns []string) bool {
	hostname, port := splitHostPort(address)
	for _, pattern := range patterns {
		h, p := splitHostPort(pattern)
		if matchHostname(hostname, h) && (p == "" || p == port) {
			return true
		}
	}
	return false
}

func matchHostname(hostname string, h string) bool {
	if h == "*" {
		return true
	}
	if strings.HasPrefix(h, "*.") && hostname == h[2:] {
		return true
	}
	return match.Match(hostname, h)
}

func splitHostPort(address string) (string, string) {
	index := strings.LastIndex(address, ":")
	if index == -1 {
		return address, ""
	}
	return address[:index], address[index+1:]
}

// PatternRegex translates a host pattern into the anchored regular expression
// mitmproxy expects for its --ignore-hosts and --allow-hosts options.
// mitmproxy matches those against "host:port", so a pattern without an
// explicit port is given an optional port suffix.
func PatternRegex(pattern string) string {
	host, port := splitHostPort(pattern)
	var b strings.Builder
	b.WriteString("^")
	if strings.HasPrefix(host, "*.") {
		b.WriteString(`(?:.+\.)?`)
		host = host[2:]
	}
	b.WriteString(globRegex(host))
	if port == "" {
		b.WriteString(`(?::\d+)?`)
	} else {
		b.WriteString(regexp.QuoteMeta(":" + port))
	}
	b.WriteString("$")
	return b.String()
}

// PatternRegexes translates a pattern list, dropping duplicates.
func PatternRegexes(patterns []string) []string {
	return lo.Map(lo.Uniq(patterns), func(pattern string, _ int) string {
		return PatternRegex(pattern)
	})
}

// globRegex escapes s for use inside a regular expression, keeping '*' and
// '?' as wildcards.
func globRegex(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}
