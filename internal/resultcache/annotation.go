package resultcache

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AmirulAndalib/typeorm/internal/sqlnorm"
)

var (
	// ttlRegex matches ttl values like ttl=30s, ttl=5m, ttl=1500 (milliseconds).
	ttlRegex = regexp.MustCompile(`(?:^|\s)ttl=([^\s]+)`)

	// idRegex matches explicit identifiers like id=popular-posts.
	idRegex = regexp.MustCompile(`(?:^|\s)id=([^\s]+)`)
)

// ParseAnnotation parses a cache annotation from a comment line:
//
//	@cache
//	@cache ttl=30s
//	@cache id=popular-posts ttl=5m
//
// Returns (zero, false, nil) when the line is not a cache annotation. A
// malformed or non-positive ttl is a ConfigurationError.
func ParseAnnotation(line string) (Directive, bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed != "@cache" && !strings.HasPrefix(trimmed, "@cache ") {
		return Directive{}, false, nil
	}
	content := strings.TrimSpace(strings.TrimPrefix(trimmed, "@cache"))

	d := Directive{Enabled: true}

	if matches := idRegex.FindStringSubmatch(content); len(matches) == 2 {
		d.Identifier = matches[1]
	}

	if matches := ttlRegex.FindStringSubmatch(content); len(matches) == 2 {
		ttl, err := parseTTL(matches[1])
		if err != nil {
			return Directive{}, false, err
		}
		d.TTL = &ttl
	}

	return d, true, nil
}

// DirectiveFromSQL derives a Directive from @cache annotations embedded in
// the query's comments. Comments are stripped during normalization, so an
// annotation never changes the query's fingerprint. Without an annotation
// the returned directive is disabled.
func DirectiveFromSQL(query string) (Directive, error) {
	for _, comment := range sqlnorm.Comments(query) {
		for _, line := range strings.Split(comment, "\n") {
			d, ok, err := ParseAnnotation(line)
			if err != nil {
				return Directive{}, err
			}
			if ok {
				return d, nil
			}
		}
	}
	return Directive{}, nil
}

// parseTTL accepts Go duration syntax plus a bare integer millisecond count.
func parseTTL(value string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		if ms <= 0 {
			return 0, &ConfigurationError{Field: "annotation ttl", Reason: "must be a positive duration"}
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	ttl, err := time.ParseDuration(value)
	if err != nil {
		return 0, &ConfigurationError{Field: "annotation ttl", Reason: "unparseable duration " + strconv.Quote(value)}
	}
	if ttl <= 0 {
		return 0, &ConfigurationError{Field: "annotation ttl", Reason: "must be a positive duration"}
	}
	return ttl, nil
}
