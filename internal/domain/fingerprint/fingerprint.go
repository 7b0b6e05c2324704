// Package fingerprint derives stable cache keys for pages.
//
// Two visits to the same logical page (different session IDs, tracking
// parameters, or product IDs in the path) map to the same key. A different
// search query, category, sort order, or page number maps to a different
// key. The key has the form "{domain}:{16 hex chars}".
package fingerprint

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/utils"
)

// HashLength is the number of hex characters kept from the digest
const HashLength = 16

// MaxSummaryClasses bounds how many classes of a structure summary count
const MaxSummaryClasses = 10

var (
	numericSegment = regexp.MustCompile(`^\d+$`)
	uuidSegment    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	asinSegment    = regexp.MustCompile(`^[A-Z0-9]{10}$`)
)

// Tracking and session parameters, never part of page identity
var denyParams = map[string]bool{
	"ref": true, "ref_": true, "fbclid": true, "gclid": true, "msclkid": true,
	"session": true, "sessionid": true, "sid": true, "token": true,
	"_ga": true, "mc_cid": true, "mc_eid": true, "tag": true,
	"affiliate": true, "clickid": true, "spm": true,
}

// Parameters that change page structure
var allowParams = map[string]bool{
	"q": true, "query": true, "search": true, "keyword": true, "k": true, "s": true,
	"category": true, "cat": true, "c": true,
	"sort": true, "sort_by": true, "order": true, "orderby": true,
	"page": true, "p": true,
	"type": true, "filter": true,
}

var hasher = utils.NewHasher(utils.BLAKE2b128)

// Fingerprint returns "{domain}:{hash}" for a URL and optional DOM summary
func Fingerprint(rawURL string, summary *types.StructureSummary) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		u = &url.URL{Path: rawURL}
	}

	key := hasher.HashJoined(
		NormalizePath(u.EscapedPath()),
		CanonicalParams(u.Query()),
		SummaryDigest(summary),
	)
	return hostDomain(u) + ":" + utils.Short(key, HashLength)
}

// Domain returns the host of a URL with "www." and the port stripped
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "unknown"
	}
	return hostDomain(u)
}

// DomainOf returns the domain part of a fingerprint
func DomainOf(fp string) string {
	if i := strings.LastIndexByte(fp, ':'); i > 0 {
		return fp[:i]
	}
	return fp
}

func hostDomain(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "unknown"
	}
	return host
}

// NormalizePath replaces IDs in path segments with placeholders
func NormalizePath(path string) string {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		switch {
		case seg == "":
		case numericSegment.MatchString(seg):
			segments[i] = "{id}"
		case uuidSegment.MatchString(seg):
			segments[i] = "{uuid}"
		case asinSegment.MatchString(seg) && strings.ContainsAny(seg, "0123456789"):
			segments[i] = "{asin}"
		}
	}
	return strings.Join(segments, "/")
}

// CanonicalParams keeps allow-listed params, sorted by key then value
func CanonicalParams(q url.Values) string {
	var pairs []string
	for k, values := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || denyParams[lk] || !allowParams[lk] {
			continue
		}
		for _, v := range values {
			pairs = append(pairs, lk+"="+strings.TrimSpace(v))
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// SummaryDigest serializes a structure summary canonically.
// Returns "" for nil or empty summaries.
func SummaryDigest(s *types.StructureSummary) string {
	if s == nil {
		return ""
	}

	classes := append([]types.ClassCount(nil), s.TopClasses...)
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Count != classes[j].Count {
			return classes[i].Count > classes[j].Count
		}
		return classes[i].Class < classes[j].Class
	})
	if len(classes) > MaxSummaryClasses {
		classes = classes[:MaxSummaryClasses]
	}

	containers := append([]types.ContainerCount(nil), s.Containers...)
	sort.Slice(containers, func(i, j int) bool {
		return containers[i].Tag < containers[j].Tag
	})

	flags := make([]string, 0, len(s.Flags))
	for k, v := range s.Flags {
		if v {
			flags = append(flags, k)
		}
	}
	sort.Strings(flags)

	if len(classes) == 0 && len(containers) == 0 && len(flags) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("c:")
	for i, c := range classes {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%d", c.Class, c.Count)
	}
	b.WriteString(";t:")
	for i, c := range containers {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%d", c.Tag, c.Count)
	}
	b.WriteString(";f:")
	b.WriteString(strings.Join(flags, ","))
	return b.String()
}
