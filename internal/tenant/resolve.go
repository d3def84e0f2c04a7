package tenant

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	// HeaderName is the header carrying the organization id.
	HeaderName = "X-Organization-ID"
	// QueryParam is the query parameter carrying the organization id.
	QueryParam = "organizationId"

	pathMarker = "/organizations/"
)

// Resolve extracts the organization id from r. Sources are tried in order: the path segment
// following "/organizations/", the X-Organization-ID header, the organizationId query parameter.
// The first parseable value wins; unparseable values are treated as absent.
func Resolve(r *http.Request) (int64, bool) {
	if r == nil {
		return 0, false
	}
	if r.URL != nil {
		if id, ok := FromPath(r.URL.Path); ok {
			return id, true
		}
	}
	if id, ok := Parse(r.Header.Get(HeaderName)); ok {
		return id, true
	}
	if r.URL != nil {
		if id, ok := Parse(r.URL.Query().Get(QueryParam)); ok {
			return id, true
		}
	}
	return 0, false
}

// FromPath returns the id in the segment after "/organizations/" in path.
func FromPath(path string) (int64, bool) {
	i := strings.Index(path, pathMarker)
	if i < 0 {
		return 0, false
	}
	seg := path[i+len(pathMarker):]
	if j := strings.IndexByte(seg, '/'); j >= 0 {
		seg = seg[:j]
	}
	return Parse(seg)
}

// Parse parses a positive organization id.
func Parse(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
