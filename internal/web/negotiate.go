package web

import (
	"net/http"
	"strconv"
	"strings"
)

// wantsJSON reports whether the client prefers application/json over
// text/html, i.e. JSON is the best match and its quality is strictly higher.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return false
	}
	return acceptQuality(accept, "application/json") > acceptQuality(accept, "text/html")
}

// acceptQuality returns the quality an Accept header assigns to a media type,
// using the most specific matching range.
func acceptQuality(accept, mediaType string) float64 {
	typ, sub, _ := strings.Cut(mediaType, "/")

	best, bestSpecificity := 0.0, -1
	for _, part := range strings.Split(accept, ",") {
		rangeType, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		rt, rs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(rangeType)), "/")
		if !ok {
			continue
		}

		specificity := -1
		switch {
		case rt == typ && rs == sub:
			specificity = 2
		case rt == typ && rs == "*":
			specificity = 1
		case rt == "*" && rs == "*":
			specificity = 0
		}
		if specificity < bestSpecificity || specificity < 0 {
			continue
		}

		q, ok := parseQuality(params)
		if !ok {
			continue
		}
		if specificity > bestSpecificity || q > best {
			best, bestSpecificity = q, specificity
		}
	}
	return best
}

func parseQuality(params string) (float64, bool) {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.ToLower(strings.TrimSpace(k)) != "q" {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || q < 0 || q > 1 {
			return 0, false
		}
		return q, true
	}
	return 1, true
}
