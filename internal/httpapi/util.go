package httpapi

import "strconv"

// queryInt parses a query-string integer parameter, falling back to def
// when absent or malformed.
func queryInt(ctx *RequestContext, key string, def int) int {
	raw := ctx.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
