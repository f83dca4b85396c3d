package request

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/s0up4200/reqflow/reqconfig"
	"github.com/s0up4200/reqflow/transport"
)

var errEmptyEndpoint = errors.New("empty endpoint")

// BuildURL composes origin, path and endpoint into the final URL and appends
// query. An absolute endpoint (http://, https:// or //) is used verbatim.
func BuildURL(ctx context.Context, endpoint string, query map[string]any, cfg reqconfig.RequestConfig, call *reqconfig.Call) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", errEmptyEndpoint
	}

	u := endpoint
	if !isAbsolute(endpoint) {
		origin, err := reqconfig.Resolve(ctx, cfg.Origin, call)
		if err != nil {
			return "", fmt.Errorf("failed to resolve origin: %w", err)
		}
		u = join(origin, cfg.Path, endpoint)
	}

	if q := transport.EncodeQuery(query); q != "" {
		if strings.Contains(u, "?") {
			u += "&" + q
		} else {
			u += "?" + q
		}
	}
	return u, nil
}

func isAbsolute(endpoint string) bool {
	lower := strings.ToLower(endpoint)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}

// join concatenates segments with a single slash, skipping empty ones. The
// origin keeps its scheme separator; an empty origin yields a rooted path.
func join(origin, path, endpoint string) string {
	origin = strings.TrimRight(origin, "/")

	parts := []string{origin}
	if path = strings.Trim(path, "/"); path != "" {
		parts = append(parts, path)
	}
	if endpoint = strings.TrimLeft(endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}
	if origin == "" {
		return "/" + strings.Join(parts[1:], "/")
	}
	return strings.Join(parts, "/")
}
