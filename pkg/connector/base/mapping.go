package base

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
)

// MapParams translates request parameter names into backend names.
//
// Every request parameter named in mapping is copied under its mapped name.
// Every other request parameter passes through under its own name unless an
// explicit mapping already produced that name. When two request parameters
// map to the same backend name, the lexicographically smallest request name
// wins. The result is a new Params; the input is not modified.
func MapParams(params mcp.Params, mapping map[string]string) mcp.Params {
	out := make(mcp.Params, len(params))

	sources := make([]string, 0, len(mapping))
	for from := range mapping {
		sources = append(sources, from)
	}
	sort.Strings(sources)

	explicit := make(map[string]struct{}, len(mapping))
	for _, from := range sources {
		v, ok := params[from]
		if !ok {
			continue
		}
		to := mapping[from]
		if _, taken := explicit[to]; taken {
			continue
		}
		explicit[to] = struct{}{}
		out[to] = v
	}

	for name, v := range params {
		if _, mapped := mapping[name]; mapped {
			continue
		}
		if _, taken := explicit[name]; taken {
			continue
		}
		out[name] = v
	}

	return out
}

var placeholderPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// ExpandPath substitutes every {name} placeholder of template with the
// path-escaped string form of params[name] and deletes the consumed entries
// from params. A placeholder with no matching parameter is a validation
// error.
func ExpandPath(template string, params mcp.Params) (string, error) {
	var missing []string
	used := make(map[string]struct{})

	path := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		used[name] = struct{}{}
		return url.PathEscape(v.String())
	})

	if len(missing) > 0 {
		return "", errors.Newf(errors.ErrorTypeValidation,
			"path %q has unresolved placeholders: %s", template, strings.Join(missing, ", ")).
			WithDetail("missing_parameters", missing)
	}

	for name := range used {
		delete(params, name)
	}
	return path, nil
}
