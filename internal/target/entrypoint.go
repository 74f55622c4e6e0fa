package target

import (
	"fmt"
	"regexp"
	"strings"

	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
)

// EntryPoint is one renderer target: a named script plus its HTML template.
type EntryPoint struct {
	Name string `yaml:"name" json:"name"`
	JS   string `yaml:"js" json:"js"`
	HTML string `yaml:"html" json:"html"`
}

const entryPointsOption = "renderer.entryPoints"

// constantName is what a DefineName must match to be usable as a JS identifier.
var constantName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ParseEntryPoints validates the raw renderer.entryPoints option. It must be a
// non-empty sequence of {name, js, html} with unique, non-empty names.
func ParseEntryPoints(raw any) ([]EntryPoint, error) {
	var items []any
	switch v := raw.(type) {
	case nil:
		return nil, missingEntryPoints("renderer.entryPoints is required")
	case []EntryPoint:
		items = make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
	case []any:
		items = v
	case []map[string]any:
		items = make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
	default:
		return nil, missingEntryPoints(fmt.Sprintf("renderer.entryPoints must be a sequence, got %T", raw))
	}
	if len(items) == 0 {
		return nil, missingEntryPoints("renderer.entryPoints must not be empty")
	}

	out := make([]EntryPoint, 0, len(items))
	seen := make(map[string]int, len(items))
	for i, item := range items {
		ep, err := toEntryPoint(item)
		if err != nil {
			return nil, ferrors.MissingEntryError(err.Error()).
				WithContext("option", entryPointsOption).
				WithContext("index", i).
				Build()
		}
		if prev, dup := seen[ep.Name]; dup {
			return nil, ferrors.MissingEntryError(fmt.Sprintf("duplicate entry point name %q", ep.Name)).
				WithContext("option", entryPointsOption).
				WithContext("index", i).
				WithContext("first_index", prev).
				Build()
		}
		seen[ep.Name] = i
		out = append(out, ep)
	}
	return out, nil
}

func toEntryPoint(item any) (EntryPoint, error) {
	var ep EntryPoint
	switch v := item.(type) {
	case EntryPoint:
		ep = v
	case map[string]any:
		var err error
		if ep.Name, err = stringField(v, "name"); err != nil {
			return ep, err
		}
		if ep.JS, err = stringField(v, "js"); err != nil {
			return ep, err
		}
		if ep.HTML, err = stringField(v, "html"); err != nil {
			return ep, err
		}
	default:
		return ep, fmt.Errorf("entry point must be a mapping, got %T", item)
	}
	switch {
	case strings.TrimSpace(ep.Name) == "":
		return ep, fmt.Errorf("entry point name is required")
	case strings.TrimSpace(ep.JS) == "":
		return ep, fmt.Errorf("entry point %q is missing js", ep.Name)
	case strings.TrimSpace(ep.HTML) == "":
		return ep, fmt.Errorf("entry point %q is missing html", ep.Name)
	case !constantName.MatchString(DefineName(ep.Name)):
		return ep, fmt.Errorf("entry point name %q does not form a valid constant name %q: use ASCII letters, digits, underscores or spaces",
			ep.Name, DefineName(ep.Name))
	}
	return ep, nil
}

func stringField(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("entry point field %q must be a string, got %T", key, v)
	}
	return s, nil
}

func missingEntryPoints(msg string) error {
	return ferrors.MissingEntryError(msg).WithContext("option", entryPointsOption).Build()
}
