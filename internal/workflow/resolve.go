package workflow

import "strings"

// resolveInputs resolves one step's declared Inputs against the execution
// context accumulated so far. Values that aren't resolution sentinels pass
// through unchanged (literal step configuration).
func resolveInputs(inputs map[string]any, context map[string]any, previousStepID string) map[string]any {
	resolved := make(map[string]any, len(inputs))
	for k, v := range inputs {
		resolved[k] = resolveValue(v, context, previousStepID)
	}
	return resolved
}

// resolveValue implements the input resolution grammar:
//
//	"from_previous_step"          -> the immediately preceding step's full output
//	"from_<step-id>"               -> that step's full output
//	"from_<step-id>.<dotted.path>" -> a nested value within that step's output
//
// Objects and arrays are resolved recursively: a "from_..." sentinel
// nested inside a map or slice value resolves in place, so inputs like
// {contact: {email: "from_s1.email"}} resolve the nested sentinel rather
// than passing the literal object through untouched. Any other string, or
// a non-string/map/slice value, passes through unchanged. A referenced step
// that hasn't run yet, or a missing key along the dotted path, resolves to
// nil rather than erroring — steps must tolerate absent optional data.
func resolveValue(v any, context map[string]any, previousStepID string) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, nested := range vv {
			out[k] = resolveValue(nested, context, previousStepID)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, nested := range vv {
			out[i] = resolveValue(nested, context, previousStepID)
		}
		return out
	}

	s, ok := v.(string)
	if !ok {
		return v
	}

	if s == "from_previous_step" {
		return context[previousStepID]
	}

	if !strings.HasPrefix(s, "from_") {
		return v
	}

	rest := strings.TrimPrefix(s, "from_")
	stepID, path, hasPath := strings.Cut(rest, ".")

	stepOutput, ok := context[stepID]
	if !ok {
		return nil
	}
	if !hasPath {
		return stepOutput
	}
	return walkDottedPath(stepOutput, path)
}

// walkDottedPath descends a "." separated path through nested
// map[string]any values, returning nil as soon as any segment is missing or
// the current value isn't a map.
func walkDottedPath(value any, path string) any {
	current := value
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[segment]
		if !ok {
			return nil
		}
	}
	return current
}
