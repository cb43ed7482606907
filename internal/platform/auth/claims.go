package auth

import "strings"

// DefaultGroupsClaim is the token claim consulted for group memberships when
// no override is configured.
const DefaultGroupsClaim = "groups"

// Claims is the verifier-agnostic projection of a verified ID token.
type Claims struct {
	Subject string
	Email   string
	Groups  []string
}

// GroupsFromClaims extracts group names from the named claim. A missing claim
// yields an empty set rather than an error; tokens minted by different
// providers encode the claim as a string, a string list, or a name->bool map,
// and all three shapes are accepted.
func GroupsFromClaims(claims map[string]any, key string) []string {
	raw, ok := claims[key]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case string:
		return splitGroupList(v)
	case []string:
		out := make([]string, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for _, item := range v {
			appendGroup(&out, seen, item)
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				continue
			}
			appendGroup(&out, seen, str)
		}
		return out
	case map[string]any:
		out := make([]string, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for name, value := range v {
			member, ok := value.(bool)
			if !ok || !member {
				continue
			}
			appendGroup(&out, seen, name)
		}
		return out
	default:
		return nil
	}
}

// ClaimString returns the trimmed string value of the named claim, or "".
func ClaimString(claims map[string]any, key string) string {
	raw, ok := claims[key]
	if !ok {
		return ""
	}
	str, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}

func splitGroupList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		appendGroup(&out, seen, part)
	}
	return out
}

func appendGroup(out *[]string, seen map[string]struct{}, group string) {
	group = strings.TrimSpace(group)
	if group == "" {
		return
	}
	key := strings.ToLower(group)
	if _, exists := seen[key]; exists {
		return
	}
	seen[key] = struct{}{}
	*out = append(*out, group)
}
