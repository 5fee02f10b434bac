package transport

import "github.com/tidwall/gjson"

// replyFields lists the body fields that may carry the reply, highest priority first.
var replyFields = []string{"output", "response", "message", "text"}

// ResolveReply extracts the reply text from a webhook body. The first field of
// replyFields holding a truthy value wins; null, false, 0 and "" fall through.
// String values are returned as-is, anything else in its JSON form. When no
// field qualifies the whole body is returned as compact JSON.
func ResolveReply(body []byte) string {
	for _, field := range replyFields {
		value := gjson.GetBytes(body, field)
		if !truthy(value) {
			continue
		}
		if value.Type == gjson.String {
			return value.Str
		}
		return compact(value.Raw)
	}

	return compact(string(body))
}

func truthy(value gjson.Result) bool {
	switch value.Type {
	case gjson.String:
		return value.Str != ""
	case gjson.Number:
		return value.Num != 0
	case gjson.True, gjson.JSON:
		return true
	default:
		return false
	}
}

func compact(raw string) string {
	return gjson.Get(raw, "@ugly").Raw
}
