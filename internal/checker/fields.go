package checker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// IsJSONContentType reports whether a Content-Type header denotes JSON,
// including structured suffixes such as application/problem+json.
func IsJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// DecodeJSON parses a single JSON document, keeping numbers as json.Number.
func DecodeJSON(body []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return data, true
}

// FieldSet returns the sorted top-level keys of a JSON object, or the union of
// keys over the objects of a JSON array. Scalars have no fields.
func FieldSet(data any) []string {
	set := make(map[string]struct{})
	switch v := data.(type) {
	case map[string]any:
		for k := range v {
			set[k] = struct{}{}
		}
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				for k := range obj {
					set[k] = struct{}{}
				}
			}
		}
	}

	fields := make([]string, 0, len(set))
	for k := range set {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// BuildURL appends query parameters to rawURL.
func BuildURL(rawURL string, query map[string]any) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if len(query) == 0 {
		return u.String(), nil
	}

	values := u.Query()
	for k, v := range query {
		values.Set(k, FormatValue(v))
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// FormatValue renders a fixture or stashed value as text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
