package length

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrMalformedEstimate is returned when the estimator reply holds no
	// usable JSON object or the object has the wrong shape.
	ErrMalformedEstimate = errors.New("length: malformed estimate")
	// ErrMissingFields is returned when the object lacks a required field.
	ErrMissingFields = errors.New("length: estimate missing required fields")
)

// extractObject returns the first JSON object embedded in s. Prose before
// and after the object is ignored, as are brace runs that do not decode.
func extractObject(s string) (map[string]interface{}, error) {
	for i := strings.IndexByte(s, '{'); i >= 0; {
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		dec.UseNumber()
		var obj map[string]interface{}
		if err := dec.Decode(&obj); err == nil && obj != nil {
			return obj, nil
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, ErrMalformedEstimate
}
