package transform

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// fingerprintDelim separates the hash input segments. A control character
// cannot occur in an action name, so segment boundaries are unambiguous.
const fingerprintDelim = "\x1f"

// Fingerprint derives the content-addressed cache key for one request.
// Two requests with the same action, the same text modulo surrounding
// whitespace, and semantically equal options always hash identically,
// regardless of option key order. The digest is stable across restarts and
// across implementations that share the canonicalization rules.
func Fingerprint(action Action, text string, opts NormalizedOptions) (string, error) {
	canonical, err := canonicalJSON(opts)
	if err != nil {
		return "", fmt.Errorf("canonicalize options: %w", err)
	}
	h := sha256.Sum256([]byte(string(action) + fingerprintDelim + strings.TrimSpace(text) + fingerprintDelim + canonical))
	return fmt.Sprintf("%x", h), nil
}

// canonicalJSON serializes v with all object keys recursively sorted and
// array order preserved. Numbers round-trip through json.Number so their
// textual form is not disturbed.
func canonicalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := writeCanonical(&buf, decoded); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeCanonical(buf *strings.Builder, v interface{}) error {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyJSON)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	default:
		scalar, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(scalar)
		return nil
	}
}
