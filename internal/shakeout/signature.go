package shakeout

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrMissingSignature indicates the payload carried no usable signature field.
var ErrMissingSignature = errors.New("shakeout: payload has no signature field")

// DecodePayload parses a raw webhook body into a generic mapping. Numbers are
// kept as json.Number so the canonical string preserves the provider's exact
// formatting ("100.00" must not become "100").
func DecodePayload(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// CanonicalString builds the string the webhook signature is computed over:
// the signature field is dropped, remaining keys are sorted ascending, and
// each is rendered as "key=value&" with nested values serialised as compact
// JSON; the trailing ampersand is trimmed. Canonical ordering keeps the
// signature stable when the transport reorders fields.
func CanonicalString(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(canonicalValue(payload[k]))
	}
	return b.String()
}

// ComputeSignature returns the hex HMAC-SHA256 of the canonical payload string.
func ComputeSignature(payload map[string]any, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalString(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the payload's signature field against the HMAC
// computed with the shared secret. A mismatch yields (false, nil); an error
// is returned only for a malformed payload shape.
func VerifySignature(payload map[string]any, secret string) (bool, error) {
	if payload == nil {
		return false, errors.New("shakeout: nil payload")
	}
	raw, ok := payload["signature"]
	if !ok {
		return false, ErrMissingSignature
	}
	provided, ok := raw.(string)
	if !ok || strings.TrimSpace(provided) == "" {
		return false, ErrMissingSignature
	}
	expected := ComputeSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(provided)), nil
}

func canonicalValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(encoded)
	}
}
