package billing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// SignKey is the parameter carrying the signature. It is never part of its own input.
const SignKey = "sign"

// Sign computes the Allpay canonical signature of params.
//
// Top-level keys are walked in alphabetical order. Scalars are stringified
// (booleans as "1"/"0"), lists contribute the string values of each map
// element in key order, and nested maps contribute their string values in key
// order. Empty values contribute nothing. The chunks are joined with ":",
// suffixed with ":" + secret and hashed with SHA-256.
func Sign(params map[string]any, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SignKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	chunks := make([]string, 0, len(keys))
	for _, k := range keys {
		chunks = appendChunks(chunks, params[k])
	}

	sum := sha256.Sum256([]byte(strings.Join(chunks, ":") + ":" + secret))
	return hex.EncodeToString(sum[:])
}

// VerifySignature reports whether received matches the signature of params.
// The comparison is case-sensitive.
func VerifySignature(params map[string]any, secret, received string) bool {
	if received == "" {
		return false
	}
	expected := Sign(params, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

func appendChunks(chunks []string, value any) []string {
	switch v := value.(type) {
	case nil:
		return chunks
	case []any:
		for _, item := range v {
			if m, ok := asStringMap(item); ok {
				chunks = appendMapStrings(chunks, m)
			}
		}
		return chunks
	case []map[string]any:
		for _, m := range v {
			chunks = appendMapStrings(chunks, m)
		}
		return chunks
	case []map[string]string:
		for _, m := range v {
			chunks = appendMapStrings(chunks, toAnyMap(m))
		}
		return chunks
	case map[string]any:
		return appendMapStrings(chunks, v)
	case map[string]string:
		return appendMapStrings(chunks, toAnyMap(v))
	}

	s, ok := scalarString(value)
	if !ok || strings.TrimSpace(s) == "" {
		return chunks
	}
	return append(chunks, s)
}

// appendMapStrings only keeps string leaves; numbers nested in lists or maps
// are not part of the signed material.
func appendMapStrings(chunks []string, m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s, ok := m[k].(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		chunks = append(chunks, s)
	}
	return chunks
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v.String(), true
		}
		return formatNumber(f), true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return formatNumber(v), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	default:
		return "", false
	}
}

// formatNumber renders f the way the provider's signer prints numbers: the
// shortest round-tripping digits, plain notation for exponents in [-6, 21)
// and exponent notation outside of it. 39.0 signs as "39", 1e2 as "100".
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	n, _ := strconv.Atoi(exp)
	if n < 0 {
		return mantissa + "e-" + strconv.Itoa(-n)
	}
	return mantissa + "e+" + strconv.Itoa(n)
}

func asStringMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		return toAnyMap(m), true
	default:
		return nil, false
	}
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
