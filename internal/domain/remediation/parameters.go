package remediation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Parameters is the key/value input of an action. JSON encoding emits keys in sorted order.
type Parameters map[string]interface{}

// Keys returns the parameter names in sorted order.
func (p Parameters) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize returns a copy with surrounding whitespace trimmed from every string value
// and numbers collapsed to a single representation.
func (p Parameters) Normalize() (Parameters, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	for k, v := range out {
		out[k] = normalizeValue(v)
	}
	return Parameters(out), nil
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		if f, err := t.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return json.Number(strconv.FormatInt(int64(f), 10))
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	case map[string]interface{}:
		for k := range t {
			t[k] = normalizeValue(t[k])
		}
		return t
	default:
		return v
	}
}

// Canonical is the stable encoding used for dedup keys.
func (p Parameters) Canonical() (string, error) {
	if p == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DedupKey derives the identity of a logical remediation from host, type and normalized parameters.
func DedupKey(hostID string, actionType ActionType, params Parameters) (string, error) {
	canonical, err := params.Canonical()
	if err != nil {
		return "", fmt.Errorf("canonicalize parameters: %w", err)
	}
	sum := sha256.Sum256([]byte(hostID + "\x00" + string(actionType) + "\x00" + canonical))
	return hex.EncodeToString(sum[:]), nil
}
