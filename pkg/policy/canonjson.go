package policy

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/gowebpki/jcs"
)

// CanonicalJSON renders v as RFC 8785 canonical JSON. Values that cannot
// be marshaled fall back to their fmt representation so that the result
// is always usable as a map key.
func CanonicalJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return string(raw)
	}
	return string(canon)
}

// FormatNumber renders a float the shortest way that round-trips, without
// exponent for ordinary magnitudes: 20, 0.5, 1.25.
func FormatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SortedKeys returns the keys of a weight map in byte-wise order.
func SortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
