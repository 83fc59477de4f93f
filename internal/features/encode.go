package features

import (
	"hash/fnv"
	"math"

	"donorsense/internal/model"
)

// categoricalBuckets bounds the hash encoding of string values.
const categoricalBuckets = 1000

// EncodeValue maps a loosely typed feature value onto its numeric form.
// One rule per variant: numbers pass through (non-finite becomes 0),
// strings hash into [0, 1000), booleans become 0/1, timestamps become epoch
// milliseconds, null becomes 0.
func EncodeValue(v model.Value) float64 {
	switch v.Kind {
	case model.KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return 0
		}
		return v.Num
	case model.KindString:
		return float64(hashBucket(v.Str))
	case model.KindBool:
		if v.Bool {
			return 1
		}
		return 0
	case model.KindTime:
		return float64(v.Time.UnixMilli())
	default:
		return 0
	}
}

// EncodeMap applies EncodeValue to every entry of a raw feature map.
func EncodeMap(raw map[string]model.Value) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		out[k] = EncodeValue(v)
	}
	return out
}

// AsValues lifts an already numeric feature map into the loosely typed
// form the prediction path accepts.
func AsValues(encoded map[string]float64) map[string]model.Value {
	out := make(map[string]model.Value, len(encoded))
	for k, v := range encoded {
		out[k] = model.Number(v)
	}
	return out
}

// Vector builds the ordered feature vector a model expects. Missing
// features encode as 0.
func Vector(names []string, encoded map[string]float64) []float64 {
	vec := make([]float64, len(names))
	for i, n := range names {
		vec[i] = encoded[n]
	}
	return vec
}

// hashBucket gives a stable bounded bucket for a categorical value. FNV-1a
// keeps the mapping identical across processes and restarts.
func hashBucket(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32() % categoricalBuckets
}
