package ann

import (
	"math"
	"sort"
	"strings"
)

// Metric is the canonical, engine-agnostic name of a distance function.
type Metric string

const (
	// Cosine is cosine similarity. Scores are reported as-is.
	Cosine Metric = "cosine"
	// L2 is Euclidean distance. Scores are reported as 1/(1+d).
	L2 Metric = "l2"
	// InnerProduct is the dot product. Scores are reported as-is.
	InnerProduct Metric = "ip"
)

// Metrics lists every supported metric.
var Metrics = []Metric{Cosine, L2, InnerProduct}

// ParseMetric maps a configured metric name onto a Metric. An empty or
// unknown name is a configuration error; there is no silent default here.
func ParseMetric(name string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(name))); m {
	case Cosine, L2, InnerProduct:
		return m, nil
	case "":
		return "", Configurationf("metric is required (one of cosine, l2, ip)")
	default:
		return "", Configurationf("unknown metric %q (supported: cosine, l2, ip)", name)
	}
}

// Similarity scores b against query a so that higher is better for every metric.
// Metrics not produced by ParseMetric score NaN.
func (m Metric) Similarity(a, b []float32) float64 {
	switch m {
	case Cosine:
		return CosineSimilarity(a, b)
	case L2:
		return L2Similarity(EuclideanDistance(a, b))
	case InnerProduct:
		return InnerProductOf(a, b)
	default:
		return math.NaN()
	}
}

// L2Similarity converts a Euclidean distance into a similarity in (0, 1].
// The transform is strictly decreasing, so ascending distance order becomes
// descending score order.
func L2Similarity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

// InnerProductOf returns the dot product of a and b.
func InnerProductOf(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector has zero length.
func CosineSimilarity(a, b []float32) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return InnerProductOf(a, b) / (na * nb)
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// SortResults orders results by descending score, keeping engine order for ties.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
