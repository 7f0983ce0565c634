package atom

// TVKind tags the interpretation of a TruthValue's three floats. The codes
// are the persisted tv_type values and must not be renumbered.
type TVKind uint8

const (
	SimpleTruth        TVKind = 1
	CountTruth         TVKind = 2
	IndefiniteTruth    TVKind = 3
	ProbabilisticTruth TVKind = 4
)

// TruthValue is a tagged (mean, confidence, count) triple. For
// IndefiniteTruth the fields are repurposed: Mean holds the lower bound L,
// Count holds the upper bound U, and Confidence holds the confidence level.
type TruthValue struct {
	Kind       TVKind
	Mean       float64
	Confidence float64
	Count      float64
}

// DefaultTV is the truth value of atoms that were never assigned one.
func DefaultTV() TruthValue {
	return TruthValue{Kind: SimpleTruth, Mean: 1.0}
}

// SimpleTV returns a simple truth value.
func SimpleTV(mean, confidence float64) TruthValue {
	return TruthValue{Kind: SimpleTruth, Mean: mean, Confidence: confidence}
}

// CountTV returns a count truth value.
func CountTV(mean, confidence, count float64) TruthValue {
	return TruthValue{Kind: CountTruth, Mean: mean, Confidence: confidence, Count: count}
}

// IndefiniteTV returns an indefinite truth value over [l, u] at the given
// confidence level.
func IndefiniteTV(l, u, confidenceLevel float64) TruthValue {
	return TruthValue{Kind: IndefiniteTruth, Mean: l, Count: u, Confidence: confidenceLevel}
}

// ProbabilisticTV returns a probabilistic truth value.
func ProbabilisticTV(mean, confidence, count float64) TruthValue {
	return TruthValue{Kind: ProbabilisticTruth, Mean: mean, Confidence: confidence, Count: count}
}

// L is the lower bound of an indefinite truth value.
func (tv TruthValue) L() float64 { return tv.Mean }

// U is the upper bound of an indefinite truth value.
func (tv TruthValue) U() float64 { return tv.Count }

// ConfidenceLevel is the confidence level of an indefinite truth value.
func (tv TruthValue) ConfidenceLevel() float64 { return tv.Confidence }
