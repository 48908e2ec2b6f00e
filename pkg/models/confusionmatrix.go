package models

// ConfusionMatrix is the 2x2 count of predicted vs. actual labels with
// malicious as the positive class.
type ConfusionMatrix struct {
	TP int
	FP int
	TN int
	FN int
}

// Add accumulates another matrix's counts into this one, used when summing
// per-(ip, time-window) rows into a single per-tool total.
func (cm *ConfusionMatrix) Add(other ConfusionMatrix) {
	cm.TP += other.TP
	cm.FP += other.FP
	cm.TN += other.TN
	cm.FN += other.FN
}

// Observe classifies one (actual, predicted) pair into the matrix.
func (cm *ConfusionMatrix) Observe(actual, predicted Label) {
	switch {
	case actual == Malicious && predicted == Malicious:
		cm.TP++
	case actual == Malicious && predicted != Malicious:
		cm.FN++
	case actual != Malicious && predicted == Malicious:
		cm.FP++
	default:
		cm.TN++
	}
}

// Total returns TP+FP+TN+FN.
func (cm ConfusionMatrix) Total() int {
	return cm.TP + cm.FP + cm.TN + cm.FN
}

// DerivedMetrics is the set of detection-quality scores computed from a
// ConfusionMatrix. Every ratio follows the zero-division policy:
// divide-by-zero yields 0, never NaN or Inf.
type DerivedMetrics struct {
	Precision float64
	Recall    float64
	F1        float64
	TPR       float64
	FPR       float64
	TNR       float64
	FNR       float64
	Accuracy  float64
	MCC       float64
}
