// Package metrics computes confusion matrices and the derived
// detection-quality scores from streams of (actual, predicted) label
// pairs, in both the flow-by-flow and per-time-window views. Pure
// functions only: accept slices, return values, touch nothing external.
package metrics

import (
	"math"

	"github.com/rawblock/idps-compare/pkg/models"
)

// LabelPair is one (actual, predicted) observation fed to Accumulate.
type LabelPair struct {
	Actual    models.Label
	Predicted models.Label
}

// Accumulate builds a ConfusionMatrix from a sequence of label pairs.
// NULL/Unknown labels are treated as benign, defensively restating the
// global null-fill the store performs before metrics run.
func Accumulate(pairs []LabelPair) models.ConfusionMatrix {
	var cm models.ConfusionMatrix
	for _, p := range pairs {
		cm.Observe(asBenignIfUnknown(p.Actual), asBenignIfUnknown(p.Predicted))
	}
	return cm
}

func asBenignIfUnknown(l models.Label) models.Label {
	if l == models.Malicious {
		return models.Malicious
	}
	return models.Benign
}

// Derive computes the standard detection-quality scores from a
// ConfusionMatrix, with the explicit zero-division policy: any ratio
// whose denominator is zero evaluates to 0, never NaN or Inf.
func Derive(cm models.ConfusionMatrix) models.DerivedMetrics {
	tp, fp, tn, fn := float64(cm.TP), float64(cm.FP), float64(cm.TN), float64(cm.FN)

	recall := safeDiv(tp, tp+fn)
	precision := safeDiv(tp, tp+fp)
	f1 := safeDiv(2*precision*recall, precision+recall)
	fpr := safeDiv(fp, fp+tn)
	tpr := recall
	fnr := safeDiv(fn, fn+tp)
	tnr := 0.0
	if fp+tn > 0 {
		tnr = 1 - fpr
	}
	accuracy := safeDiv(tp+tn, tp+tn+fp+fn)

	mccDenomSq := (tp + fp) * (tp + fn) * (tn + fp) * (tn + fn)
	mcc := 0.0
	if mccDenomSq > 0 {
		mcc = (tp*tn - fp*fn) / math.Sqrt(mccDenomSq)
	}

	return models.DerivedMetrics{
		Precision: precision,
		Recall:    recall,
		F1:        f1,
		TPR:       tpr,
		FPR:       fpr,
		TNR:       tnr,
		FNR:       fnr,
		Accuracy:  accuracy,
		MCC:       mcc,
	}
}

func safeDiv(num, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return num / denom
}

// SumPerRow sums a set of per-(ip, time-window) confusion matrices into
// one per-tool total.
func SumPerRow(rows []models.ConfusionMatrix) models.ConfusionMatrix {
	var total models.ConfusionMatrix
	for _, r := range rows {
		total.Add(r)
	}
	return total
}
