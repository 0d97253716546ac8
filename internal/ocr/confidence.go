package ocr

// PageStat is a page's contribution to a document-level confidence
type PageStat struct {
	Lines      int
	Confidence float64
}

// Mean returns the arithmetic mean of scores, or 0 for an empty slice.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return clampUnit(sum / float64(len(scores)))
}

// WeightedMean averages page confidences weighted by each page's line count,
// so a page with three lines counts three times as much as a page with one.
func WeightedMean(pages []PageStat) float64 {
	var weighted float64
	var lines int
	for _, p := range pages {
		if p.Lines <= 0 {
			continue
		}
		weighted += p.Confidence * float64(p.Lines)
		lines += p.Lines
	}
	if lines == 0 {
		return 0.0
	}
	return clampUnit(weighted / float64(lines))
}

func clampUnit(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
