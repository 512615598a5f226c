package netk

// countCumulative bins sorted records cumulatively: band i has threshold
// begin + i*increment and counts every record at or below it. With
// discountBelowBegin set, records closer than begin are consumed without
// being counted. One pass over bands and records.
func countCumulative(sorted []DistanceRecord, begin, increment float64, numBands int, discountBelowBegin bool) []DistanceBand {
	bands := make([]DistanceBand, 0, numBands)
	next := 0
	count := 0
	for i := 0; i < numBands; i++ {
		threshold := begin + float64(i)*increment
		for next < len(sorted) && sorted[next].Distance <= threshold {
			if !discountBelowBegin || sorted[next].Distance >= begin {
				count++
			}
			next++
		}
		bands = append(bands, DistanceBand{DistanceBand: threshold, Count: count})
	}
	return bands
}

// countIndependent bins sorted records into half-open bands
// [start, start+increment). Records below begin are consumed but never
// counted; each band starts from zero.
func countIndependent(sorted []DistanceRecord, begin, increment float64, numBands int) []DistanceBand {
	bands := make([]DistanceBand, 0, numBands)
	next := 0
	for i := 0; i < numBands; i++ {
		start := begin + float64(i)*increment
		end := start + increment
		count := 0
		for next < len(sorted) && sorted[next].Distance < end {
			if sorted[next].Distance >= begin {
				count++
			}
			next++
		}
		bands = append(bands, DistanceBand{DistanceBand: start, Count: count})
	}
	return bands
}
