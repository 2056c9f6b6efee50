package models

// InterleaveByGeneration merges the two newest-first generation slices in
// alternating order: older[0], younger[0], older[1], younger[1], ...
// When one slice runs out the remainder of the other follows in order.
func InterleaveByGeneration(older, younger []Post) []Post {
	n := len(older)
	if len(younger) > n {
		n = len(younger)
	}

	merged := make([]Post, 0, len(older)+len(younger))
	for i := 0; i < n; i++ {
		if i < len(older) {
			merged = append(merged, older[i])
		}
		if i < len(younger) {
			merged = append(merged, younger[i])
		}
	}
	return merged
}

// Pages is the page count reported by paginated listings.
func Pages(total, limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
