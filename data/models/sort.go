package models

import "slices"

// SortPoints orders points ascending by timestamp
func SortPoints(points []PricePoint) {
	slices.SortFunc(points, func(a, b PricePoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
