package course

import "math"

// Quality holds the query-independent quality signals of a course.
type Quality struct {
	RatingNorm  float64 // rating / 5, in [0, 1]
	ReviewsNorm float64 // ln(1 + num_reviews), >= 0
}

// NormalizeQuality derives bounded quality signals from rating and review count.
func NormalizeQuality(rating float64, numReviews int) Quality {
	return Quality{
		RatingNorm:  rating / MaxRating,
		ReviewsNorm: math.Log1p(float64(numReviews)),
	}
}
