package compare

import (
	"math"
	"strconv"
)

// EqualFunc decides whether two canonical cell values count as equal for
// row difference detection. It is only consulted for non-missing cells.
type EqualFunc func(a, b string) bool

// ExactEqual is the default predicate: canonical string equality. Numeric
// values are not compared with tolerance under this predicate.
func ExactEqual(a, b string) bool {
	return a == b
}

// ToleranceEqual returns a predicate that treats two numeric values as
// equal when their difference is within tol relative to the larger
// magnitude, so tol 0.05 reads as "within 5%" at any scale. Non-numeric
// values fall back to exact string equality.
func ToleranceEqual(tol float64) EqualFunc {
	return func(a, b string) bool {
		fa, errA := strconv.ParseFloat(a, 64)
		fb, errB := strconv.ParseFloat(b, 64)
		if errA != nil || errB != nil {
			return a == b
		}
		scale := math.Max(math.Abs(fa), math.Abs(fb))
		return math.Abs(fa-fb) <= tol*scale
	}
}
