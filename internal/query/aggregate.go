package query

// Aggregate operation names.
const (
	OpCount = "count"
	OpSum   = "sum"
	OpAvg   = "avg"
	OpMin   = "min"
	OpMax   = "max"
)

// Aggregate extracts the text values at expr, coerces them all to
// numbers, and reduces with op. Any value that fails coercion aborts
// the whole aggregation with ErrNonNumericValue. The ok result is false
// only for min/max over an empty set, which have no defined value;
// count, sum, and avg report 0 for an empty set.
func (e *Engine) Aggregate(expr, op string) (value float64, ok bool, err error) {
	values, err := e.TextValues(expr)
	if err != nil {
		return 0, false, err
	}
	nums, err := parseNumeric(values)
	if err != nil {
		return 0, false, err
	}

	switch op {
	case OpCount:
		return float64(len(nums)), true, nil
	case OpSum:
		return sum(nums), true, nil
	case OpAvg:
		if len(nums) == 0 {
			return 0, true, nil
		}
		return sum(nums) / float64(len(nums)), true, nil
	case OpMin:
		if len(nums) == 0 {
			return 0, false, nil
		}
		min := nums[0]
		for _, n := range nums[1:] {
			if n < min {
				min = n
			}
		}
		return min, true, nil
	case OpMax:
		if len(nums) == 0 {
			return 0, false, nil
		}
		max := nums[0]
		for _, n := range nums[1:] {
			if n > max {
				max = n
			}
		}
		return max, true, nil
	default:
		return 0, false, ErrUnknownOperation
	}
}

func sum(nums []float64) float64 {
	var total float64
	for _, n := range nums {
		total += n
	}
	return total
}
