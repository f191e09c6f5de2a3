package codec

// Number is the set of element types the aggregators accept.
type Number interface {
	~int | ~float64
}

// Sum adds the present values. nil iff every input is nil.
func Sum[T Number](values ...*T) *T {
	var (
		total T
		found bool
	)
	for _, v := range values {
		if v == nil {
			continue
		}
		total += *v
		found = true
	}
	if !found {
		return nil
	}
	return &total
}

// Max returns the largest present value. nil iff every input is nil.
func Max[T Number](values ...*T) *T {
	var best *T
	for _, v := range values {
		if v == nil {
			continue
		}
		if best == nil || *v > *best {
			x := *v
			best = &x
		}
	}
	return best
}
