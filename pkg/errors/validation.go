package errors

// ValidateLevel checks a refinement level against the inclusive [0, max]
// range. It returns a REFINEMENT_BOUNDS error naming the offending value so
// the caller can reject the request before any tree is constructed.
func ValidateLevel(level, max int) error {
	if level < 0 {
		return New(ErrCodeRefinementBounds, "refinement level %d is negative", level)
	}
	if level > max {
		return New(ErrCodeRefinementBounds, "refinement level %d exceeds maximum %d", level, max)
	}
	return nil
}

// ValidateMeshOrder checks the element order used for node creation.
// Only linear (2) and quadratic (3) elements are supported.
func ValidateMeshOrder(order int) error {
	if order < 2 || order > 3 {
		return New(ErrCodeInvalidInput, "mesh order %d is not supported (must be 2 or 3)", order)
	}
	return nil
}
