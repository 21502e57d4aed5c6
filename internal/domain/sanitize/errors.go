package sanitize

import "errors"

// ErrStructuralViolation matches every *StructuralViolation via errors.Is.
var ErrStructuralViolation = errors.New("structural violation")
