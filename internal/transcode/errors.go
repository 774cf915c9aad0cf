package transcode

import "errors"

// ErrInvalidValue is returned when a value lies outside the domain of its Kind.
var ErrInvalidValue = errors.New("transcode: invalid value")
