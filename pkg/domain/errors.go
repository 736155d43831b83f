package domain

import "errors"

// ErrTemplateNotFound is returned when a loader has no template under the requested name.
var ErrTemplateNotFound = errors.New("template not found")

// ErrSourceNotFound is returned when a state source holds no document yet.
var ErrSourceNotFound = errors.New("state source not found")

// ErrUnknownConstant is returned when an expression references a constant id outside the template tables.
var ErrUnknownConstant = errors.New("unknown constant id")

// ErrMalformedTemplate is returned when an artifact cannot be turned into a Template.
var ErrMalformedTemplate = errors.New("malformed template")
