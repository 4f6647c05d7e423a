package strata

import (
	"errors"

	"github.com/strata-dev/strata/pkg/statepath"
)

// ErrInvalidName is returned when a Store is constructed with an empty name.
var ErrInvalidName = errors.New("strata: store name must be a non-empty string")

// ErrReadOnly is returned when a mutation targets a reserved "$"-prefixed
// API property or the root wrapper itself. The reserved surface is part of
// the store façade and can never be assigned or deleted through a path.
var ErrReadOnly = errors.New("strata: read-only property")

// ErrInvalidPath is returned when a malformed path string reaches any
// Get/Set/Delete/Subscribe call. Missing data is not an error — it resolves
// to nil. This distinguishes "malformed request" from "absent value".
var ErrInvalidPath = statepath.ErrInvalidPath

// ErrInvalidIndex is returned for a negative or out-of-bounds array index
// arriving through the validated path API. Index assignment directly on a
// live array wrapper auto-grows instead; the asymmetry is deliberate.
var ErrInvalidIndex = statepath.ErrInvalidIndex
