package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrSessionNotFound = errors.New("wizard session not found")
	ErrNoActiveHotel   = errors.New("no active hotel selected")
)

// FieldErrors maps field name to a human-readable message. A gated
// transition that fails validation returns one of these and leaves the
// wizard untouched.
type FieldErrors map[string]string

func NewFieldErrors() FieldErrors { return FieldErrors{} }

func (f FieldErrors) Add(field, msg string) { f[field] = msg }

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsFieldErrors unwraps err into FieldErrors if it is one.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
