// Package image validates container image references before they are sent
// to the marketplace.
package image

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// ErrInvalidRef is returned when the image reference is malformed.
var ErrInvalidRef = errors.New("invalid image reference")

// Validate checks that ref is a well-formed image reference. Renting a
// machine with a bad image wastes minutes of billable boot time, so
// references are rejected up front.
func Validate(ref string) error {
	if _, err := name.ParseReference(ref); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	return nil
}

// Normalize validates ref and makes the tag explicit, leaving the
// user's registry and repository spelling intact ("pytorch/pytorch"
// becomes "pytorch/pytorch:latest").
func Normalize(ref string) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}

	if tagged, ok := parsed.(name.Tag); ok {
		// digest refs and explicitly tagged refs pass through untouched
		if !strings.Contains(ref, ":"+tagged.TagStr()) {
			return ref + ":" + tagged.TagStr(), nil
		}
	}
	return ref, nil
}
