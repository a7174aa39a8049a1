// Package images defines the image generation contract shared by the try-on
// pipeline and the image provider adapters.
package images

import (
	"context"
	"errors"
	"strings"
)

type (
	// Generator renders an image from a prompt and optional reference images.
	Generator interface {
		Generate(ctx context.Context, prompt string, refs []Reference) (Generated, error)
	}

	// Reference is an input image passed to the generator.
	Reference struct {
		MimeType string
		Data     []byte
	}

	// Generated is an image produced by the generator.
	Generated struct {
		MimeType string
		Data     []byte
		// Text is any text the provider returned alongside the image.
		Text string
	}
)

var (
	// ErrRegionBlocked is returned when the provider refuses the request
	// because of the caller's geographic location.
	ErrRegionBlocked = errors.New("images: image generation is not available in this region")
	// ErrNoImage is returned when the provider answered without an image.
	ErrNoImage = errors.New("images: response contained no image")
)

// regionMarkers are provider message fragments that identify geographic
// restrictions.
var regionMarkers = []string{
	"User location is not supported",
	"FAILED_PRECONDITION",
	"unsupported_country_region_territory",
}

// IsRegionBlocked reports whether err is, or describes, a geographic
// restriction.
func IsRegionBlocked(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRegionBlocked) {
		return true
	}
	msg := err.Error()
	for _, m := range regionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
