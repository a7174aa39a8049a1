package tryon

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrEmptyPhoto is returned when the photo payload is empty after removing
// the data URL header.
var ErrEmptyPhoto = errors.New("tryon: empty photo")

// DecodePhoto decodes a base64 photo, optionally prefixed with a data URL
// header such as "data:image/png;base64,". The MIME type is taken from the
// header and defaults to image/jpeg.
func DecodePhoto(encoded string) (*Photo, error) {
	mime := "image/jpeg"
	data := strings.TrimSpace(encoded)
	if strings.HasPrefix(data, "data:") {
		header, payload, ok := strings.Cut(data, ",")
		if !ok {
			return nil, errors.New("tryon: malformed data URL")
		}
		switch {
		case strings.Contains(header, "image/png"):
			mime = "image/png"
		case strings.Contains(header, "image/gif"):
			mime = "image/gif"
		case strings.Contains(header, "image/webp"):
			mime = "image/webp"
		}
		data = payload
	}
	data = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, data)
	if data == "" {
		return nil, ErrEmptyPhoto
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		var rawErr error
		if raw, rawErr = base64.RawStdEncoding.DecodeString(data); rawErr != nil {
			return nil, err
		}
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPhoto
	}
	return &Photo{MimeType: mime, Data: raw}, nil
}
