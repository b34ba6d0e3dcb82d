// Package media stores user-uploaded images and returns versioned
// references to them.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// UploadResult identifies a stored object. Version changes on every
// overwrite so URLs built from it bust client caches.
type UploadResult struct {
	Reference string
	Version   string
	URL       string
}

var ErrInvalidDataURI = errors.New("invalid data URI")

// DecodeDataURI decodes a base64 data URI such as
// "data:image/png;base64,iVBOR..." into its bytes and media type.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrInvalidDataURI
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrInvalidDataURI)
	}
	return data, mediaType, nil
}

// objectURL builds the public URL of a version of publicID.
func objectURL(baseURL, version, publicID string) string {
	return fmt.Sprintf("%s/v%s/%s", strings.TrimRight(baseURL, "/"), version, publicID)
}
