package mcpserver

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const maxImageSize = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// decodeDataURI parses a data:<mediatype>;base64,<data> image URI and checks
// that the payload really is the declared image type.
func decodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("image must be a data URI")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}
	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	if !allowedImageTypes[mime] {
		return nil, fmt.Errorf("unsupported image type: %s (allowed: png, jpeg, gif)", mime)
	}
	if base64.StdEncoding.DecodedLen(len(encoded)) > maxImageSize+3 {
		return nil, fmt.Errorf("image too large (max %d bytes)", maxImageSize)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("image too large: %d bytes (max %d)", len(data), maxImageSize)
	}
	if got := http.DetectContentType(data); got != mime {
		return nil, fmt.Errorf("content does not match declared type %s (detected %s)", mime, got)
	}
	return data, nil
}
