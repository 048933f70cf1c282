// Package thumbnail turns uploaded image payloads into the fixed-size JPEG
// thumbnails persisted in the catalog, and back into embeddable data URIs.
package thumbnail

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultSize is the edge of the square box thumbnails are fitted into.
const DefaultSize = 299

// DecodePayload decodes a base64 image that may carry a data URI prefix
// such as "data:image/png;base64,".
func DecodePayload(payload string) ([]byte, error) {
	if idx := strings.LastIndex(payload, ","); idx >= 0 {
		payload = payload[idx+1:]
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errors.New("empty image payload")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil && !strings.HasSuffix(payload, "=") {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode base64 image")
	}
	return data, nil
}

// Make fits the image into a size x size box, keeping its aspect ratio, and
// re-encodes it as JPEG. Images already inside the box are not enlarged.
func Make(data []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}

	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, errors.Wrap(err, "failed to encode thumbnail")
	}
	return buf.Bytes(), nil
}

// DataURI renders image bytes as a data URI an <img> tag can use directly.
func DataURI(data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
