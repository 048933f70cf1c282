package thumbnail

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePayload(t *testing.T) {
	raw := []byte("hello image")
	encoded := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		payload string
	}{
		{"plain", encoded},
		{"data uri prefix", "data:image/png;base64," + encoded},
		{"unpadded", strings.TrimRight(encoded, "=")},
		{"surrounding whitespace", "  " + encoded + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, raw, got)
		})
	}
}

func TestDecodePayloadErrors(t *testing.T) {
	_, err := DecodePayload("data:image/png;base64,")
	assert.Error(t, err)

	_, err = DecodePayload("!!!not base64!!!")
	assert.Error(t, err)
}

func TestMake(t *testing.T) {
	t.Run("downscales into box", func(t *testing.T) {
		thumb, err := Make(encodePNG(t, 600, 300), 299)
		require.NoError(t, err)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 299, cfg.Width)
		assert.LessOrEqual(t, cfg.Height, 299)
	})

	t.Run("does not upscale", func(t *testing.T) {
		thumb, err := Make(encodePNG(t, 40, 20), 299)
		require.NoError(t, err)

		cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
		require.NoError(t, err)
		assert.Equal(t, 40, cfg.Width)
		assert.Equal(t, 20, cfg.Height)
	})

	t.Run("rejects non images", func(t *testing.T) {
		_, err := Make([]byte("plain text"), 299)
		assert.Error(t, err)
	})
}

func TestDataURI(t *testing.T) {
	thumb, err := Make(encodePNG(t, 10, 10), 299)
	require.NoError(t, err)

	uri := DataURI(thumb)
	require.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))

	decoded, err := DecodePayload(uri)
	require.NoError(t, err)
	assert.Equal(t, thumb, decoded)

	pngData := encodePNG(t, 2, 2)
	assert.True(t, strings.HasPrefix(DataURI(pngData), "data:image/png;base64,"))
}
