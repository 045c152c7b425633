// Package vision implements the frame-by-frame computer-vision pipeline:
// decoding (C1), landmark extraction (C2), gesture detection (C3) and
// temporal matching with scoring (C4).
package vision

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"connect-hub/liveness-service/internal/models"
)

func init() {
	// golang.org/x/image/bmp only registers a decoder when imported for its
	// side effects via image.RegisterFormat; webp does this on its own.
	image.RegisterFormat("bmp", "BM", bmp.Decode, bmp.DecodeConfig)
}

// DecodeFrame decodes a base64-encoded still image, optionally prefixed with
// a data-URL header ("<mime>;base64,<body>"), into a normalized pixel buffer
// downscaled proportionally so width <= targetWidth. It never fails the
// caller's verification — malformed input simply yields (nil, false) and the
// frame is skipped by the matcher.
func DecodeFrame(b64 string, targetWidth int) (*models.Frame, bool) {
	payload := b64
	if idx := strings.IndexByte(payload, ','); idx >= 0 {
		payload = payload[idx+1:]
	}

	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, false
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, false
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, false
	}

	if targetWidth > 0 && w > targetWidth {
		scale := float64(targetWidth) / float64(w)
		newW := targetWidth
		newH := int(float64(h) * scale)
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = newW, newH
	}

	return &models.Frame{
		Width:  w,
		Height: h,
		Pix:    toBGR(img, w, h),
	}, true
}

// decodeBase64 tolerates both standard and unpadded/URL-safe encodings, since
// browser MediaRecorder/canvas captures vary in which variant they emit.
func decodeBase64(s string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	if data, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func toBGR(img image.Image, w, h int) []byte {
	pix := make([]byte, w*h*3)
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pix[i] = byte(b >> 8)
			pix[i+1] = byte(g >> 8)
			pix[i+2] = byte(r >> 8)
			i += 3
		}
	}
	return pix
}
