package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"sort"

	"receipto/pkg/config"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// ImagePreprocessor normalizes an uploaded image for OCR. The chain is
// fixed and deterministic: the same input bytes always produce the same
// output bytes, so a recognition result can be reproduced from the stored
// original. Whether to run it at all is the caller's policy: a digital
// scan that is already high-contrast can go to the engine untouched.
type ImagePreprocessor struct {
	targetWidth int
	threshold   uint8
	gamma       float64
	logger      *zap.Logger
}

func NewImagePreprocessor(cfg config.PreprocessConfig, logger *zap.Logger) *ImagePreprocessor {
	return &ImagePreprocessor{
		targetWidth: cfg.TargetWidth,
		threshold:   cfg.Threshold,
		gamma:       cfg.Gamma,
		logger:      logger,
	}
}

// Process runs the preprocessing chain: resize to the target width
// preserving aspect ratio, grayscale, contrast stretch, sharpen, binarize,
// gamma correction, 3x3 median despeckle. Output is PNG-encoded.
func (p *ImagePreprocessor) Process(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreprocess, err)
	}

	img := imaging.Resize(src, p.targetWidth, 0, imaging.Lanczos)
	img = imaging.Grayscale(img)
	img = stretchContrast(img)
	img = imaging.Sharpen(img, 1.0)
	img = binarize(img, p.threshold)
	img = imaging.AdjustGamma(img, p.gamma)
	img = medianFilter(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrPreprocess, err)
	}

	p.logger.Debug("image preprocessed",
		zap.Int("input_bytes", len(data)),
		zap.Int("output_bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}

// stretchContrast linearly maps the observed luminance range onto the full
// 0..255 range. Input is expected to be grayscale, so only one channel is
// inspected.
func stretchContrast(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	minV, maxV := uint8(255), uint8(0)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := img.NRGBAAt(x, y).R
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}
	if minV >= maxV {
		return img
	}

	span := float64(maxV - minV)
	out := imaging.Clone(img)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := out.NRGBAAt(x, y)
			v := uint8(float64(px.R-minV) / span * 255.0)
			out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: px.A})
		}
	}
	return out
}

// binarize maps every pixel to pure black or white around the threshold.
func binarize(img *image.NRGBA, threshold uint8) *image.NRGBA {
	bounds := img.Bounds()
	out := imaging.Clone(img)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := out.NRGBAAt(x, y)
			v := uint8(0)
			if px.R >= threshold {
				v = 255
			}
			out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: px.A})
		}
	}
	return out
}

// medianFilter applies a 3x3 median over the luminance channel to suppress
// speckle noise left by binarization.
func medianFilter(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	out := imaging.Clone(img)
	window := make([]uint8, 0, 9)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					window = append(window, img.NRGBAAt(nx, ny).R)
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			v := window[len(window)/2]
			a := out.NRGBAAt(x, y).A
			out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: a})
		}
	}
	return out
}
