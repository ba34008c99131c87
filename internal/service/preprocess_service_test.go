package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"receipto/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPreprocessConfig() config.PreprocessConfig {
	return config.PreprocessConfig{
		Enabled:     true,
		TargetWidth: 64,
		Threshold:   128,
		Gamma:       1.5,
	}
}

// samplePNG renders a gray gradient with a dark block, enough structure
// for the contrast stretch and binarization to act on.
func samplePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(40 + (x*160)/width)
			if x > width/3 && x < width/2 && y > height/3 && y < height/2 {
				v = 10
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImagePreprocessor_Process(t *testing.T) {
	p := NewImagePreprocessor(testPreprocessConfig(), zap.NewNop())
	data := samplePNG(t, 128, 96)

	out, err := p.Process(data)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// Resized to the target width, aspect ratio preserved.
	bounds := img.Bounds()
	assert.Equal(t, 64, bounds.Dx())
	assert.Equal(t, 48, bounds.Dy())
}

func TestImagePreprocessor_ProcessIsDeterministic(t *testing.T) {
	p := NewImagePreprocessor(testPreprocessConfig(), zap.NewNop())
	data := samplePNG(t, 128, 96)

	first, err := p.Process(data)
	require.NoError(t, err)
	second, err := p.Process(data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestImagePreprocessor_ProcessRejectsNonImage(t *testing.T) {
	p := NewImagePreprocessor(testPreprocessConfig(), zap.NewNop())

	_, err := p.Process([]byte("not an image at all"))
	assert.ErrorIs(t, err, ErrPreprocess)

	_, err = p.Process(nil)
	assert.ErrorIs(t, err, ErrPreprocess)
}

func TestBinarize(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	out := binarize(img, 128)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(255), out.NRGBAAt(1, 0).R)
}

func TestStretchContrast(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 150, G: 150, B: 150, A: 255})
	img.SetNRGBA(2, 0, color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	out := stretchContrast(img)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(127), out.NRGBAAt(1, 0).R)
	assert.Equal(t, uint8(255), out.NRGBAAt(2, 0).R)
}

func TestStretchContrastFlatImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 50, G: 50, B: 50, A: 255})
		}
	}

	// A single-valued image has no range to stretch and passes through.
	out := stretchContrast(img)
	assert.Equal(t, uint8(50), out.NRGBAAt(0, 0).R)
}

func TestMedianFilterRemovesSpeckle(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	// Lone black pixel in a white field.
	img.SetNRGBA(2, 2, color.NRGBA{R: 0, G: 0, B: 0, A: 255})

	out := medianFilter(img)
	assert.Equal(t, uint8(255), out.NRGBAAt(2, 2).R)
}
