package watermark

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTransformer(t *testing.T) *Transformer {
	t.Helper()
	tr, err := New(DefaultOptions())
	require.NoError(t, err)
	return tr
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err, "preview must be a JPEG")
	return img
}

func TestRenderBoundsLongestEdge(t *testing.T) {
	tr := newTransformer(t)
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}

	cases := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 3840, 2560, 1920, 1280},
		{"portrait", 1000, 4000, 480, 1920},
		{"small is not upscaled", 800, 600, 800, 600},
		{"exact limit", 1920, 1080, 1920, 1080},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := tr.Render(solidPNG(t, tc.w, tc.h, gray))
			require.NoError(t, err)

			b := decodeJPEG(t, out).Bounds()
			assert.Equal(t, tc.wantW, b.Dx())
			assert.Equal(t, tc.wantH, b.Dy())
		})
	}
}

func TestRenderDrawsGoldMark(t *testing.T) {
	tr := newTransformer(t)
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}

	out, err := tr.Render(solidPNG(t, 1200, 900, gray))
	require.NoError(t, err)

	img := decodeJPEG(t, out)
	tinted := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x += 2 {
			r, _, bl, _ := img.At(x, y).RGBA()
			if int(r>>8)-int(bl>>8) > 40 {
				tinted++
			}
		}
	}
	assert.Greater(t, tinted, 100, "expected gold watermark pixels on gray canvas")
}

func TestRenderIsDeterministicAndPure(t *testing.T) {
	tr := newTransformer(t)
	src := solidPNG(t, 640, 480, color.RGBA{R: 10, G: 200, B: 30, A: 255})
	orig := append([]byte(nil), src...)

	first, err := tr.Render(src)
	require.NoError(t, err)
	second, err := tr.Render(src)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, orig, src, "input must not be mutated")
	assert.NotEqual(t, src, first)
}

func TestRenderCorruptInput(t *testing.T) {
	tr := newTransformer(t)

	_, err := tr.Render([]byte("definitely not an image"))
	require.Error(t, err)

	var te *TransformError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ReasonDecode, te.Reason)
	assert.True(t, IsTransformError(err))
}

func TestRenderTruncatedPNG(t *testing.T) {
	tr := newTransformer(t)
	src := solidPNG(t, 300, 300, color.White)

	_, err := tr.Render(src[:len(src)/2])
	assert.True(t, IsTransformError(err))
}

// pngHeader собирает сигнатуру и IHDR с заданными размерами: этого хватает
// image.DecodeConfig, а полное декодирование потребовало бы w*h байт
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // глубина цвета
	ihdr[9] = 0 // grayscale

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestRenderRejectsOversizedDimensions(t *testing.T) {
	tr := newTransformer(t)
	data := pngHeader(25000, 25000)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 25000, cfg.Width)

	out, err := tr.Render(data)
	assert.Nil(t, out)
	require.True(t, IsTransformError(err))

	var te *TransformError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ReasonDecode, te.Reason)
	assert.Contains(t, err.Error(), "25000x25000")

	_, err = tr.Transform(context.Background(), data)
	assert.True(t, IsTransformError(err))
}

func TestRenderHonoursMaxPixels(t *testing.T) {
	tr, err := New(Options{MaxPixels: 100})
	require.NoError(t, err)

	_, err = tr.Render(solidPNG(t, 20, 20, color.White))
	var te *TransformError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ReasonDecode, te.Reason)

	out, err := tr.Render(solidPNG(t, 10, 10, color.White))
	require.NoError(t, err)
	assert.Equal(t, 10, decodeJPEG(t, out).Bounds().Dx())
}

func TestCheckColorModelRejectsAlphaOnly(t *testing.T) {
	err := checkColorModel(image.NewAlpha(image.Rect(0, 0, 10, 10)))

	var te *TransformError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ReasonColorSpace, te.Reason)

	assert.NoError(t, checkColorModel(image.NewCMYK(image.Rect(0, 0, 10, 10))))
	assert.NoError(t, checkColorModel(image.NewGray(image.Rect(0, 0, 10, 10))))
}

func TestTransformCancelled(t *testing.T) {
	tr := newTransformer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Transform(ctx, solidPNG(t, 64, 64, color.White))

	var te *TransformError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ReasonTimeout, te.Reason)
}

func TestTransformSucceeds(t *testing.T) {
	tr := newTransformer(t)

	out, err := tr.Transform(context.Background(), solidPNG(t, 64, 48, color.White))
	require.NoError(t, err)

	b := decodeJPEG(t, out).Bounds()
	assert.Equal(t, 64, b.Dx())
	assert.Equal(t, 48, b.Dy())
}

func TestNewAppliesDefaults(t *testing.T) {
	tr, err := New(Options{})
	require.NoError(t, err)

	opts := tr.Options()
	assert.Equal(t, DefaultText, opts.Text)
	assert.Equal(t, DefaultMaxDimension, opts.MaxDimension)
	assert.Equal(t, DefaultQuality, opts.Quality)
	assert.Equal(t, DefaultMaxPixels, opts.MaxPixels)
}
