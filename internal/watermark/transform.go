// Package watermark строит защищённое превью из оригинала:
// уменьшение по длинной стороне, диагональный полупрозрачный текст, JPEG без метаданных.
package watermark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"time"

	"github.com/disintegration/gift"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	DefaultText         = "DA'PERFECT STUDIOS"
	DefaultMaxDimension = 1920
	DefaultQuality      = 80
	DefaultTimeout      = 30 * time.Second
	DefaultMaxPixels    = 50_000_000 // около 200 МБ после декодирования в RGBA

	// угол наклона текста, против часовой стрелки
	markAngle = 35
	// размер шрифта = min(w, h) / markScale
	markScale   = 15
	minFontSize = 8
)

// цвет #FFD700 с прозрачностью 0.4
var markColor = color.NRGBA{R: 0xFF, G: 0xD7, B: 0x00, A: 102}

// Reason — причина неудачи преобразования
type Reason string

const (
	ReasonDecode     Reason = "decode"
	ReasonColorSpace Reason = "color_space"
	ReasonTimeout    Reason = "timeout"
	ReasonEncode     Reason = "encode"
)

// TransformError — типизированная ошибка преобразования.
// IngestionPipeline перехватывает её и регистрирует изображение в деградированном режиме.
type TransformError struct {
	Reason Reason
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("watermark %s: %v", e.Reason, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// IsTransformError сообщает, является ли err ошибкой преобразования
func IsTransformError(err error) bool {
	var te *TransformError
	return errors.As(err, &te)
}

// Options — фиксированные параметры превью.
// MaxPixels ограничивает заявленную в заголовке площадь до декодирования.
type Options struct {
	Text         string
	MaxDimension int
	Quality      int
	Timeout      time.Duration
	MaxPixels    int
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		Text:         DefaultText,
		MaxDimension: DefaultMaxDimension,
		Quality:      DefaultQuality,
		Timeout:      DefaultTimeout,
		MaxPixels:    DefaultMaxPixels,
	}
}

// Transformer детерминирован при фиксированных Options и безопасен для конкурентного использования
type Transformer struct {
	opts Options
	font *opentype.Font
}

// New создаёт Transformer; пустые поля Options заменяются значениями по умолчанию
func New(opts Options) (*Transformer, error) {
	def := DefaultOptions()
	if opts.Text == "" {
		opts.Text = def.Text
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = def.MaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}

	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("не удалось разобрать шрифт водяного знака: %w", err)
	}
	return &Transformer{opts: opts, font: f}, nil
}

// Options возвращает действующие параметры
func (t *Transformer) Options() Options {
	return t.opts
}

type renderResult struct {
	out []byte
	err error
}

// Transform выполняет Render с ограничением по времени.
// При истечении таймаута возвращает TransformError с ReasonTimeout; фоновая отрисовка
// дорабатывает и результат отбрасывается.
func (t *Transformer) Transform(ctx context.Context, data []byte) ([]byte, error) {
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, &TransformError{Reason: ReasonTimeout, Err: err}
	}

	done := make(chan renderResult, 1)
	go func() {
		out, err := t.Render(data)
		done <- renderResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return nil, &TransformError{Reason: ReasonTimeout, Err: ctx.Err()}
	}
}

// Render — чистая функция: байты оригинала -> байты превью. data не изменяется.
func (t *Transformer) Render(data []byte) (out []byte, err error) {
	defer func() {
		// некоторые декодеры паникуют на битых файлах
		if r := recover(); r != nil {
			out = nil
			err = &TransformError{Reason: ReasonDecode, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := t.checkDimensions(data); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &TransformError{Reason: ReasonDecode, Err: err}
	}
	if err := checkColorModel(src); err != nil {
		return nil, err
	}

	canvas := t.resize(src)
	if err := t.drawMark(canvas); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: t.opts.Quality}); err != nil {
		return nil, &TransformError{Reason: ReasonEncode, Err: err}
	}
	return buf.Bytes(), nil
}

// checkDimensions читает только заголовок и отклоняет файлы, чьё декодирование
// потребовало бы буфер больше MaxPixels точек
func (t *Transformer) checkDimensions(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return &TransformError{Reason: ReasonDecode, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return &TransformError{Reason: ReasonDecode, Err: errors.New("empty image")}
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(t.opts.MaxPixels) {
		return &TransformError{
			Reason: ReasonDecode,
			Err:    fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, t.opts.MaxPixels),
		}
	}
	return nil
}

// checkColorModel отсекает изображения без цветовой информации (маски)
func checkColorModel(img image.Image) error {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return &TransformError{Reason: ReasonDecode, Err: errors.New("empty image")}
	}
	switch img.ColorModel() {
	case color.AlphaModel, color.Alpha16Model:
		return &TransformError{Reason: ReasonColorSpace, Err: errors.New("alpha-only images are not supported")}
	}
	return nil
}

// resize уменьшает изображение так, чтобы длинная сторона не превышала MaxDimension.
// Маленькие изображения не увеличиваются, только копируются в RGBA.
func (t *Transformer) resize(src image.Image) *image.RGBA {
	b := src.Bounds()
	limit := t.opts.MaxDimension

	var g *gift.GIFT
	if b.Dx() > limit || b.Dy() > limit {
		g = gift.New(gift.ResizeToFit(limit, limit, gift.LanczosResampling))
	} else {
		g = gift.New()
	}

	size := g.Bounds(b).Size()
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	g.Draw(dst, src)
	return dst
}

// drawMark рисует текст на прозрачном холсте, поворачивает его и накладывает по центру
func (t *Transformer) drawMark(dst *image.RGBA) error {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	size := w
	if h < size {
		size = h
	}
	fontSize := float64(size / markScale)
	if fontSize < minFontSize {
		fontSize = minFontSize
	}

	face, err := opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return &TransformError{Reason: ReasonEncode, Err: fmt.Errorf("font face: %w", err)}
	}
	defer face.Close()

	metrics := face.Metrics()
	textW := font.MeasureString(face, t.opts.Text).Ceil()
	textH := (metrics.Ascent + metrics.Descent).Ceil()
	if textW <= 0 || textH <= 0 {
		return nil
	}

	label := image.NewRGBA(image.Rect(0, 0, textW, textH))
	d := &font.Drawer{
		Dst:  label,
		Src:  image.NewUniform(markColor),
		Face: face,
		Dot:  fixed.P(0, metrics.Ascent.Ceil()),
	}
	d.DrawString(t.opts.Text)

	rot := gift.New(gift.Rotate(markAngle, color.Transparent, gift.CubicInterpolation))
	rotated := image.NewRGBA(rot.Bounds(label.Bounds()))
	rot.Draw(rotated, label)

	rb := rotated.Bounds()
	at := image.Pt((w-rb.Dx())/2, (h-rb.Dy())/2)
	draw.Draw(dst, rb.Sub(rb.Min).Add(at), rotated, rb.Min, draw.Over)
	return nil
}
