package pipeline

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Preprocessor derives the two pipeline variants of an image: a text-biased
// one for OCR and a lighter one for the vision oracle and embedding. Variants
// are always JPEG regardless of the input format.
type Preprocessor struct {
	targetLongEdge int
}

func NewPreprocessor(targetLongEdge int) *Preprocessor {
	if targetLongEdge <= 0 {
		targetLongEdge = 1600
	}
	return &Preprocessor{targetLongEdge: targetLongEdge}
}

// OCRVariant downscales, grayscales and sharpens the image so small print
// survives into the OCR pass.
func (p *Preprocessor) OCRVariant(raw []byte) ([]byte, error) {
	img, err := p.decode(raw)
	if err != nil {
		return nil, err
	}
	img = p.fitLongEdge(img)
	img = imaging.Grayscale(img)
	img = imaging.AdjustContrast(img, 20)
	img = imaging.Sharpen(img, 1.0)
	return encodeJPEG(img)
}

// VisionVariant downscales and lightly sharpens the image for the vision
// oracle and the embedder. Color is kept.
func (p *Preprocessor) VisionVariant(raw []byte) ([]byte, error) {
	img, err := p.decode(raw)
	if err != nil {
		return nil, err
	}
	img = p.fitLongEdge(img)
	img = imaging.Sharpen(img, 0.5)
	return encodeJPEG(img)
}

func (p *Preprocessor) decode(raw []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// fitLongEdge resizes so the longer side equals the target. Images already at
// or below the target are left alone.
func (p *Preprocessor) fitLongEdge(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= p.targetLongEdge && h <= p.targetLongEdge {
		return img
	}
	if w >= h {
		return imaging.Resize(img, p.targetLongEdge, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, p.targetLongEdge, imaging.Lanczos)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode variant: %w", err)
	}
	return buf.Bytes(), nil
}
