package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
)

const DefaultMaxSide = 512

// MaxSourceSide bounds decoded canvases; larger images are rejected before decoding.
const MaxSourceSide = 4096

// ScribbleProcessor prepares raw canvas exports for the diffusion model.
type ScribbleProcessor interface {
	Normalize(data []byte) ([]byte, error)
}

type scribbleProcessor struct {
	maxSide int
}

func NewScribbleProcessor(maxSide int) ScribbleProcessor {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	return &scribbleProcessor{maxSide: maxSide}
}

// Normalize decodes the scribble, flattens transparency onto white,
// fits it inside maxSide x maxSide and re-encodes it as PNG.
func (p *scribbleProcessor) Normalize(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	if cfg.Width > MaxSourceSide || cfg.Height > MaxSourceSide {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dpx per side", entity.ErrInvalidImage, cfg.Width, cfg.Height, MaxSourceSide)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", entity.ErrInvalidImage)
	}

	flat := p.flatten(img)
	fitted := imaging.Fit(flat, p.maxSide, p.maxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode scribble: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *scribbleProcessor) flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}
