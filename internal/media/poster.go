package media

import (
	"bytes"
	_ "embed"
	"fmt"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

//go:embed assets/poster_bg.png
var posterBackground []byte

const (
	// PosterUnitPrice is the fixed per-unit price used when the caller omits
	// an explicit amount.
	PosterUnitPrice = 450

	posterWidth       = 1080
	posterHeight      = 1080
	posterJPEGQuality = 85
)

// PosterRequest carries the template fields for a rasterized poster.
type PosterRequest struct {
	Name     string
	Quantity int
	Amount   int
}

// Normalize applies the deterministic defaults: quantity 1 when missing,
// amount = quantity x unit price when missing.
func (r *PosterRequest) Normalize() {
	if r.Quantity <= 0 {
		r.Quantity = 1
	}
	if r.Amount <= 0 {
		r.Amount = r.Quantity * PosterUnitPrice
	}
}

var (
	fontOnce   sync.Once
	fontErr    error
	headerFace font.Face
	bodyFace   font.Face
	stampFace  font.Face
)

func loadFaces() {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		fontErr = fmt.Errorf("parse bold font: %w", err)
		return
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		fontErr = fmt.Errorf("parse regular font: %w", err)
		return
	}
	headerFace, fontErr = opentype.NewFace(bold, &opentype.FaceOptions{Size: 72, DPI: 72})
	if fontErr != nil {
		return
	}
	bodyFace, fontErr = opentype.NewFace(regular, &opentype.FaceOptions{Size: 48, DPI: 72})
	if fontErr != nil {
		return
	}
	stampFace, fontErr = opentype.NewFace(regular, &opentype.FaceOptions{Size: 26, DPI: 72})
}

// RenderPoster composites the template fields onto the fixed background at
// predetermined coordinates and encodes the result as JPEG. Fully local: no
// network, no external process, deterministic apart from the timestamp
// watermark.
func RenderPoster(req PosterRequest) ([]byte, error) {
	req.Normalize()
	fontOnce.Do(loadFaces)
	if fontErr != nil {
		return nil, fontErr
	}

	bg, err := png.Decode(bytes.NewReader(posterBackground))
	if err != nil {
		return nil, fmt.Errorf("decode poster background: %w", err)
	}

	dc := gg.NewContextForImage(bg)

	dc.SetFontFace(headerFace)
	dc.SetRGB255(247, 243, 233)
	dc.DrawStringAnchored("ORDER CONFIRMED", posterWidth/2, 160, 0.5, 0.5)

	dc.SetRGB255(18, 77, 56)
	dc.DrawStringAnchored(strings.ToUpper(req.Name), posterWidth/2, 460, 0.5, 0.5)

	dc.SetFontFace(bodyFace)
	dc.SetRGB255(60, 60, 60)
	dc.DrawStringAnchored(fmt.Sprintf("Quantity: %d", req.Quantity), posterWidth/2, 600, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("Amount: Rs. %d", req.Amount), posterWidth/2, 690, 0.5, 0.5)

	dc.SetFontFace(stampFace)
	dc.SetRGB255(140, 140, 140)
	stamp := time.Now().Format("02 Jan 2006 15:04")
	dc.DrawStringAnchored(stamp, posterWidth-40, posterHeight-40, 1, 1)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: posterJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode poster: %w", err)
	}
	return buf.Bytes(), nil
}
