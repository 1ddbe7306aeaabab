package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Pieces are drawn as shaded discs with the piece letter on top.
const discSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
<circle cx="50" cy="50" r="38" fill="%s" stroke="%s" stroke-width="5"/>
</svg>`

type discKey struct {
	white bool
	size  int
}

var (
	discCache   = map[discKey]*image.RGBA{}
	discCacheMu sync.RWMutex
)

func disc(white bool, size int) (*image.RGBA, error) {
	key := discKey{white: white, size: size}
	discCacheMu.RLock()
	img, ok := discCache[key]
	discCacheMu.RUnlock()
	if ok {
		return img, nil
	}

	fill, stroke := "#2b2b2b", "#f0f0f0"
	if white {
		fill, stroke = "#f7f7f2", "#1c1c1c"
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(fmt.Sprintf(discSVG, fill, stroke)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img = image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.Transparent, image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	discCacheMu.Lock()
	discCache[key] = img
	discCacheMu.Unlock()
	return img, nil
}

func drawPiece(dst *image.RGBA, p nchess.Piece, rect image.Rectangle) error {
	letter := pieceLetter(p)
	if letter == 0 {
		return nil
	}
	white := p.Color() == nchess.White
	img, err := disc(white, rect.Dx())
	if err != nil {
		return err
	}
	draw.Draw(dst, rect, img, image.Point{}, draw.Over)

	ink := color.RGBA{240, 240, 240, 255}
	if white {
		ink = color.RGBA{20, 20, 20, 255}
	}
	drawCentered(dst, strings.ToUpper(string(letter)), rect, ink)
	return nil
}

// drawCentered writes text centred in rect with the built-in 7x13 face.
func drawCentered(dst *image.RGBA, text string, rect image.Rectangle, clr color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(clr), Face: face}
	width := d.MeasureString(text).Round()
	m := face.Metrics()
	x := rect.Min.X + (rect.Dx()-width)/2
	y := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

func drawText(dst *image.RGBA, text string, x, baseline int, clr color.Color) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(clr), Face: basicfont.Face7x13, Dot: fixed.P(x, baseline)}
	d.DrawString(text)
}
