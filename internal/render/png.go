package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/livechess/internal/livegame"
	"github.com/park285/livechess/internal/overlay"
)

const (
	squareSize = 48
	boardPx    = squareSize * 8
	sideMargin = 24
	hudHeight  = 28
	coordBand  = 16
)

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	backgroundFill = color.RGBA{28, 31, 46, 255}
	highlightFill  = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	checkFill      = color.NRGBA{R: 230, G: 40, B: 40, A: 150}
	hudText        = color.RGBA{236, 239, 255, 255}
	coordText      = color.RGBA{8, 214, 120, 255}
)

// PNG renders snapshots as board images.
type PNG struct{}

func NewPNG() *PNG { return &PNG{} }

// Size is the pixel size of every image RenderPNG produces.
func (r *PNG) Size() (w, h int) {
	return boardPx + sideMargin*2, boardPx + hudHeight*2 + coordBand
}

func (r *PNG) RenderPNG(ctx context.Context, snap livegame.Snapshot, ov overlay.State) ([]byte, error) {
	board, err := boardOf(snap)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h := r.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundFill), image.Point{}, draw.Src)
	origin := image.Pt(sideMargin, hudHeight)
	pov := snap.PointOfView

	ranks, files := layout(pov)
	for row, rk := range ranks {
		for col, f := range files {
			sq := nchess.NewSquare(f, rk)
			draw.Draw(img, squareAt(origin, row, col), image.NewUniform(squareColor(sq)), image.Point{}, draw.Src)
		}
	}
	for sq := range highlighted(snap, ov) {
		row, col := cell(sq, pov)
		draw.Draw(img, squareAt(origin, row, col), image.NewUniform(highlightFill), image.Point{}, draw.Over)
	}
	if king, ok := checkedKing(snap, board); ok {
		row, col := cell(king, pov)
		draw.Draw(img, squareAt(origin, row, col), image.NewUniform(checkFill), image.Point{}, draw.Over)
	}
	if ov.Mode != overlay.ModeBlindfold {
		for row, rk := range ranks {
			for col, f := range files {
				if err := drawPiece(img, board.Piece(nchess.NewSquare(f, rk)), squareAt(origin, row, col)); err != nil {
					return nil, err
				}
			}
		}
	}
	if ov.Mode == overlay.ModeCoordinates {
		for i, rk := range ranks {
			drawCentered(img, rk.String(), image.Rect(0, origin.Y+i*squareSize, sideMargin, origin.Y+(i+1)*squareSize), coordText)
		}
		for i, f := range files {
			drawCentered(img, f.String(), image.Rect(origin.X+i*squareSize, origin.Y+boardPx, origin.X+(i+1)*squareSize, origin.Y+boardPx+coordBand), coordText)
		}
	}
	drawHUD(img, snap, origin)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHUD(img *image.RGBA, snap livegame.Snapshot, origin image.Point) {
	top, bottom := snap.PointOfView.Opponent(), snap.PointOfView
	line := func(side livegame.Color) string {
		return fmt.Sprintf("%s  %s", snap.Players[side.Index()].Label(), livegame.FormatClock(snap.Clocks[side.Index()]))
	}
	drawText(img, line(top), origin.X, hudHeight-9, hudText)
	drawText(img, line(bottom), origin.X, origin.Y+boardPx+coordBand+hudHeight-9, hudText)
}

func squareAt(origin image.Point, row, col int) image.Rectangle {
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
