// Package render draws a puzzle position as a PNG.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-puzzle/internal/board"
)

const (
	DefaultSquareSize = 64

	sideMargin   = 28
	topMargin    = 56
	bottomMargin = 28
	captionH     = 32
	panelRadius  = 10
)

type Options struct {
	// LastMove is shaded on both of its squares.
	LastMove *board.Move
	// Hint is drawn as an arrow.
	Hint *board.Move
	// Flip puts rank 1 at the top, for black to move.
	Flip       bool
	Caption    string
	SquareSize int
}

type Renderer interface {
	RenderPNG(ctx context.Context, b board.Board, opts Options) ([]byte, error)
}

type pngRenderer struct{}

func New() Renderer { return pngRenderer{} }

var (
	lightSquare      = color.RGBA{233, 207, 163, 255}
	darkSquare       = color.RGBA{187, 136, 96, 255}
	lastMoveFill     = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	hintArrowColor   = color.NRGBA{R: 80, G: 170, B: 255, A: 180}
	panelColor       = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	panelShadowColor = color.NRGBA{0, 0, 0, 50}
	panelTextColor   = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	backgroundColor  = color.RGBA{246, 243, 238, 255}
	coordinateColor  = color.NRGBA{R: 90, G: 78, B: 64, A: 255}
)

// Size reports the image dimensions for a square size.
func Size(squareSize int) (int, int) {
	if squareSize <= 0 {
		squareSize = DefaultSquareSize
	}
	boardSize := squareSize * 8
	return boardSize + sideMargin*2, boardSize + topMargin + bottomMargin
}

func (pngRenderer) RenderPNG(ctx context.Context, b board.Board, opts Options) ([]byte, error) {
	size := opts.SquareSize
	if size <= 0 {
		size = DefaultSquareSize
	}
	w, h := Size(size)
	origin := image.Point{X: sideMargin, Y: topMargin}
	boardRect := image.Rect(origin.X, origin.Y, origin.X+size*8, origin.Y+size*8)
	g := geometry{size: size, origin: origin, flip: opts.Flip}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawCaption(img, boardRect, opts.Caption)
	drawSquares(img, g)
	if m := opts.LastMove; m != nil && m.From.Valid() && m.To.Valid() {
		drawSquareOverlay(img, g.rect(m.From), lastMoveFill)
		drawSquareOverlay(img, g.rect(m.To), lastMoveFill)
	}
	if err := drawPieces(img, b, g); err != nil {
		return nil, err
	}
	if m := opts.Hint; m != nil && m.From.Valid() && m.To.Valid() {
		drawArrow(img, g.rect(m.From), g.rect(m.To), size, hintArrowColor)
	}
	drawCoordinates(img, g)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// geometry maps board squares to pixels.
type geometry struct {
	size   int
	origin image.Point
	flip   bool
}

func (g geometry) cell(s board.Square) (row, col int) {
	row, col = s.Row(), s.Col()
	if g.flip {
		row, col = 7-row, 7-col
	}
	return row, col
}

func (g geometry) rect(s board.Square) image.Rectangle {
	row, col := g.cell(s)
	x := g.origin.X + col*g.size
	y := g.origin.Y + row*g.size
	return image.Rect(x, y, x+g.size, y+g.size)
}

func squareColor(s board.Square) color.Color {
	if (s.Row()+s.Col())%2 == 1 {
		return darkSquare
	}
	return lightSquare
}

func drawSquares(dst *image.RGBA, g geometry) {
	for i := 0; i < 64; i++ {
		s := board.Square(i)
		imagedraw.Draw(dst, g.rect(s), image.NewUniform(squareColor(s)), image.Point{}, imagedraw.Src)
	}
}

func drawPieces(dst *image.RGBA, b board.Board, g geometry) error {
	for i := 0; i < 64; i++ {
		s := board.Square(i)
		p := b.At(s)
		if p.IsEmpty() {
			continue
		}
		glyph, err := renderPieceImage(p, g.size)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, g.rect(s), glyph, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawCoordinates(dst *image.RGBA, g geometry) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateColor)}
	ascent := face.Metrics().Ascent.Ceil()
	boardBottom := g.origin.Y + 8*g.size

	for i := 0; i < 8; i++ {
		// Left column squares carry the rank, bottom row squares the file.
		rankSq := board.NewSquare(i, 0)
		fileSq := board.NewSquare(7, i)
		if g.flip {
			rankSq = board.NewSquare(7-i, 7)
			fileSq = board.NewSquare(0, 7-i)
		}
		r := g.rect(rankSq)
		drawCenteredText(drawer, strconv.Itoa(rankSq.Rank()), g.origin.X-sideMargin/2, r.Min.Y+g.size/2+ascent/2)
		f := g.rect(fileSq)
		drawCenteredText(drawer, string(fileSq.File()), f.Min.X+g.size/2, boardBottom+ascent+4)
	}
}

func drawCaption(img *image.RGBA, boardRect image.Rectangle, caption string) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return
	}
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}
	width := drawer.MeasureString(caption).Round() + 40
	if width > boardRect.Dx() {
		width = boardRect.Dx()
	}
	left := boardRect.Min.X + (boardRect.Dx()-width)/2
	bottom := boardRect.Min.Y - 12
	rect := image.Rect(left, bottom-captionH, left+width, bottom)

	drawRoundedPanel(img, rect.Add(image.Pt(0, 4)), panelRadius, panelShadowColor)
	drawRoundedPanel(img, rect, panelRadius, panelColor)

	metrics := face.Metrics()
	w := drawer.MeasureString(caption).Round()
	x := rect.Min.X + (rect.Dx()-w)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	drawer.Src = image.NewUniform(panelTextColor)
	drawer.Dot = fixed.P(x, rect.Min.Y+(rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2)
	drawer.DrawString(caption)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	maxRadius := rect.Dx() / 2
	if r := rect.Dy() / 2; r < maxRadius {
		maxRadius = r
	}
	if radius > maxRadius {
		radius = maxRadius
	}
	fill := image.NewUniform(clr)
	if radius <= 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)

	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, c := range corners {
		drawQuarterDisc(img, c, radius, rect, clr)
	}
}

// drawQuarterDisc fills the part of the disc at center that lies outside the
// already painted cross of a rounded panel.
func drawQuarterDisc(img *image.RGBA, center image.Point, radius int, panel image.Rectangle, clr color.Color) {
	inner := image.Rect(panel.Min.X+radius, panel.Min.Y+radius, panel.Max.X-radius, panel.Max.Y-radius)
	rSquared := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > rSquared {
				continue
			}
			p := image.Pt(center.X+x, center.Y+y)
			if !p.In(panel) {
				continue
			}
			if p.X >= inner.Min.X && p.X < inner.Max.X {
				continue
			}
			if p.Y >= inner.Min.Y && p.Y < inner.Max.Y {
				continue
			}
			blendPixel(img, p.X, p.Y, clr)
		}
	}
}

func drawArrow(img *image.RGBA, from, to image.Rectangle, squareSize int, clr color.Color) {
	start := pointF{X: float64(from.Min.X + squareSize/2), Y: float64(from.Min.Y + squareSize/2)}
	end := pointF{X: float64(to.Min.X + squareSize/2), Y: float64(to.Min.Y + squareSize/2)}

	dx := end.X - start.X
	dy := end.Y - start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	baseLength := length - float64(squareSize)*0.45
	if baseLength < float64(squareSize)*0.35 {
		baseLength = length * 0.6
	}
	halfWidth := float64(squareSize) * 0.12
	headWidth := float64(squareSize) * 0.5

	baseX := start.X + dirX*baseLength
	baseY := start.Y + dirY*baseLength

	fillQuad(img,
		pointF{X: start.X - perpX*halfWidth, Y: start.Y - perpY*halfWidth},
		pointF{X: start.X + perpX*halfWidth, Y: start.Y + perpY*halfWidth},
		pointF{X: baseX + perpX*halfWidth, Y: baseY + perpY*halfWidth},
		pointF{X: baseX - perpX*halfWidth, Y: baseY - perpY*halfWidth},
		clr,
	)
	fillTriangleF(img,
		end,
		pointF{X: baseX - perpX*headWidth/2, Y: baseY - perpY*headWidth/2},
		pointF{X: baseX + perpX*headWidth/2, Y: baseY + perpY*headWidth/2},
		clr,
	)
}

type pointF struct {
	X float64
	Y float64
}

func fillQuad(img *image.RGBA, p0, p1, p2, p3 pointF, clr color.Color) {
	fillTriangleF(img, p0, p1, p2, clr)
	fillTriangleF(img, p0, p2, p3, clr)
}

func fillTriangleF(img *image.RGBA, a, b, c pointF, clr color.Color) {
	minX := int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))))
	maxX := int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))))
	minY := int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))))
	maxY := int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if pointInTriangle(float64(x)+0.5, float64(y)+0.5, a, b, c) {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func pointInTriangle(x, y float64, a, b, c pointF) bool {
	denom := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if denom == 0 {
		return false
	}
	alpha := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / denom
	beta := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / denom
	gamma := 1 - alpha - beta
	return alpha >= 0 && beta >= 0 && gamma >= 0
}

// blendPixel composites clr over the pixel at x, y.
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 0xffff - sa
	mix := func(s uint32, d uint8) uint8 {
		return uint8((s + uint32(d)*0x101*inv/0xffff) >> 8)
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(sr, dst.R),
		G: mix(sg, dst.G),
		B: mix(sb, dst.B),
		A: mix(sa, dst.A),
	})
}
