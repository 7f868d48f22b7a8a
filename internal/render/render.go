// Package render draws arena snapshots with gg. Frames are produced on
// demand for the HTTP API and the CLI; nothing here touches live engine
// state.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"

	"bond-arena/internal/config"
	"bond-arena/internal/game"
)

// bondSpacing is the gap between parallel lines of a multiple bond.
const bondSpacing = 6.0

var (
	backgroundColor = color.RGBA{14, 16, 24, 255}
	gridColor       = color.RGBA{28, 32, 46, 255}
	bondColor       = color.RGBA{200, 205, 220, 255}
	hudColor        = color.RGBA{235, 238, 245, 255}
	hudMutedColor   = color.RGBA{140, 146, 165, 255}
	highlightColor  = color.RGBA{0, 212, 255, 255}
)

// Renderer draws snapshots. Font faces are not safe for concurrent use, so
// frames are drawn one at a time.
type Renderer struct {
	mu     sync.Mutex
	width  int
	height int

	labelFace font.Face
	hudFace   font.Face
}

// New creates a renderer for the arena size. It uses a system TrueType font
// when one is found and the built-in bitmap face otherwise.
func New(arena config.ArenaConfig) *Renderer {
	r := &Renderer{
		width:     max(1, int(arena.Width)),
		height:    max(1, int(arena.Height)),
		labelFace: basicfont.Face7x13,
		hudFace:   basicfont.Face7x13,
	}
	r.loadFonts()
	return r
}

// loadFonts replaces the bitmap faces with TrueType ones if possible.
func (r *Renderer) loadFonts() {
	fontPath := findFontPath()
	if fontPath == "" {
		return
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		log.Printf("⚠️ Failed to read font file: %v", err)
		return
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		log.Printf("⚠️ Failed to parse font: %v", err)
		return
	}

	label, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: 14, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		log.Printf("⚠️ Failed to create label font face: %v", err)
		return
	}
	hud, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: 22, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		log.Printf("⚠️ Failed to create HUD font face: %v", err)
		return
	}
	r.labelFace, r.hudFace = label, hud
}

func findFontPath() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Supplemental/Arial Bold.ttf",
		"C:\\Windows\\Fonts\\arialbd.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if matches, _ := filepath.Glob("*.ttf"); len(matches) > 0 {
		return matches[0]
	}
	return ""
}

// Size returns the frame dimensions.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// Render draws snap into a new image. A nil snapshot yields an empty arena.
func (r *Renderer) Render(snap *game.GameSnapshot) image.Image {
	return r.draw(snap).Image()
}

// EncodePNG renders snap and writes it as PNG.
func (r *Renderer) EncodePNG(w io.Writer, snap *game.GameSnapshot) error {
	if err := r.draw(snap).EncodePNG(w); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

// SavePNG renders snap to a file.
func (r *Renderer) SavePNG(path string, snap *game.GameSnapshot) error {
	if err := r.draw(snap).SavePNG(path); err != nil {
		return fmt.Errorf("save frame %s: %w", path, err)
	}
	return nil
}

func (r *Renderer) draw(snap *game.GameSnapshot) *gg.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContext(r.width, r.height)
	r.drawBackground(dc)
	if snap == nil {
		return dc
	}

	drawBonds(dc, snap.Bonds)
	r.drawAtoms(dc, snap)
	drawParticles(dc, snap.Particles)
	r.drawTexts(dc, snap.Texts)
	r.drawHUD(dc, snap)
	return dc
}

func (r *Renderer) drawBackground(dc *gg.Context) {
	dc.SetColor(backgroundColor)
	dc.DrawRectangle(0, 0, float64(r.width), float64(r.height))
	dc.Fill()

	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	const gridSize = 80.0
	for x := gridSize; x < float64(r.width); x += gridSize {
		dc.DrawLine(x, 0, x, float64(r.height))
		dc.Stroke()
	}
	for y := gridSize; y < float64(r.height); y += gridSize {
		dc.DrawLine(0, y, float64(r.width), y)
		dc.Stroke()
	}
}

// drawBonds draws each bond as one line, offset sideways by its order among
// the bonds of the same pair so double and triple bonds appear parallel.
func drawBonds(dc *gg.Context, bonds []game.BondSnapshot) {
	dc.SetColor(bondColor)
	dc.SetLineWidth(3)
	for _, b := range bonds {
		dx, dy := b.BX-b.AX, b.BY-b.AY
		length := math.Hypot(dx, dy)
		if length < 1e-9 {
			continue
		}
		nx, ny := -dy/length, dx/length
		offset := (float64(b.Order) - float64(max(b.Count, 1)-1)/2) * bondSpacing
		ox, oy := nx*offset, ny*offset
		dc.DrawLine(b.AX+ox, b.AY+oy, b.BX+ox, b.BY+oy)
		dc.Stroke()
	}
}

func (r *Renderer) drawAtoms(dc *gg.Context, snap *game.GameSnapshot) {
	dc.SetFontFace(r.labelFace)
	for _, a := range snap.Atoms {
		radius := a.Radius * a.Scale
		if radius < 0.5 {
			continue
		}

		fill := parseHexColor(a.Color)
		dc.SetColor(fill)
		dc.DrawCircle(a.X, a.Y, radius)
		dc.Fill()

		// Ring shows remaining capacity: bright when the atom can still bond
		if a.Dragged || a.ID == snap.Dragging {
			dc.SetColor(highlightColor)
			dc.SetLineWidth(3)
		} else if a.CurrentBonds >= a.Valency {
			dc.SetColor(color.RGBA{90, 94, 110, 255})
			dc.SetLineWidth(1.5)
		} else {
			dc.SetColor(color.RGBA{255, 255, 255, 160})
			dc.SetLineWidth(1.5)
		}
		dc.DrawCircle(a.X, a.Y, radius)
		dc.Stroke()

		if a.Scale > 0.6 {
			dc.SetColor(labelColor(fill))
			dc.DrawStringAnchored(a.Element.String(), a.X, a.Y, 0.5, 0.35)
		}
	}
}

func drawParticles(dc *gg.Context, particles []game.ParticleSnapshot) {
	for _, p := range particles {
		c := parseHexColor(p.Color)
		c.A = alpha(p.Alpha)
		dc.SetColor(c)
		dc.DrawCircle(p.X, p.Y, 2.5)
		dc.Fill()
	}
}

func (r *Renderer) drawTexts(dc *gg.Context, texts []game.TextSnapshot) {
	dc.SetFontFace(r.hudFace)
	for _, t := range texts {
		c := parseHexColor(t.Color)
		c.A = alpha(t.Alpha)
		dc.SetColor(c)
		dc.DrawStringAnchored(t.Text, t.X, t.Y, 0.5, 0.5)
	}
}

func (r *Renderer) drawHUD(dc *gg.Context, snap *game.GameSnapshot) {
	const margin = 24.0

	dc.SetColor(color.RGBA{0, 0, 0, 140})
	dc.DrawRoundedRectangle(margin, margin, 260, 64, 6)
	dc.Fill()
	dc.SetColor(highlightColor)
	dc.DrawRoundedRectangle(margin, margin, 4, 64, 2)
	dc.Fill()

	dc.SetFontFace(r.hudFace)
	dc.SetColor(hudColor)
	dc.DrawString(fmt.Sprintf("SCORE %d", snap.Score), margin+18, margin+28)

	dc.SetFontFace(r.labelFace)
	dc.SetColor(hudMutedColor)
	status := "no session"
	if snap.SessionActive {
		status = snap.Player
	}
	dc.DrawString(fmt.Sprintf("%s · %d molecules · undo %d", status, snap.Molecules, snap.UndoDepth), margin+18, margin+50)
}

// labelColor picks black or white text for legibility on fill.
func labelColor(fill color.RGBA) color.Color {
	luma := 0.299*float64(fill.R) + 0.587*float64(fill.G) + 0.114*float64(fill.B)
	if luma > 150 {
		return color.RGBA{20, 20, 20, 255}
	}
	return color.White
}

func alpha(a float64) uint8 {
	return uint8(math.Max(0, math.Min(1, a)) * 255)
}

func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}

	var r, g, b uint8
	fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b)
	return color.RGBA{r, g, b, 255}
}
