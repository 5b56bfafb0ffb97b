// Package plot renders charts of a training run: the soil moisture
// trajectory of a learned irrigation schedule as a PNG image, and the
// training loss curve as an HTML page.
package plot

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"
)

var (
	background       = color.White
	comfortShade     = color.NRGBA{R: 144, G: 238, B: 144, A: 77}
	wiltColour       = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	saturationColour = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	lineColour       = color.RGBA{R: 30, G: 60, B: 220, A: 255}
	axisColour       = color.Black
	gridColour       = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

const margin = 60.0

// MoistureChart draws a soil moisture trajectory over days on a fixed
// [0, 1] moisture axis, with the comfort zone between the wilting point
// and saturation shaded
type MoistureChart struct {
	Moisture     []float64
	WiltingPoint float64
	Saturation   float64

	Width, Height int
}

// NewMoistureChart returns a new MoistureChart of the default size
func NewMoistureChart(moisture []float64, wiltingPoint,
	saturation float64) *MoistureChart {
	return &MoistureChart{
		Moisture:     moisture,
		WiltingPoint: wiltingPoint,
		Saturation:   saturation,
		Width:        900,
		Height:       500,
	}
}

// draw draws the chart onto a new context
func (m *MoistureChart) draw() (*gg.Context, error) {
	if len(m.Moisture) == 0 {
		return nil, fmt.Errorf("draw: no moisture values")
	}
	if m.Width <= 2*margin || m.Height <= 2*margin {
		return nil, fmt.Errorf("draw: chart of size %dx%d is too small",
			m.Width, m.Height)
	}

	dc := gg.NewContext(m.Width, m.Height)
	dc.SetColor(background)
	dc.Clear()

	w, h := float64(m.Width), float64(m.Height)
	plotW, plotH := w-2*margin, h-2*margin
	days := len(m.Moisture) - 1

	x := func(day int) float64 {
		if days == 0 {
			return margin + plotW/2
		}
		return margin + float64(day)/float64(days)*plotW
	}
	y := func(moisture float64) float64 {
		return margin + (1-moisture)*plotH
	}

	// Grid and tick labels
	dc.SetColor(gridColour)
	dc.SetLineWidth(1)
	for i := 0; i <= 10; i++ {
		level := float64(i) / 10
		dc.DrawLine(margin, y(level), w-margin, y(level))
		dc.Stroke()
	}
	dc.SetColor(axisColour)
	for i := 0; i <= 10; i += 2 {
		level := float64(i) / 10
		dc.DrawStringAnchored(fmt.Sprintf("%.1f", level), margin-8, y(level),
			1, 0.5)
	}
	tickEvery := int(math.Max(1, math.Ceil(float64(days)/15)))
	for day := 0; day <= days; day += tickEvery {
		dc.DrawStringAnchored(fmt.Sprint(day), x(day), h-margin+14, 0.5, 0.5)
	}

	// Comfort zone
	dc.SetColor(comfortShade)
	dc.DrawRectangle(margin, y(m.Saturation), plotW,
		y(m.WiltingPoint)-y(m.Saturation))
	dc.Fill()

	// Thresholds
	dc.SetLineWidth(2)
	dc.SetDash(8, 6)
	dc.SetColor(wiltColour)
	dc.DrawLine(margin, y(m.WiltingPoint), w-margin, y(m.WiltingPoint))
	dc.Stroke()
	dc.SetColor(saturationColour)
	dc.DrawLine(margin, y(m.Saturation), w-margin, y(m.Saturation))
	dc.Stroke()
	dc.SetDash()

	// Trajectory
	dc.SetColor(lineColour)
	dc.SetLineWidth(2)
	for day, moisture := range m.Moisture {
		dc.LineTo(x(day), y(moisture))
	}
	dc.Stroke()
	for day, moisture := range m.Moisture {
		dc.DrawCircle(x(day), y(moisture), 4)
		dc.Fill()
	}

	// Axes and labels
	dc.SetColor(axisColour)
	dc.SetLineWidth(1.5)
	dc.DrawLine(margin, margin, margin, h-margin)
	dc.DrawLine(margin, h-margin, w-margin, h-margin)
	dc.Stroke()

	dc.DrawStringAnchored("Soil Moisture Trajectory (Learned Policy)", w/2,
		margin/2, 0.5, 0.5)
	dc.DrawStringAnchored("Day", w/2, h-margin/3, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(-math.Pi/2, margin/3, h/2)
	dc.DrawStringAnchored("Moisture Level", margin/3, h/2, 0.5, 0.5)
	dc.Pop()

	return dc, nil
}

// Render encodes the chart as a PNG image to w
func (m *MoistureChart) Render(w io.Writer) error {
	dc, err := m.draw()
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// Save saves the chart as a PNG image to filename
func (m *MoistureChart) Save(filename string) error {
	dc, err := m.draw()
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := dc.SavePNG(filename); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
