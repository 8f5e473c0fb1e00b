package availability

import (
	"fmt"
	"math"
)

// LegendIntensities are the intensity stops shown in the heatmap legend.
var LegendIntensities = []float64{0.1, 0.35, 0.6, 0.85, 1.0}

const legendGreenRatio = 0.7

// HSL is a display color. Hue is in degrees; saturation and lightness are percentages.
type HSL struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Lightness  float64 `json:"lightness"`
}

// String renders the color as a CSS hsl() value. Components round half up.
func (c HSL) String() string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)",
		int(math.Round(c.Hue)), int(math.Round(c.Saturation)), int(math.Round(c.Lightness)))
}

// Hex renders the color as "RRGGBB" for spreadsheet fills.
func (c HSL) Hex() string {
	h := math.Mod(c.Hue, 360) / 360
	s := c.Saturation / 100
	l := c.Lightness / 100

	if s == 0 {
		v := toByte(l)
		return fmt.Sprintf("%02X%02X%02X", v, v, v)
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	r := hueToRGB(p, q, h+1.0/3)
	g := hueToRGB(p, q, h)
	b := hueToRGB(p, q, h-1.0/3)
	return fmt.Sprintf("%02X%02X%02X", toByte(r), toByte(g), toByte(b))
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// MaxParticipants returns the highest green+yellow over all cells.
func MaxParticipants(heatmap Heatmap) int {
	maxP := 0
	for _, day := range heatmap {
		for _, c := range day {
			if p := c.Participants(); p > maxP {
				maxP = p
			}
		}
	}
	return maxP
}

// Percentage returns participants/total as a whole percent, or 0 when total is 0.
func Percentage(participants, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(participants) / float64(total) * 100))
}

// CellColor returns the background of a cell. Hue and saturation move toward
// green with the share of free marks; lightness drops with participation
// relative to maxParticipants. Empty cells report false.
func CellColor(c Cell, maxParticipants int) (HSL, bool) {
	total := c.Participants()
	if total == 0 {
		return HSL{}, false
	}

	var intensity float64
	if maxParticipants > 0 {
		intensity = float64(total) / float64(maxParticipants)
	}
	greenRatio := float64(c.Green) / float64(total)
	return colorFor(greenRatio, intensity), true
}

// LegendSwatches returns the legend colors for LegendIntensities.
func LegendSwatches() []HSL {
	out := make([]HSL, len(LegendIntensities))
	for i, intensity := range LegendIntensities {
		out[i] = colorFor(legendGreenRatio, intensity)
	}
	return out
}

func colorFor(greenRatio, intensity float64) HSL {
	return HSL{
		Hue:        75 + greenRatio*45,
		Saturation: 35 + greenRatio*30,
		Lightness:  94 - intensity*49,
	}
}
