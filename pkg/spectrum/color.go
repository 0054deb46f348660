package spectrum

import (
	"fmt"
	"image/color"
	"math"
)

// PeakColor maps a peak power (dB) to its label color:
//
//	p >= 0          green
//	-10 <= p < 0    yellow -> green on (p+10)/10
//	-20 <= p < -10  red -> yellow on (p+20)/10
//	p < -20         red
func PeakColor(power float64) color.RGBA {
	switch {
	case power >= 0:
		return color.RGBA{R: 0, G: 255, B: 0, A: 255}
	case power >= -10:
		ratio := (power + 10) / 10
		return color.RGBA{R: uint8(math.Floor(255 * (1 - ratio))), G: 255, B: 0, A: 255}
	case power >= -20:
		ratio := (power + 20) / 10
		return color.RGBA{R: 255, G: uint8(math.Floor(255 * ratio)), B: 0, A: 255}
	default:
		// NaN lands here too.
		return color.RGBA{R: 255, G: 0, B: 0, A: 255}
	}
}

// ColorString formats c the way the browser dashboard expects it.
func ColorString(c color.RGBA) string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}
