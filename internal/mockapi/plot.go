package mockapi

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
)

const (
	plotWidth  = 640
	plotHeight = 320
	plotMargin = 20
)

var (
	plotBackground = color.RGBA{0xff, 0xff, 0xff, 0xff}
	plotSeries     = color.RGBA{0x25, 0x63, 0xeb, 0xff}
	plotCenter     = color.RGBA{0x16, 0xa3, 0x4a, 0xff}
	plotLimit      = color.RGBA{0xdc, 0x26, 0x26, 0xff}
)

type canvas struct {
	img      *image.RGBA
	min, max float64
}

func newCanvas(min, max float64) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, plotWidth, plotHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{plotBackground}, image.Point{}, draw.Src)
	if max == min {
		max = min + 1
	}
	return &canvas{img: img, min: min, max: max}
}

func (c *canvas) y(v float64) int {
	span := float64(plotHeight - 2*plotMargin)
	return plotHeight - plotMargin - int(math.Round((v-c.min)/(c.max-c.min)*span))
}

func (c *canvas) x(i, n int) int {
	if n < 2 {
		return plotWidth / 2
	}
	span := float64(plotWidth - 2*plotMargin)
	return plotMargin + int(math.Round(float64(i)/float64(n-1)*span))
}

// line draws with Bresenham's algorithm.
func (c *canvas) line(x0, y0, x1, y1 int, col color.Color) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.img.Set(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *canvas) hline(v float64, col color.Color) {
	y := c.y(v)
	for x := plotMargin; x < plotWidth-plotMargin; x += 2 {
		c.img.Set(x, y, col)
	}
}

func (c *canvas) encode() (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// lineChartPNG plots a series against its centre line and control limits.
func lineChartPNG(values []float64, center, ucl, lcl float64) (string, error) {
	lo, hi := math.Min(lcl, center), math.Max(ucl, center)
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	c := newCanvas(lo, hi)
	c.hline(center, plotCenter)
	c.hline(ucl, plotLimit)
	c.hline(lcl, plotLimit)
	for i := 1; i < len(values); i++ {
		c.line(c.x(i-1, len(values)), c.y(values[i-1]), c.x(i, len(values)), c.y(values[i]), plotSeries)
	}
	return c.encode()
}

// barChartPNG draws one filled bar per count.
func barChartPNG(counts []float64) (string, error) {
	var hi float64
	for _, v := range counts {
		hi = math.Max(hi, v)
	}
	c := newCanvas(0, hi)
	if len(counts) == 0 {
		return c.encode()
	}
	width := (plotWidth - 2*plotMargin) / len(counts)
	for i, v := range counts {
		x0 := plotMargin + i*width
		r := image.Rect(x0+1, c.y(v), x0+width-1, c.y(0)+1)
		draw.Draw(c.img, r, &image.Uniform{plotSeries}, image.Point{}, draw.Src)
	}
	return c.encode()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
