package quality

import (
	"image"
	"math"
)

// plane indexes the pixels of a grayscale image with border handling. It
// shares the image's buffer.
type plane struct {
	w, h, stride int
	pix          []uint8
}

func newPlane(g *image.Gray) plane {
	return plane{w: g.Bounds().Dx(), h: g.Bounds().Dy(), stride: g.Stride, pix: g.Pix}
}

// reflect101 maps an out-of-range index back inside [0,n) mirroring around the
// edge pixel without repeating it (dcb|abcd|cba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (p plane) reflected(x, y int) float64 {
	return float64(p.pix[reflect101(y, p.h)*p.stride+reflect101(x, p.w)])
}

func (p plane) replicated(x, y int) float64 {
	return float64(p.pix[clamp(y, p.h)*p.stride+clamp(x, p.w)])
}

// LaplacianVariance is the variance of the 4-neighbour Laplacian response.
// Sharp images have strong second derivatives and therefore a high variance.
func LaplacianVariance(g *image.Gray) float64 {
	return newPlane(g).laplacianVariance()
}

func (p plane) laplacianVariance() float64 {
	n := p.w * p.h
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			v := p.reflected(x-1, y) + p.reflected(x+1, y) +
				p.reflected(x, y-1) + p.reflected(x, y+1) -
				4*p.reflected(x, y)
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// EdgeRatio runs a Canny detector (Sobel gradients, L1 magnitude, non-maximum
// suppression, hysteresis) and returns the fraction of edge pixels.
func EdgeRatio(g *image.Gray, low, high float64) float64 {
	return newPlane(g).edgeRatio(low, high)
}

// Gradient directions quantized for non-maximum suppression.
const (
	dirHorizontal uint8 = iota
	dirVertical
	dirDiagonal
	dirAntiDiagonal
)

func (p plane) edgeRatio(low, high float64) float64 {
	n := p.w * p.h
	if n == 0 {
		return 0
	}
	const (
		tan22 = 0.41421356
		tan67 = 2.41421356
	)
	// Sobel sums of 8-bit pixels are small integers, exact in float32.
	mag := make([]float32, n)
	dir := make([]uint8, n)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			tl, tc, tr := p.replicated(x-1, y-1), p.replicated(x, y-1), p.replicated(x+1, y-1)
			ml, mr := p.replicated(x-1, y), p.replicated(x+1, y)
			bl, bc, br := p.replicated(x-1, y+1), p.replicated(x, y+1), p.replicated(x+1, y+1)
			dx := (tr + 2*mr + br) - (tl + 2*ml + bl)
			dy := (bl + 2*bc + br) - (tl + 2*tc + tr)
			i := y*p.w + x
			ax, ay := math.Abs(dx), math.Abs(dy)
			mag[i] = float32(ax + ay)
			switch {
			case ay <= ax*tan22:
				dir[i] = dirHorizontal
			case ay >= ax*tan67:
				dir[i] = dirVertical
			case dx*dy > 0:
				dir[i] = dirDiagonal
			default:
				dir[i] = dirAntiDiagonal
			}
		}
	}

	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= p.w || y >= p.h {
			return 0
		}
		return float64(mag[y*p.w+x])
	}

	const (
		none = iota
		weak
		strong
	)
	// dir is not read again after suppression, so its buffer holds the classes.
	class := dir
	var stack []int
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			i := y*p.w + x
			m := float64(mag[i])
			var n1, n2 float64
			switch dir[i] {
			case dirHorizontal:
				n1, n2 = magAt(x-1, y), magAt(x+1, y)
			case dirVertical:
				n1, n2 = magAt(x, y-1), magAt(x, y+1)
			case dirDiagonal:
				n1, n2 = magAt(x-1, y-1), magAt(x+1, y+1)
			default:
				n1, n2 = magAt(x+1, y-1), magAt(x-1, y+1)
			}
			switch {
			case m <= low || m <= n1 || m < n2:
				class[i] = none
			case m > high:
				class[i] = strong
				stack = append(stack, i)
			default:
				class[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%p.w, i/p.w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= p.w || ny >= p.h {
					continue
				}
				j := ny*p.w + nx
				if class[j] == weak {
					class[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	var edges int
	for _, c := range class {
		if c == strong {
			edges++
		}
	}
	return float64(edges) / float64(n)
}
