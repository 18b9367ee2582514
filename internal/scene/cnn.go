package scene

import (
	"fmt"
	"math/rand/v2"

	"github.com/roach88/vizgen/internal/ir"
)

// MaxAnimatedPatches bounds how many kernel positions are animated one by
// one; the remaining feature map values appear together.
const MaxAnimatedPatches = 16

// MaxGridSide bounds the padded input side the scene will lay out.
const MaxGridSide = 48

type cnnData struct {
	Cell                       float64
	Total, KernelSize, OutSize int
	Stride, Padding            int
	Padded, Kernel, FeatureMap [][]int
	Steps, Rest                [][2]int
	Caption                    string
}

// CNN renders a single convolution over a random input. The input and
// kernel are drawn from a generator seeded with p.Seed, so equal params
// give equal sources.
func CNN(p ir.CNNParams) (string, error) {
	if p.InputSize <= 0 || p.KernelSize <= 0 || p.Stride <= 0 || p.Padding < 0 {
		return "", fmt.Errorf("scene: cnn: invalid params %+v", p)
	}
	total := p.InputSize + 2*p.Padding
	if total > MaxGridSide {
		return "", fmt.Errorf("scene: cnn: padded input %d exceeds %d", total, MaxGridSide)
	}
	if p.KernelSize > total {
		return "", fmt.Errorf("scene: cnn: kernel %d larger than padded input %d", p.KernelSize, total)
	}
	out := p.OutputSize()
	seed := uint64(p.Seed)
	if p.Seed == 0 {
		seed = 7
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	padded := square(total)
	for r := 0; r < p.InputSize; r++ {
		for c := 0; c < p.InputSize; c++ {
			padded[r+p.Padding][c+p.Padding] = rng.IntN(10)
		}
	}
	kernel := square(p.KernelSize)
	for r := range kernel {
		for c := range kernel[r] {
			kernel[r][c] = rng.IntN(3) - 1
		}
	}
	fmap := Convolve(padded, kernel, p.Stride)

	data := cnnData{
		Cell:       round(min(0.42, 5.0/float64(total), 5.0/float64(out))),
		Total:      total,
		KernelSize: p.KernelSize,
		OutSize:    out,
		Stride:     p.Stride,
		Padding:    p.Padding,
		Padded:     padded,
		Kernel:     kernel,
		FeatureMap: fmap,
		Steps:      [][2]int{},
		Rest:       [][2]int{},
		Caption: fmt.Sprintf("input %d, kernel %d, stride %d, padding %d -> %dx%d",
			p.InputSize, p.KernelSize, p.Stride, p.Padding, out, out),
	}
	for i := 0; i < out; i++ {
		for j := 0; j < out; j++ {
			if len(data.Steps) < MaxAnimatedPatches {
				data.Steps = append(data.Steps, [2]int{i, j})
			} else {
				data.Rest = append(data.Rest, [2]int{i, j})
			}
		}
	}
	return render("cnn.py.tmpl", data)
}

// Convolve computes the valid cross-correlation of an already padded input.
func Convolve(padded, kernel [][]int, stride int) [][]int {
	k := len(kernel)
	out := (len(padded)-k)/stride + 1
	if out <= 0 {
		return nil
	}
	fmap := square(out)
	for i := range fmap {
		for j := range fmap[i] {
			acc := 0
			for r := 0; r < k; r++ {
				for c := 0; c < k; c++ {
					acc += padded[i*stride+r][j*stride+c] * kernel[r][c]
				}
			}
			fmap[i][j] = acc
		}
	}
	return fmap
}

func square(n int) [][]int {
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
	}
	return m
}
