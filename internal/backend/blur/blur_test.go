package blur

import (
	"image"
	"math/rand/v2"
	"testing"
)

func flatImage(w, h int, value uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

func checkerboard(w, h, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}
	return img
}

func TestIsBlurry_FlatImageAlwaysBlurry(t *testing.T) {
	img := flatImage(64, 48, 128)
	for _, threshold := range []float64{0.001, 1, 80, 10000} {
		if !NewGate(threshold).IsBlurry(img) {
			t.Errorf("flat image not blurry at threshold %v", threshold)
		}
	}
}

func TestIsBlurry_NilAndEmpty(t *testing.T) {
	gate := NewGate(DefaultThreshold)
	if !gate.IsBlurry(nil) {
		t.Error("nil image should be blurry")
	}
	if !gate.IsBlurry(image.NewGray(image.Rect(0, 0, 0, 0))) {
		t.Error("empty image should be blurry")
	}
}

func TestIsBlurry_SharpImage(t *testing.T) {
	img := checkerboard(64, 64, 4)
	variance := LaplacianVariance(img)
	if variance < DefaultThreshold {
		t.Fatalf("checkerboard variance %v unexpectedly below default threshold", variance)
	}
	if NewGate(DefaultThreshold).IsBlurry(img) {
		t.Error("checkerboard should not be blurry")
	}
	// variance >= threshold is never blurry
	if NewGate(variance).IsBlurry(img) {
		t.Error("image with variance equal to threshold should not be blurry")
	}
}

func TestIsBlurry_LinearGradientIsBlurry(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 128, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			img.Pix[y*img.Stride+x] = uint8(x * 2)
		}
	}
	if !NewGate(DefaultThreshold).IsBlurry(img) {
		t.Errorf("gradient should be blurry, variance %v", LaplacianVariance(img))
	}
}

func TestLaplacianVariance_SinglePixelImpulse(t *testing.T) {
	// 5x5 image with a single bright centre: the response is -4v at the
	// centre and v at its four neighbours, zero everywhere else.
	img := flatImage(5, 5, 0)
	img.Pix[2*img.Stride+2] = 10

	want := (1600.0 + 4*100.0) / 25.0
	got := LaplacianVariance(img)
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("LaplacianVariance = %v, want %v", got, want)
	}
	if NewGate(want).IsBlurry(img) {
		t.Error("variance equal to the threshold must not be blurry")
	}
}

func TestLaplacianVariance_NoiseIsSharp(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewGray(image.Rect(0, 0, 50, 50))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.UintN(256))
	}
	if NewGate(DefaultThreshold).IsBlurry(img) {
		t.Error("uniform noise should not be blurry")
	}
}
