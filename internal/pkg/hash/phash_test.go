package hash

import (
	"image"
	"image/color"
	"testing"
)

// createGradientImage creates a gradient test image.
func createGradientImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := uint8((x + y) * 255 / (width + height))
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	return img
}

// createStripedImage creates vertical stripes of the given width.
func createStripedImage(width, height, stripe int) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x/stripe)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 230})
			}
		}
	}
	return img
}

func TestPerceptualHasher_ComputePHash(t *testing.T) {
	ph := NewPerceptualHasher()
	img := createGradientImage(100, 100)

	hash, err := ph.ComputePHash(img)
	if err != nil {
		t.Fatalf("ComputePHash failed: %v", err)
	}

	if hash.Hash == 0 {
		t.Error("Expected non-zero hash")
	}
	if hash.Width != 100 || hash.Height != 100 {
		t.Errorf("Expected 100x100, got %dx%d", hash.Width, hash.Height)
	}
	if len(hash.String()) != 16 {
		t.Errorf("Expected 16 hex digits, got %q", hash.String())
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name     string
		hash1    uint64
		hash2    uint64
		expected int
	}{
		{"identical", 0xFFFFFFFFFFFFFFFF, 0xFFFFFFFFFFFFFFFF, 0},
		{"one bit", 0b1000, 0b0000, 1},
		{"all bits", 0, 0xFFFFFFFFFFFFFFFF, 64},
		{"nibble", 0xF0, 0x0F, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HammingDistance(tt.hash1, tt.hash2)
			if result != tt.expected {
				t.Errorf("HammingDistance(%x, %x) = %d; want %d", tt.hash1, tt.hash2, result, tt.expected)
			}
		})
	}
}

func TestIsSimilar(t *testing.T) {
	h1 := &FrameHash{Hash: 0b1111}
	h2 := &FrameHash{Hash: 0b1100}

	if !IsSimilar(h1, h2, 2) {
		t.Error("Expected similar within threshold 2")
	}
	if IsSimilar(h1, h2, 1) {
		t.Error("Expected not similar within threshold 1")
	}
}

func TestSameFrameIdenticalHash(t *testing.T) {
	ph := NewPerceptualHasher()
	a, _ := ph.ComputePHash(createGradientImage(64, 36))
	b, _ := ph.ComputePHash(createGradientImage(64, 36))
	if a.Hash != b.Hash {
		t.Errorf("Expected identical hashes, got %s and %s", a, b)
	}
}

func TestDifferentFramesProduceDifferentHashes(t *testing.T) {
	ph := NewPerceptualHasher()
	a, _ := ph.ComputePHash(createGradientImage(64, 64))
	b, _ := ph.ComputePHash(createStripedImage(64, 64, 4))
	if HammingDistance(a.Hash, b.Hash) <= 4 {
		t.Errorf("Expected distinct frames to differ by more than 4 bits, got %d", HammingDistance(a.Hash, b.Hash))
	}
}

func TestHex(t *testing.T) {
	if got := Hex(0xabc); got != "0000000000000abc" {
		t.Errorf("Hex(0xabc) = %q", got)
	}
	if Hash([]byte("a")) == Hash([]byte("b")) {
		t.Error("Expected different murmur3 hashes")
	}
	if FastHash("prompt one") == FastHash("prompt two") {
		t.Error("Expected different xxhash hashes")
	}
}

func BenchmarkComputePHash(b *testing.B) {
	ph := NewPerceptualHasher()
	img := createGradientImage(512, 288)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ph.ComputePHash(img)
	}
}
