package hash

import (
	"fmt"
	"image"
	"math/bits"

	"github.com/corona10/goimagehash"
)

// FrameHash is the DCT perceptual hash of one video frame.
type FrameHash struct {
	Hash   uint64
	Width  int
	Height int
}

// PerceptualHasher computes frame hashes.
type PerceptualHasher struct{}

// NewPerceptualHasher creates a new PerceptualHasher.
func NewPerceptualHasher() *PerceptualHasher {
	return &PerceptualHasher{}
}

// ComputePHash computes the DCT-based perceptual hash of an image.
func (ph *PerceptualHasher) ComputePHash(img image.Image) (*FrameHash, error) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("failed to compute pHash: %w", err)
	}
	return &FrameHash{
		Hash:   hash.GetHash(),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

// HammingDistance calculates the Hamming distance between two hashes.
// Returns the number of different bits (0 = identical images).
func HammingDistance(hash1, hash2 uint64) int {
	return bits.OnesCount64(hash1 ^ hash2)
}

// IsSimilar checks if two hashes are similar within a threshold.
// Typical thresholds:
//   - 0: Identical
//   - 1-5: Very similar (same scene, minor motion or compression noise)
//   - 6-10: Somewhat similar
//   - 11+: Different frames
func IsSimilar(h1, h2 *FrameHash, threshold int) bool {
	return HammingDistance(h1.Hash, h2.Hash) <= threshold
}

// String returns a hex string representation of the hash.
func (h *FrameHash) String() string {
	return Hex(h.Hash)
}
