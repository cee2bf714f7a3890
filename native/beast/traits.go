package beast

import (
	"encoding/binary"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"zenbeasts/core/types"
)

// Trait values are drawn in two stages: a weighted categorical selection picks
// one of five rarity buckets, then the same draw places the value inside the
// bucket's band. Bucket k covers [51k, 51k+50]; the last band extends to 255.
const (
	traitBuckets = 5
	bucketSpan   = 51
)

// digestWindow is the number of digest bytes folded into each layer's draw.
const digestWindow = 3

// beastIDDomain separates beast identifiers from every other keccak use.
var beastIDDomain = []byte("zenbeasts/beast")

// DeriveBeastID computes the stable identifier for a beast minted by owner
// with the given seed as the mintIndex-th creature. Kept as a pure function so
// parity tests can exercise key derivation without touching storage.
func DeriveBeastID(owner [20]byte, seed uint64, mintIndex uint64) [32]byte {
	buf := make([]byte, 0, len(beastIDDomain)+20+8+8)
	buf = append(buf, beastIDDomain...)
	buf = append(buf, owner[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, seed)
	buf = binary.LittleEndian.AppendUint64(buf, mintIndex)
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(buf))
	return id
}

// DeriveMetadataURI builds the canonical per-beast metadata location. The
// mint index and the identifier prefix together make the result unique, which
// the state layer additionally enforces with a URI index.
func DeriveMetadataURI(base string, mintIndex uint64, id [32]byte) string {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	return fmt.Sprintf("%s/%d/%x", trimmed, mintIndex, id[:8])
}

// GenerateTraits derives the full trait vector for a freshly minted beast.
// The digest folds together the minting actor, the caller-chosen seed, and
// ledger entropy; identical inputs always yield identical traits, which audits
// and tests rely on. Returns the trait vector and its rarity score.
func GenerateTraits(seed uint64, actor [20]byte, entropy []byte, catalog *TraitCatalog) ([types.TraitCount]byte, uint64, error) {
	buf := make([]byte, 0, 20+8+len(entropy))
	buf = append(buf, actor[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, seed)
	buf = append(buf, entropy...)
	digest := ethcrypto.Keccak256(buf)

	weights := catalog.layersOrDefault()
	var traits [types.TraitCount]byte
	for layer := 0; layer < types.TraitCount; layer++ {
		draw := windowU32(digest, layer*digestWindow)
		traits[layer] = selectTraitValue(draw, weights[layer])
	}

	score, err := Score(traits)
	if err != nil {
		return traits, 0, err
	}
	return traits, score, nil
}

// BreedTraits derives offspring traits from two parents. Core slots take the
// truncating parent average shifted by a deterministic variation in [-20, 20];
// reserved slots inherit the plain average. The mixed seed and both parent
// vectors feed the digest so the draw is reproducible from event data alone.
func BreedTraits(mixedSeed uint64, parentA, parentB [types.TraitCount]byte) ([types.TraitCount]byte, uint64, error) {
	buf := make([]byte, 0, 8+2*types.TraitCount)
	buf = binary.LittleEndian.AppendUint64(buf, mixedSeed)
	buf = append(buf, parentA[:]...)
	buf = append(buf, parentB[:]...)
	digest := ethcrypto.Keccak256(buf)

	var child [types.TraitCount]byte
	for slot := 0; slot < types.TraitCount; slot++ {
		avg := (int(parentA[slot]) + int(parentB[slot])) / 2
		if slot < types.CoreTraitCount {
			draw := windowU32(digest, slot*digestWindow)
			avg += traitVariation(draw)
		}
		child[slot] = clampTrait(avg)
	}

	score, err := Score(child)
	if err != nil {
		return child, 0, err
	}
	return child, score, nil
}

// windowU32 reads a little-endian 3-byte window from the digest, wrapping at
// the digest boundary so every layer gets a full-width draw.
func windowU32(digest []byte, offset int) uint32 {
	n := len(digest)
	b0 := digest[offset%n]
	b1 := digest[(offset+1)%n]
	b2 := digest[(offset+2)%n]
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16
}

// selectTraitValue maps a uniform draw onto a trait byte: the draw modulo the
// total weight selects a bucket by ascending cumulative scan, and the
// remaining entropy places the value inside the bucket's band. When the scan
// falls through on a rounding remainder the last bucket wins deterministically.
func selectTraitValue(draw uint32, weights Weights) uint8 {
	total := uint64(0)
	for _, w := range weights {
		total += uint64(w)
	}
	bucket := traitBuckets - 1
	if total > 0 {
		target := uint64(draw) % total
		cumulative := uint64(0)
		for i, w := range weights {
			cumulative += uint64(w)
			if target < cumulative {
				bucket = i
				break
			}
		}
	}

	low := bucket * bucketSpan
	span := bucketSpan
	if bucket == traitBuckets-1 {
		span = types.MaxTraitValue - low + 1
	}
	offset := 0
	if total > 0 {
		offset = int((uint64(draw) / total) % uint64(span))
	}
	return uint8(low + offset)
}

// traitVariation reduces a draw to the symmetric breeding variation [-20, 20].
func traitVariation(draw uint32) int {
	return int(draw%41) - 20
}

func clampTrait(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > types.MaxTraitValue {
		return types.MaxTraitValue
	}
	return uint8(v)
}
