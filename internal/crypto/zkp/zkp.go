// Package zkp implements Pedersen commitments and zero-knowledge range
// proofs for confidential transfers.
//
// A commitment C = v*G + r*H binds and hides the amount v under blinding
// factor r. The range proof certifies 0 <= v < 2^bitSize via a bit
// decomposition: one commitment per bit with a two-branch Schnorr OR
// proof (bit is 0 or 1), plus the consistency check sum(2^i * C_i) == C.
// Challenges are derived with Fiat-Shamir over SHA-256 transcripts.
//
// G is the standard bn254 G1 generator; H is hashed to the curve once at
// process start so commitments from different calls stay comparable.
// Commitments and proofs cross the wire as base64 (std encoding).
package zkp

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/qverse/engine/internal/core/domain"
)

const (
	// MinBitSize and MaxBitSize bound the supported proof sizes. A larger
	// bit size raises the provable maximum amount at linear proof cost.
	MinBitSize = 8
	MaxBitSize = 64

	// DefaultBitSize caps a single confidential output at 2^32 units.
	DefaultBitSize = 32

	pointLen  = bn254.SizeOfG1AffineCompressed
	scalarLen = fr.Bytes
	// C_i | A0 | A1 | c0 | s0 | s1 per bit
	bitBlockLen = 3*pointLen + 3*scalarLen
	headerLen   = 2
	proofV1     = 0x01
)

var transcriptTag = []byte("qverse/zkp/range/v1")

var (
	genG bn254.G1Affine
	genH bn254.G1Affine
)

func init() {
	_, _, genG, _ = bn254.Generators()
	h, err := bn254.HashToG1([]byte("qverse/zkp/pedersen/h/v1"), []byte("QVERSE-PEDERSEN"))
	if err != nil {
		// Static generator setup; cannot be triggered by input.
		panic(fmt.Sprintf("zkp: generator setup: %v", err))
	}
	genH = h
}

// RangeProof carries the proof and commitment bytes. Blinding is the
// opening secret; it belongs to the creator and must not be stored
// server-side.
type RangeProof struct {
	Proof      []byte
	Commitment []byte
	Blinding   []byte
}

// CreateRangeProof commits to amount with a fresh blinding factor and
// proves 0 <= amount < 2^bitSize.
func CreateRangeProof(amount uint64, bitSize int) (*RangeProof, error) {
	if bitSize < MinBitSize || bitSize > MaxBitSize {
		return nil, fmt.Errorf("%w: unsupported bit size %d", domain.ErrValidation, bitSize)
	}
	if bitSize < 64 && amount >= uint64(1)<<uint(bitSize) {
		return nil, fmt.Errorf("%w: amount does not fit in %d bits", domain.ErrValidation, bitSize)
	}

	bitBlindings := make([]fr.Element, bitSize)
	bitCommits := make([]bn254.G1Affine, bitSize)
	var blinding fr.Element

	for i := 0; i < bitSize; i++ {
		if _, err := bitBlindings[i].SetRandom(); err != nil {
			return nil, fmt.Errorf("%w: randomness: %v", domain.ErrCrypto, err)
		}
		var bit fr.Element
		bit.SetUint64((amount >> uint(i)) & 1)
		bitCommits[i] = commitPoint(&bit, &bitBlindings[i])

		// blinding = sum(2^i * r_i), so C = sum(2^i * C_i) opens with it.
		var w, term fr.Element
		w.SetUint64(uint64(1) << uint(i))
		term.Mul(&w, &bitBlindings[i])
		blinding.Add(&blinding, &term)
	}

	var value fr.Element
	value.SetUint64(amount)
	commitment := commitPoint(&value, &blinding)
	commitmentBytes := commitment.Bytes()

	proof := make([]byte, 0, headerLen+bitSize*bitBlockLen)
	proof = append(proof, proofV1, byte(bitSize))

	for i := 0; i < bitSize; i++ {
		block, err := proveBit(
			commitmentBytes[:],
			&bitCommits[i],
			&bitBlindings[i],
			(amount>>uint(i))&1 == 1,
		)
		if err != nil {
			return nil, err
		}
		proof = append(proof, block...)
	}

	blindingBytes := blinding.Bytes()
	return &RangeProof{
		Proof:      proof,
		Commitment: commitmentBytes[:],
		Blinding:   blindingBytes[:],
	}, nil
}

// VerifyRangeProof checks proof against commitment without learning the
// amount or blinding factor. The prover picks the bit size and encodes
// it in the proof, so maxBitSize pins the verifier's policy: a proof
// claiming a wider range is rejected even when internally valid. A
// maxBitSize outside (0, MaxBitSize] falls back to MaxBitSize. Any
// malformed encoding yields false.
func VerifyRangeProof(proof, commitment []byte, maxBitSize int) bool {
	if maxBitSize <= 0 || maxBitSize > MaxBitSize {
		maxBitSize = MaxBitSize
	}
	if len(proof) < headerLen || proof[0] != proofV1 {
		return false
	}
	bitSize := int(proof[1])
	if bitSize < MinBitSize || bitSize > maxBitSize {
		return false
	}
	if len(proof) != headerLen+bitSize*bitBlockLen {
		return false
	}

	var c bn254.G1Affine
	if _, err := c.SetBytes(commitment); err != nil {
		return false
	}

	var negG bn254.G1Affine
	negG.Neg(&genG)

	var sum bn254.G1Jac
	body := proof[headerLen:]
	for i := 0; i < bitSize; i++ {
		block := body[i*bitBlockLen : (i+1)*bitBlockLen]
		bitCommit, ok := verifyBit(commitment, block, &negG)
		if !ok {
			return false
		}

		var term, bc bn254.G1Jac
		bc.FromAffine(bitCommit)
		term.ScalarMultiplication(&bc, new(big.Int).Lsh(big.NewInt(1), uint(i)))
		sum.AddAssign(&term)
	}

	var sumAff bn254.G1Affine
	sumAff.FromJacobian(&sum)
	return sumAff.Equal(&c)
}

// OpenCommitment checks that commitment opens to amount under blinding.
// Used by the auditable-private path where the opening is disclosed.
func OpenCommitment(commitment []byte, amount uint64, blinding []byte) bool {
	var c bn254.G1Affine
	if _, err := c.SetBytes(commitment); err != nil {
		return false
	}
	if len(blinding) != scalarLen {
		return false
	}
	var r, v fr.Element
	r.SetBytes(blinding)
	v.SetUint64(amount)
	expected := commitPoint(&v, &r)
	return expected.Equal(&c)
}

func commitPoint(v, r *fr.Element) bn254.G1Affine {
	var p, q bn254.G1Affine
	p.ScalarMultiplication(&genG, v.BigInt(new(big.Int)))
	q.ScalarMultiplication(&genH, r.BigInt(new(big.Int)))
	p.Add(&p, &q)
	return p
}

// proveBit emits one OR-proof block: the real branch is proven with a
// fresh nonce, the other branch is simulated with a forged challenge, and
// Fiat-Shamir ties the two challenges together.
func proveBit(commitment []byte, bitCommit *bn254.G1Affine, r *fr.Element, isOne bool) ([]byte, error) {
	var k, cSim, sSim fr.Element
	for _, e := range []*fr.Element{&k, &cSim, &sSim} {
		if _, err := e.SetRandom(); err != nil {
			return nil, fmt.Errorf("%w: randomness: %v", domain.ErrCrypto, err)
		}
	}

	// Branch statements: Y0 = C_i (bit 0), Y1 = C_i - G (bit 1); in both
	// cases the honest prover knows r with Y = r*H.
	var negG, y1 bn254.G1Affine
	negG.Neg(&genG)
	y1.Add(bitCommit, &negG)

	var a0, a1 bn254.G1Affine
	if isOne {
		a1.ScalarMultiplication(&genH, k.BigInt(new(big.Int)))
		a0 = simulate(&sSim, &cSim, bitCommit)
	} else {
		a0.ScalarMultiplication(&genH, k.BigInt(new(big.Int)))
		a1 = simulate(&sSim, &cSim, &y1)
	}

	bcBytes := bitCommit.Bytes()
	a0Bytes := a0.Bytes()
	a1Bytes := a1.Bytes()
	c := challenge(commitment, bcBytes[:], a0Bytes[:], a1Bytes[:])

	var c0, s0, s1 fr.Element
	if isOne {
		// c1 = c - c0; real response on branch 1.
		c0 = cSim
		s0 = sSim
		var c1 fr.Element
		c1.Sub(&c, &c0)
		var t fr.Element
		t.Mul(&c1, r)
		s1.Add(&k, &t)
	} else {
		var c1 fr.Element
		c1 = cSim
		s1 = sSim
		c0.Sub(&c, &c1)
		var t fr.Element
		t.Mul(&c0, r)
		s0.Add(&k, &t)
	}

	c0Bytes := c0.Bytes()
	s0Bytes := s0.Bytes()
	s1Bytes := s1.Bytes()

	block := make([]byte, 0, bitBlockLen)
	block = append(block, bcBytes[:]...)
	block = append(block, a0Bytes[:]...)
	block = append(block, a1Bytes[:]...)
	block = append(block, c0Bytes[:]...)
	block = append(block, s0Bytes[:]...)
	block = append(block, s1Bytes[:]...)
	return block, nil
}

// simulate forges one branch: A = s*H - c*Y verifies by construction.
func simulate(s, c *fr.Element, y *bn254.G1Affine) bn254.G1Affine {
	var sh, cy bn254.G1Affine
	sh.ScalarMultiplication(&genH, s.BigInt(new(big.Int)))
	cy.ScalarMultiplication(y, c.BigInt(new(big.Int)))
	cy.Neg(&cy)
	sh.Add(&sh, &cy)
	return sh
}

func verifyBit(commitment, block []byte, negG *bn254.G1Affine) (*bn254.G1Affine, bool) {
	var bitCommit, a0, a1 bn254.G1Affine
	if _, err := bitCommit.SetBytes(block[:pointLen]); err != nil {
		return nil, false
	}
	if _, err := a0.SetBytes(block[pointLen : 2*pointLen]); err != nil {
		return nil, false
	}
	if _, err := a1.SetBytes(block[2*pointLen : 3*pointLen]); err != nil {
		return nil, false
	}

	var c0, s0, s1 fr.Element
	c0.SetBytes(block[3*pointLen : 3*pointLen+scalarLen])
	s0.SetBytes(block[3*pointLen+scalarLen : 3*pointLen+2*scalarLen])
	s1.SetBytes(block[3*pointLen+2*scalarLen:])

	c := challenge(commitment, block[:pointLen], block[pointLen:2*pointLen], block[2*pointLen:3*pointLen])
	var c1 fr.Element
	c1.Sub(&c, &c0)

	// s0*H == A0 + c0*C_i
	var lhs, rhs, t bn254.G1Affine
	lhs.ScalarMultiplication(&genH, s0.BigInt(new(big.Int)))
	t.ScalarMultiplication(&bitCommit, c0.BigInt(new(big.Int)))
	rhs.Add(&a0, &t)
	if !lhs.Equal(&rhs) {
		return nil, false
	}

	// s1*H == A1 + c1*(C_i - G)
	var y1 bn254.G1Affine
	y1.Add(&bitCommit, negG)
	lhs.ScalarMultiplication(&genH, s1.BigInt(new(big.Int)))
	t.ScalarMultiplication(&y1, c1.BigInt(new(big.Int)))
	rhs.Add(&a1, &t)
	if !lhs.Equal(&rhs) {
		return nil, false
	}

	return &bitCommit, true
}

func challenge(parts ...[]byte) fr.Element {
	h := sha256.New()
	h.Write(transcriptTag)
	for _, p := range parts {
		h.Write(p)
	}
	var e fr.Element
	e.SetBytes(h.Sum(nil))
	return e
}
