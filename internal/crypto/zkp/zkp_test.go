package zkp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qverse/engine/internal/core/domain"
)

func TestRangeProof_RoundTrip(t *testing.T) {
	for _, amount := range []uint64{0, 1, 42, 1 << 16, 1<<32 - 1} {
		rp, err := CreateRangeProof(amount, DefaultBitSize)
		require.NoError(t, err, "amount=%d", amount)
		assert.True(t, VerifyRangeProof(rp.Proof, rp.Commitment, DefaultBitSize), "amount=%d", amount)
	}
}

func TestRangeProof_SmallBitSize(t *testing.T) {
	rp, err := CreateRangeProof(255, MinBitSize)
	require.NoError(t, err)
	assert.True(t, VerifyRangeProof(rp.Proof, rp.Commitment, DefaultBitSize))
}

func TestCreateRangeProof_RejectsOverflow(t *testing.T) {
	_, err := CreateRangeProof(1<<32, DefaultBitSize)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = CreateRangeProof(256, MinBitSize)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateRangeProof_RejectsBadBitSize(t *testing.T) {
	_, err := CreateRangeProof(1, MinBitSize-1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = CreateRangeProof(1, MaxBitSize+1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestVerifyRangeProof_RejectsWrongCommitment(t *testing.T) {
	rp1, err := CreateRangeProof(100, DefaultBitSize)
	require.NoError(t, err)
	rp2, err := CreateRangeProof(200, DefaultBitSize)
	require.NoError(t, err)

	assert.False(t, VerifyRangeProof(rp1.Proof, rp2.Commitment, DefaultBitSize))
	assert.False(t, VerifyRangeProof(rp2.Proof, rp1.Commitment, DefaultBitSize))
}

func TestVerifyRangeProof_RejectsTamperedProof(t *testing.T) {
	rp, err := CreateRangeProof(100, DefaultBitSize)
	require.NoError(t, err)

	tampered := make([]byte, len(rp.Proof))
	copy(tampered, rp.Proof)
	tampered[len(tampered)/2] ^= 0x01

	assert.False(t, VerifyRangeProof(tampered, rp.Commitment, DefaultBitSize))
}

func TestVerifyRangeProof_RejectsMalformedInput(t *testing.T) {
	rp, err := CreateRangeProof(7, MinBitSize)
	require.NoError(t, err)

	tests := []struct {
		name               string
		proof, commitment []byte
	}{
		{"nil proof", nil, rp.Commitment},
		{"empty proof", []byte{}, rp.Commitment},
		{"truncated proof", rp.Proof[:len(rp.Proof)-1], rp.Commitment},
		{"wrong version", append([]byte{0x7f}, rp.Proof[1:]...), rp.Commitment},
		{"bit size out of range", append([]byte{proofV1, 0xff}, rp.Proof[2:]...), rp.Commitment},
		{"nil commitment", rp.Proof, nil},
		{"garbage commitment", rp.Proof, make([]byte, pointLen)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifyRangeProof(tt.proof, tt.commitment, DefaultBitSize))
		})
	}
}

func TestVerifyRangeProof_EnforcesBitSizeCap(t *testing.T) {
	// A valid 64-bit proof must not satisfy a 32-bit policy.
	rp, err := CreateRangeProof(1<<40, MaxBitSize)
	require.NoError(t, err)

	assert.True(t, VerifyRangeProof(rp.Proof, rp.Commitment, MaxBitSize))
	assert.False(t, VerifyRangeProof(rp.Proof, rp.Commitment, DefaultBitSize))

	// Out-of-range caps fall back to the widest supported size.
	assert.True(t, VerifyRangeProof(rp.Proof, rp.Commitment, 0))
	assert.True(t, VerifyRangeProof(rp.Proof, rp.Commitment, MaxBitSize+1))
}

func TestOpenCommitment(t *testing.T) {
	rp, err := CreateRangeProof(500, DefaultBitSize)
	require.NoError(t, err)

	assert.True(t, OpenCommitment(rp.Commitment, 500, rp.Blinding))
	assert.False(t, OpenCommitment(rp.Commitment, 501, rp.Blinding))
	assert.False(t, OpenCommitment(rp.Commitment, 500, make([]byte, scalarLen)))
	assert.False(t, OpenCommitment(rp.Commitment, 500, nil))
}

func TestRangeProof_CommitmentsHideAmount(t *testing.T) {
	// Same amount, fresh blinding: commitments must differ.
	rp1, err := CreateRangeProof(100, DefaultBitSize)
	require.NoError(t, err)
	rp2, err := CreateRangeProof(100, DefaultBitSize)
	require.NoError(t, err)

	assert.NotEqual(t, rp1.Commitment, rp2.Commitment)
}
