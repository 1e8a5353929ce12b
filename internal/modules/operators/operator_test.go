package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMergesDuplicateTerms(t *testing.T) {
	o := New()
	require.NoError(t, o.Add(0.5, X(0), Z(2)))
	require.NoError(t, o.Add(0.25, Z(2), X(0))) // same term, different order

	assert.Equal(t, 1, o.Len())
	assert.Equal(t, complex128(0.75), o.Coefficient(X(0), Z(2)))
}

func TestAddRejectsDuplicateQubit(t *testing.T) {
	o := New()
	err := o.Add(1, X(0), Y(0))
	assert.Error(t, err)
}

func TestMulAccumulatesPhase(t *testing.T) {
	a, err := PauliString(1, X(0))
	require.NoError(t, err)
	b, err := PauliString(1, Y(0))
	require.NoError(t, err)

	// X * Y = iZ
	prod := a.Mul(b)
	assert.Equal(t, complex128(1i), prod.Coefficient(Z(0)))

	// Y * X = -iZ
	prod = b.Mul(a)
	assert.Equal(t, complex128(-1i), prod.Coefficient(Z(0)))

	// X * X = I
	prod = a.Mul(a)
	assert.Equal(t, complex128(1), prod.Constant())
}

func TestMulDisjointQubits(t *testing.T) {
	a, err := PauliString(2, X(0))
	require.NoError(t, err)
	b, err := PauliString(3, Z(1))
	require.NoError(t, err)

	prod := a.Mul(b)
	assert.Equal(t, complex128(6), prod.Coefficient(X(0), Z(1)))
}

func TestCompressDropsSmallTerms(t *testing.T) {
	o := New()
	require.NoError(t, o.Add(1.0, Z(0)))
	require.NoError(t, o.Add(1e-12, X(1)))
	require.NoError(t, o.Add(complex(0.5, 1e-12), Y(2)))

	o.Compress(1e-9)

	assert.Equal(t, 2, o.Len())
	assert.Equal(t, complex128(0), o.Coefficient(X(1)))
	assert.Equal(t, complex128(0.5), o.Coefficient(Y(2))) // imaginary dust zeroed
}

func TestWidthAndConstant(t *testing.T) {
	o := Identity(3)
	require.NoError(t, o.Add(1, Z(4)))

	assert.Equal(t, 5, o.Width())
	assert.Equal(t, complex128(3), o.Constant())
}

func TestTermsDeterministicOrder(t *testing.T) {
	o := New()
	require.NoError(t, o.Add(1, Z(3)))
	require.NoError(t, o.Add(2, X(0)))

	first := o.Terms()
	second := o.Terms()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Factors, second[i].Factors)
	}
}

func TestIsHermitian(t *testing.T) {
	o := New()
	require.NoError(t, o.Add(1.0, Z(0)))
	assert.True(t, o.IsHermitian(1e-12))

	require.NoError(t, o.Add(complex(0, 0.1), X(1)))
	assert.False(t, o.IsHermitian(1e-12))
}
