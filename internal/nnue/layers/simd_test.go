package layers

import (
	"fmt"
	"testing"
)

func TestSIMDDotProductInt8Uint8(t *testing.T) {
	cases := []struct {
		name    string
		weights []int8
		inputs  []uint8
	}{
		{"aligned", makeWeights(256, 0), makeInputs(256)},
		{"negative weights", makeWeights(128, -64), makeInputs(128)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			want := scalarDotProduct(c.weights, c.inputs)
			got := SIMDDotProductInt8Uint8(c.weights, c.inputs, len(c.weights))
			if got != want {
				t.Errorf("got %d, want %d", got, want)
			}
		})
	}
}

// Counts that don't divide evenly by the 4-wide unroll must still match
// the scalar reference exactly.
func TestSIMDDotProductInt8Uint8UnalignedCounts(t *testing.T) {
	for count := 1; count <= 20; count++ {
		weights := make([]int8, count)
		inputs := make([]uint8, count)
		for i := 0; i < count; i++ {
			weights[i] = int8(i + 1)
			inputs[i] = uint8(i + 1)
		}

		want := scalarDotProduct(weights, inputs)
		got := SIMDDotProductInt8Uint8(weights, inputs, count)
		if got != want {
			t.Errorf("count %d: got %d, want %d", count, got, want)
		}
	}
}

func TestSIMDSparseChunkMulAcc(t *testing.T) {
	const outLen = 3
	weights := []int8{
		1, 2, 3, 4, // output 0
		5, 6, 7, 8, // output 1
		-1, -2, -3, -4, // output 2
	}
	output := make([]int32, outLen)
	SIMDSparseChunkMulAcc(output, weights, outLen, 0x04030201)

	want := []int32{1*1 + 2*2 + 3*3 + 4*4, 5*1 + 6*2 + 7*3 + 8*4, -1*1 + -2*2 + -3*3 + -4*4}
	for i := range want {
		if output[i] != want[i] {
			t.Errorf("output[%d] = %d, want %d", i, output[i], want[i])
		}
	}
}

func TestSIMDSparseChunkMulAccZeroChunkIsNoop(t *testing.T) {
	output := []int32{7, 8, 9}
	weights := make([]int8, 12)
	SIMDSparseChunkMulAcc(output, weights, 3, 0)
	if output[0] != 7 || output[1] != 8 || output[2] != 9 {
		t.Errorf("zero chunk mutated output: %v", output)
	}
}

func scalarDotProduct(weights []int8, inputs []uint8) int32 {
	var sum int32
	for i := range weights {
		sum += int32(weights[i]) * int32(inputs[i])
	}
	return sum
}

func makeWeights(n int, base int) []int8 {
	w := make([]int8, n)
	for i := range w {
		w[i] = int8(base + i%128)
	}
	return w
}

func makeInputs(n int) []uint8 {
	in := make([]uint8, n)
	for i := range in {
		in[i] = uint8(i)
	}
	return in
}

func BenchmarkSIMDDotProductInt8Uint8(b *testing.B) {
	for _, n := range []int{256, 512, 1024} {
		weights := makeWeights(n, 0)
		inputs := makeInputs(n)
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = SIMDDotProductInt8Uint8(weights, inputs, n)
			}
		})
	}
}
