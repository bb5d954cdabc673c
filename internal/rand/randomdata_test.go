package rand

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandLetterBytes(t *testing.T) {
	name := randLetterBytes(20)
	assert.Len(t, name, 20)
	for _, b := range name {
		assert.Contains(t, "abcdefghijklmnopqrstuvwxyz0123456789", string(b))
	}
}

func TestRandBytes(t *testing.T) {
	assert.Len(t, Bytes(1024), 1024)
	assert.Len(t, String(64), 64)
}

func benchmarkRandBytes(b *testing.B, size int) {
	for n := 0; n < b.N; n++ {
		_ = randBytes(size)
	}
}

func BenchmarkRandBytes20(b *testing.B)      { benchmarkRandBytes(b, 20) }
func BenchmarkRandBytes1000(b *testing.B)    { benchmarkRandBytes(b, 1000) }
func BenchmarkRandBytes1000000(b *testing.B) { benchmarkRandBytes(b, 1000000) }
