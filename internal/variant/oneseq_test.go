package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basequant/aq/internal/guide"
)

func TestOneSeq_Forward(t *testing.T) {
	// A at 1, 2 (window) and 12 (outside the first 10 bases).
	seq := "AACGTCGTCGTACG"
	set, err := NewGenerator(nil).OneSeq(seq, guide.Forward, abeForward)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"GACGTCGTCGTACG",
		"AGCGTCGTCGTACG",
		"GGCGTCGTCGTACG",
	}, set.Window)
	assert.Len(t, set.Protospacer, 7)
	assert.Equal(t, "GGCGTCGTCGTGCG", set.Protospacer[6])
}

func TestOneSeq_Reverse(t *testing.T) {
	b := guide.Bases{Substrate: 'T', Correction: 'C', Converted: 'C'}
	// T at 1 (outside the last 10 bases) and at 14 (inside).
	seq := "TACGACGACGACGT"
	set, err := NewGenerator(nil).OneSeq(seq, guide.Reverse, b)
	require.NoError(t, err)

	assert.Equal(t, []string{"TACGACGACGACGC"}, set.Window)
	assert.Equal(t, []string{
		"CACGACGACGACGT",
		"TACGACGACGACGC",
		"CACGACGACGACGC",
	}, set.Protospacer)
}

func TestOneSeq_NoSubstrate(t *testing.T) {
	set, err := NewGenerator(nil).OneSeq("CCGG", guide.Forward, abeForward)
	require.NoError(t, err)
	assert.Empty(t, set.Window)
	assert.Empty(t, set.Protospacer)
}

func TestOneSeq_ShortGuide(t *testing.T) {
	set, err := NewGenerator(nil).OneSeq("AA", guide.Reverse, guide.Bases{Substrate: 'A', Correction: 'G'})
	require.NoError(t, err)
	assert.Len(t, set.Window, 3)
	assert.Equal(t, set.Window, set.Protospacer)
}

func TestSubsets_Count(t *testing.T) {
	for n := 0; n <= 8; n++ {
		items := make([]int, n)
		for i := range items {
			items[i] = i + 1
		}
		count := 0
		require.NoError(t, subsets(items, func([]int) { count++ }))
		assert.Equal(t, (1<<n)-1, count, "n=%d", n)
	}
}
