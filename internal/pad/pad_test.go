package pad

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	set, err := Parse("ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, set.Values())

	set, err = Parse("0xFF, 00,ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x00}, set.Values())
	assert.Equal(t, "ff,00", set.String())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)

	_, err = Parse("zz")
	assert.Error(t, err)

	_, err = Parse("100")
	assert.Error(t, err)
}

func TestSet_HasData(t *testing.T) {
	set := NewSet(0xFF, 0x00)

	assert.False(t, set.HasData(nil))
	assert.False(t, set.HasData([]byte{0xFF, 0x00, 0xFF}))
	assert.True(t, set.HasData([]byte{0xFF, 0x41, 0x00}))

	erased := Erased
	assert.True(t, erased.HasData([]byte{0xFF, 0x00}))
}

func TestDetect(t *testing.T) {
	zeros := make([]byte, 1000)
	ones := bytes.Repeat([]byte{0xFF}, 1000)
	mixed := bytes.Repeat([]byte{0x12, 0x34}, 500)

	assert.Equal(t, []byte{0x00}, Detect(zeros).Values())
	assert.Equal(t, []byte{0xFF}, Detect(ones).Values())
	assert.Equal(t, []byte{0xFF}, Detect(mixed).Values())
	assert.Equal(t, []byte{0xFF}, Detect(nil).Values())
}

func TestSelectMatcher_Auto(t *testing.T) {
	m, err := SelectMatcher("auto", NewSet(0xFF))
	require.NoError(t, err)
	assert.Equal(t, MatcherWord, m.Name())

	m, err = SelectMatcher("", NewSet(0xFF, 0x00))
	require.NoError(t, err)
	assert.Equal(t, MatcherByte, m.Name(), "multi-value sets fall back to the byte matcher")
}

func TestSelectMatcher_Unavailable(t *testing.T) {
	_, err := SelectMatcher(MatcherWord, NewSet(0xFF, 0x00))
	assert.ErrorIs(t, err, ErrMatcherUnavailable)

	_, err = SelectMatcher("simd", NewSet(0xFF))
	assert.ErrorIs(t, err, ErrMatcherUnavailable)
}

func TestMatchers_AgreeOnLastData(t *testing.T) {
	set := NewSet(0xFF)
	word, err := SelectMatcher(MatcherWord, set)
	require.NoError(t, err)
	byteM, err := SelectMatcher(MatcherByte, set)
	require.NoError(t, err)

	// Cover every length up to a few words and every data position.
	for n := 0; n <= 35; n++ {
		buf := bytes.Repeat([]byte{0xFF}, n)
		assert.Equal(t, -1, word.LastData(buf), "len %d all pad", n)
		assert.Equal(t, -1, byteM.LastData(buf), "len %d all pad", n)

		for pos := 0; pos < n; pos++ {
			buf := bytes.Repeat([]byte{0xFF}, n)
			buf[pos] = 0x7E
			if pos > 0 {
				buf[0] = 0x01
			}
			assert.Equal(t, pos, word.LastData(buf), "len %d pos %d", n, pos)
			assert.Equal(t, pos, byteM.LastData(buf), "len %d pos %d", n, pos)
		}
	}
}

func TestByteMatcher_MultiValueSet(t *testing.T) {
	m, err := SelectMatcher(MatcherByte, NewSet(0xFF, 0x00))
	require.NoError(t, err)

	buf := []byte{0x00, 0x55, 0xFF, 0x00, 0xFF}
	assert.Equal(t, 1, m.LastData(buf))
}
