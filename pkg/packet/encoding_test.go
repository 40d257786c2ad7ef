package packet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUintRoundTrip(t *testing.T) {
	b := AppendUint8(nil, 0xAB)
	b = AppendUint16(b, 0x0102)
	b = AppendUint32(b, 0x03040506)
	assert.Equal(t, []byte{0xAB, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, b)

	v8, n, err := DecodeUint8(b)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), v8)
	b = b[n:]

	v16, n, err := DecodeUint16(b)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v16)
	b = b[n:]

	v32, n, err := DecodeUint32(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x03040506), v32)
	assert.Equal(t, 4, n)
}

func TestDecodeUintTruncated(t *testing.T) {
	_, _, err := DecodeUint8(nil)
	assert.ErrorIs(t, err, ErrTruncatedInput)
	_, _, err = DecodeUint16([]byte{1})
	assert.ErrorIs(t, err, ErrTruncatedInput)
	_, _, err = DecodeUint32([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "MQTT", "héllo wörld", "日本語", strings.Repeat("x", MaxStringLength)} {
		ms, err := NewString(s)
		require.NoError(t, err)

		b := AppendString(nil, ms)
		assert.Len(t, b, 2+len(s))

		got, n, err := DecodeString(b)
		require.NoError(t, err)
		assert.Equal(t, s, got.String())
		assert.Equal(t, len(b), n)
	}
}

func TestNewStringTooLong(t *testing.T) {
	_, err := NewString(strings.Repeat("x", MaxStringLength+1))
	assert.ErrorIs(t, err, ErrRange)
}

func TestNewStringInvalid(t *testing.T) {
	_, err := NewString("bad\xff")
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	_, err = NewString("nul\x00")
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	assert.Panics(t, func() { MustString("\xc3") })
}

func TestDecodeString(t *testing.T) {
	t.Run("truncated length", func(t *testing.T) {
		_, _, err := DecodeString([]byte{0x00})
		assert.ErrorIs(t, err, ErrTruncatedInput)
	})
	t.Run("truncated data", func(t *testing.T) {
		_, _, err := DecodeString([]byte{0x00, 0x04, 'M', 'Q'})
		assert.ErrorIs(t, err, ErrTruncatedInput)
	})
	t.Run("invalid utf8", func(t *testing.T) {
		_, _, err := DecodeString([]byte{0x00, 0x02, 0xC3, 0x28})
		assert.ErrorIs(t, err, ErrInvalidUTF8)
	})
	t.Run("does not alias input", func(t *testing.T) {
		buf := []byte{0x00, 0x02, 'a', 'b'}
		s, _, err := DecodeString(buf)
		require.NoError(t, err)
		buf[2] = 'z'
		assert.Equal(t, "ab", s.String())
	})
}

func TestBinary(t *testing.T) {
	raw := []byte{0x00, 0xFF, 0x10}
	b, err := NewBinary(raw)
	require.NoError(t, err)
	raw[0] = 0x99
	assert.Equal(t, []byte{0x00, 0xFF, 0x10}, b.Bytes())

	enc := AppendBinary(nil, b)
	assert.Equal(t, []byte{0x00, 0x03, 0x00, 0xFF, 0x10}, enc)

	got, n, err := DecodeBinary(enc)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, got.Equal(b))

	_, err = NewBinary(make([]byte, MaxStringLength+1))
	assert.ErrorIs(t, err, ErrRange)
}
