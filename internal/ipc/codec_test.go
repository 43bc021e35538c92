package ipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	in := wireStateRequest{EntitiesByID: true}
	require.NoError(t, writeFrame(&buf, in))

	var out wireStateRequest
	require.NoError(t, readFrame(&buf, &out))

	assert.Equal(t, in, out)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})

	var out wireStateRequest
	err := readFrame(buf, &out)

	require.Error(t, err)
	var ipcErr *Error
	require.True(t, asError(err, &ipcErr))
	assert.Equal(t, Deserialization, ipcErr.Kind)
}

func TestParseBodyTrimsAndParsesEachType(t *testing.T) {
	v, err := ParseBody(Integer, []byte("42\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)

	v, err = ParseBody(Float, []byte(" 3.5 \n"))
	require.NoError(t, err)
	assert.InDelta(t, 3.5, v.Flt, 1e-9)

	v, err = ParseBody(String, []byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Str)

	v, err = ParseBody(Position, []byte("1.0 2.5 -3.25\n"))
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1.0, 2.5, -3.25}, v.Pos)

	v, err = ParseBody(Block, []byte("10,64,-5\n"))
	require.NoError(t, err)
	assert.Equal(t, int32(10), v.BlockPos.X)
	assert.Equal(t, int32(64), v.BlockPos.Y)
	assert.Equal(t, int32(-5), v.BlockPos.Z)
}

func TestParseBodyRejectsMalformedInput(t *testing.T) {
	_, err := ParseBody(Integer, []byte("not a number"))
	require.Error(t, err)
	var ipcErr *Error
	require.True(t, asError(err, &ipcErr))
	assert.Equal(t, BadInput, ipcErr.Kind)
}

func TestFormatBodyMatchesReadFormatting(t *testing.T) {
	assert.Equal(t, "42\n", string(FormatBody(Integer, bodyValue{Int: 42})))
	assert.Equal(t, "TestPlayer\n", string(FormatBody(String, bodyValue{Str: "TestPlayer"})))
	assert.Equal(t, "10\n", string(FormatBody(Float, bodyValue{Flt: 10})))
}
