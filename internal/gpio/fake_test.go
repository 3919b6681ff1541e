package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Reader = (*FakeReader)(nil)
var _ Reader = (*RealReader)(nil)

func TestFakeReaderRead(t *testing.T) {
	f := NewFakeReader([]Sample{
		{Power: true, Service: false},
		{Power: false, Service: true},
	})

	power, service, err := f.Read()
	require.NoError(t, err)
	assert.True(t, power)
	assert.False(t, service)

	power, service, err = f.Read()
	require.NoError(t, err)
	assert.False(t, power)
	assert.True(t, service)

	power, service, err = f.Read()
	require.NoError(t, err)
	assert.False(t, power, "last sample repeats")
	assert.True(t, service)
}

func TestFakeReaderNoSamples(t *testing.T) {
	_, _, err := NewFakeReader(nil).Read()
	assert.Error(t, err)
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader([]Sample{{Power: true}})
	f.ReadError = errors.New("simulated error")

	_, _, err := f.Read()
	assert.EqualError(t, err, "simulated error")
}

func TestFakeReaderCloseAndReset(t *testing.T) {
	f := NewFakeReader([]Sample{{Power: true}, {Service: true}})
	_, _, _ = f.Read()

	require.NoError(t, f.Close())
	assert.True(t, f.Closed)

	f.Reset()
	assert.False(t, f.Closed)
	power, _, err := f.Read()
	require.NoError(t, err)
	assert.True(t, power, "reset rewinds to the first sample")
}
