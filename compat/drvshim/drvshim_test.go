package drvshim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"periphcore-go/compat/drvshim"
	"periphcore-go/errcode"
	"periphcore-go/i2c"
	"periphcore-go/mock"
	"periphcore-go/spi"
)

func newI2CShim(t *testing.T) (drvshim.I2C, *mock.I2C) {
	t.Helper()
	target := mock.NewI2C()
	c := i2c.NewController(target)
	require.NoError(t, c.Configure(i2c.Config{Frequency: 400_000}))
	return drvshim.NewI2C(i2c.Bind(c)), target
}

func TestI2CTxWriteThenRead(t *testing.T) {
	shim, target := newI2CShim(t)
	target.AddDevice(0x76, map[byte]byte{0xD0: 0x58})

	var id [1]byte
	require.NoError(t, shim.Tx(0x76, []byte{0xD0}, id[:]))
	assert.Equal(t, byte(0x58), id[0])
	assert.Equal(t, []string{"S 76 W", "W d0", "S 76 R", "R 58", "P"}, target.Wire)
}

func TestI2CTxWriteOnly(t *testing.T) {
	shim, target := newI2CShim(t)
	dev := target.AddDevice(0x76, nil)

	require.NoError(t, shim.Tx(0x76, []byte{0xF4, 0x27}, nil))
	assert.Equal(t, byte(0x27), dev.Regs[0xF4])
}

func TestI2CTxReadOnly(t *testing.T) {
	shim, target := newI2CShim(t)
	target.AddDevice(0x48, map[byte]byte{0x00: 0x19, 0x01: 0x80})

	buf := make([]byte, 2)
	require.NoError(t, shim.Tx(0x48, nil, buf))
	assert.Equal(t, []byte{0x19, 0x80}, buf)
	assert.Equal(t, []string{"S 48 R", "R 19", "R 80", "P"}, target.Wire)
}

func TestI2CTxProbe(t *testing.T) {
	shim, target := newI2CShim(t)
	target.AddDevice(0x20, nil)

	require.NoError(t, shim.Tx(0x20, nil, nil))
	assert.Equal(t, errcode.NoAck, errcode.Of(shim.Tx(0x21, nil, nil)))
}

func TestI2CTxNackSurfacesFirstLegError(t *testing.T) {
	shim, _ := newI2CShim(t)
	buf := make([]byte, 4)
	err := shim.Tx(0x76, []byte{0xD0}, buf)
	assert.Equal(t, errcode.NoAck, errcode.Of(err))
}

func newSPIShim(t *testing.T) (drvshim.SPI, *mock.SPI) {
	t.Helper()
	target := mock.NewSPI()
	b := spi.NewBus(target)
	require.NoError(t, b.Configure(spi.Config{Frequency: 1_000_000}))
	return drvshim.NewSPI(spi.Bind(b)), target
}

func TestSPITx(t *testing.T) {
	shim, target := newSPIShim(t)
	target.OnExchange = func(out byte) byte { return out ^ 0xFF }

	rx := make([]byte, 3)
	require.NoError(t, shim.Tx([]byte{1, 2, 3}, rx))
	assert.Equal(t, []byte{0xFE, 0xFD, 0xFC}, rx)
	assert.Equal(t, []byte{1, 2, 3}, target.Tx)
}

func TestSPITransferSingleByte(t *testing.T) {
	shim, target := newSPIShim(t)
	target.OnExchange = func(out byte) byte { return out + 1 }

	got, err := shim.Transfer(0x41)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), got)
}
