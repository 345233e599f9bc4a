package flashfs

import "fmt"

// BlockDevice is the raw flash access an engine drives: read a region,
// program a previously erased region, erase a whole block. Calls arrive
// only from under a session guard, so implementations need no locking.
type BlockDevice interface {
	Read(block, off uint32, p []byte) error
	Prog(block, off uint32, p []byte) error
	Erase(block uint32) error
	Sync() error
}

// RAMDevice keeps its blocks in memory. Erased bytes read back as 0xFF,
// like NOR flash.
type RAMDevice struct {
	blockSize  uint32
	blockCount uint32
	data       []byte
}

var _ BlockDevice = (*RAMDevice)(nil)

// NewRAMDevice allocates a device of blockCount blocks of blockSize
// bytes, fully erased.
func NewRAMDevice(blockSize, blockCount uint32) *RAMDevice {
	d := &RAMDevice{
		blockSize:  blockSize,
		blockCount: blockCount,
		data:       make([]byte, int64(blockSize)*int64(blockCount)),
	}
	for i := range d.data {
		d.data[i] = 0xFF
	}
	return d
}

// BlockSize returns the erase unit in bytes.
func (d *RAMDevice) BlockSize() uint32 { return d.blockSize }

// BlockCount returns the number of blocks.
func (d *RAMDevice) BlockCount() uint32 { return d.blockCount }

func (d *RAMDevice) region(block, off uint32, n int) (int64, error) {
	if block >= d.blockCount || int64(off)+int64(n) > int64(d.blockSize) {
		return 0, fmt.Errorf("ramdevice: out of range: block %d off %d len %d", block, off, n)
	}
	return int64(block)*int64(d.blockSize) + int64(off), nil
}

func (d *RAMDevice) Read(block, off uint32, p []byte) error {
	start, err := d.region(block, off, len(p))
	if err != nil {
		return err
	}
	copy(p, d.data[start:start+int64(len(p))])
	return nil
}

func (d *RAMDevice) Prog(block, off uint32, p []byte) error {
	start, err := d.region(block, off, len(p))
	if err != nil {
		return err
	}
	copy(d.data[start:start+int64(len(p))], p)
	return nil
}

func (d *RAMDevice) Erase(block uint32) error {
	start, err := d.region(block, 0, int(d.blockSize))
	if err != nil {
		return err
	}
	for i := start; i < start+int64(d.blockSize); i++ {
		d.data[i] = 0xFF
	}
	return nil
}

func (d *RAMDevice) Sync() error { return nil }
