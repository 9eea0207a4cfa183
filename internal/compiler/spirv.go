package compiler

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga/spirv"
)

// Header is the fixed five-word preamble of a SPIR-V module.
type Header struct {
	Version   spirv.Version
	Generator uint32
	Bound     uint32
}

const headerSize = 5 * 4

// ParseHeader validates the module preamble of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < headerSize || len(b)%4 != 0 {
		return Header{}, fmt.Errorf("not a SPIR-V module: %d bytes", len(b))
	}
	if magic := binary.LittleEndian.Uint32(b); magic != spirv.MagicNumber {
		return Header{}, fmt.Errorf("not a SPIR-V module: magic 0x%08X", magic)
	}
	v := binary.LittleEndian.Uint32(b[4:])
	return Header{
		Version:   spirv.Version{Major: uint8(v >> 16), Minor: uint8(v >> 8)},
		Generator: binary.LittleEndian.Uint32(b[8:]),
		Bound:     binary.LittleEndian.Uint32(b[12:]),
	}, nil
}

func (h Header) String() string {
	return fmt.Sprintf("SPIR-V %d.%d, bound %d", h.Version.Major, h.Version.Minor, h.Bound)
}
