package classparse

import (
	"debug/dwarf"

	log "github.com/sirupsen/logrus"
)

// DW_OP_plus_uconst, the only location opcode the legacy PS3 toolchain
// uses for member offsets.
const opPlusUconst = 0x23

// memberOffset decodes DW_AT_data_member_location. Modern producers
// write a plain constant; the legacy encoding wraps the offset in a
// one-opcode location expression. Anything else is unknown (-1).
func memberOffset(entry *dwarf.Entry) int64 {
	switch v := entry.Val(dwarf.AttrDataMemberLoc).(type) {
	case int64:
		return v
	case []byte:
		if off, ok := decodePlusUconst(v); ok {
			return off
		}
		log.Debugf("undecodable member location %v at 0x%x", v, entry.Offset)
		return -1
	default:
		return -1
	}
}

func decodePlusUconst(expr []byte) (int64, bool) {
	if len(expr) < 2 || expr[0] != opPlusUconst {
		return 0, false
	}
	value, n := decodeULEB128(expr[1:])
	if n == 0 {
		return 0, false
	}
	return int64(value), true
}

// decodeULEB128 reads one unsigned LEB128 value, returning the number
// of bytes consumed, 0 on truncated or oversized input.
func decodeULEB128(buf []byte) (value uint64, n int) {
	var shift uint
	for i, b := range buf {
		if shift >= 64 {
			return 0, 0
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1
		}
		shift += 7
	}
	return 0, 0
}
