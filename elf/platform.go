package elf

import "debug/elf"

// Platform is the console family inferred from the ELF machine. PS3 binaries
// are big-endian PPC64 with DWARF2-era producers, PS4 ones little-endian
// x86-64 with DWARF3/4. The parser accepts both member-offset encodings
// either way; the platform is surfaced for diagnostics.
type Platform string

const (
	PlatformPS3     Platform = "ps3"
	PlatformPS4     Platform = "ps4"
	PlatformUnknown Platform = "unknown"
)

var machinePlatforms = map[elf.Machine]Platform{
	elf.EM_PPC64:  PlatformPS3,
	elf.EM_X86_64: PlatformPS4,
}

func (e *ELF) Platform() Platform {
	if platform, ok := machinePlatforms[e.elfFile.Machine]; ok {
		return platform
	}
	return PlatformUnknown
}
