package typechain

// PrimitiveTypedefs maps the fixed-width aliases console SDKs layer
// over the C types back to the underlying spelling. Resolution through
// the index is skipped for these; the mapping is the same in every
// binary and the DIEs are not always present.
var PrimitiveTypedefs = map[string]string{
	"u8":  "unsigned char",
	"u16": "unsigned short",
	"u32": "unsigned int",
	"u64": "unsigned long long",
	"s8":  "signed char",
	"s16": "short",
	"s32": "int",
	"s64": "long long",
	"f32": "float",
	"f64": "double",
	"b8":  "unsigned char",
	"b32": "unsigned int",

	"uint8_t":  "unsigned char",
	"uint16_t": "unsigned short",
	"uint32_t": "unsigned int",
	"uint64_t": "unsigned long long",
	"int8_t":   "signed char",
	"int16_t":  "short",
	"int32_t":  "int",
	"int64_t":  "long long",

	"size_t":    "unsigned long",
	"ssize_t":   "long",
	"ptrdiff_t": "long",
	"intptr_t":  "long",
	"uintptr_t": "unsigned long",
}

// baseNames are the plain C and C++ type spellings that need no
// declaration and never become dependencies.
var baseNames = map[string]struct{}{
	"void":                   {},
	"bool":                   {},
	"char":                   {},
	"signed char":            {},
	"unsigned char":          {},
	"short":                  {},
	"short int":              {},
	"unsigned short":         {},
	"short unsigned int":     {},
	"int":                    {},
	"unsigned int":           {},
	"long":                   {},
	"long int":               {},
	"unsigned long":          {},
	"long unsigned int":      {},
	"long long":              {},
	"long long int":          {},
	"unsigned long long":     {},
	"long long unsigned int": {},
	"float":                  {},
	"double":                 {},
	"long double":            {},
	"wchar_t":                {},
	"char16_t":               {},
	"char32_t":               {},
}

// IsPrimitiveName reports whether name is a base type or one of the
// fixed-width aliases, meaning it needs neither a forward declaration
// nor a header of its own.
func IsPrimitiveName(name string) bool {
	if _, ok := baseNames[name]; ok {
		return true
	}
	_, ok := PrimitiveTypedefs[name]
	return ok
}

// ExpandSearch lists the alternate spellings a primitive-looking name
// may carry in debug info. GCC writes "long unsigned int" where the
// programmer wrote size_t, so a lookup that misses on the given name
// retries with these.
func ExpandSearch(name string) []string {
	alts := []string{name}
	if mapped, ok := PrimitiveTypedefs[name]; ok {
		alts = append(alts, mapped)
		if gcc, ok := gccSpellings[mapped]; ok {
			alts = append(alts, gcc)
		}
	}
	return alts
}

// gccSpellings maps canonical C names to the DW_AT_name form GCC emits
// for the same base type.
var gccSpellings = map[string]string{
	"unsigned short":     "short unsigned int",
	"unsigned long":      "long unsigned int",
	"unsigned long long": "long long unsigned int",
	"short":              "short int",
	"long":               "long int",
	"long long":          "long long int",
}
