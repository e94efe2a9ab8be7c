package packing

import (
	"strconv"
	"strings"
)

const pointerSize = 8

var typeSizes = map[string]int64{
	"bool":          1,
	"char":          1,
	"signed char":   1,
	"unsigned char": 1,
	"u8":            1,
	"s8":            1,
	"b8":            1,
	"uint8_t":       1,
	"int8_t":        1,

	"short":              2,
	"short int":          2,
	"unsigned short":     2,
	"short unsigned int": 2,
	"u16":                2,
	"s16":                2,
	"uint16_t":           2,
	"int16_t":            2,

	"int":          4,
	"unsigned int": 4,
	"u32":          4,
	"s32":          4,
	"b32":          4,
	"float":        4,
	"f32":          4,
	"uint32_t":     4,
	"int32_t":      4,

	"long":                   8,
	"long int":               8,
	"unsigned long":          8,
	"long unsigned int":      8,
	"long long":              8,
	"long long int":          8,
	"unsigned long long":     8,
	"long long unsigned int": 8,
	"u64":                    8,
	"s64":                    8,
	"f64":                    8,
	"double":                 8,
	"size_t":                 8,
	"uint64_t":               8,
	"int64_t":                8,
	"ptr":                    8,
}

// EstimateSize guesses a member's byte size from its display type
// name. Pointers and references count as machine words, arrays as
// element size times every parsed dimension, unknown named types as a
// machine word.
func EstimateSize(typeName string) int64 {
	name := strings.ReplaceAll(typeName, "const ", "")
	name = strings.ReplaceAll(name, "volatile ", "")
	name = strings.TrimSpace(name)

	if strings.HasSuffix(name, "*") || strings.HasSuffix(name, "&") {
		return pointerSize
	}
	if open := strings.IndexByte(name, '['); open >= 0 && strings.HasSuffix(name, "]") {
		product, ok := arrayProduct(name[open:])
		if !ok {
			return pointerSize
		}
		return EstimateSize(name[:open]) * product
	}
	if size, ok := typeSizes[name]; ok {
		return size
	}
	return pointerSize
}

// arrayProduct multiplies the dimensions of a "[2][3]" suffix.
func arrayProduct(s string) (int64, bool) {
	product := int64(1)
	for s != "" {
		if s[0] != '[' {
			return 0, false
		}
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return 0, false
		}
		dim, err := strconv.ParseInt(s[1:end], 10, 64)
		if err != nil || dim <= 0 {
			return 0, false
		}
		product *= dim
		s = s[end+1:]
	}
	return product, true
}
