package index

import "errors"

var (
	SymbolNotFoundError    = errors.New("symbol not found")
	CacheCorruptedError    = errors.New("symbol cache corrupted")
	UnsupportedSchemaError = errors.New("unsupported cache schema")
)
