package elf

import "errors"

var (
	NoDebugInfoError        = errors.New("no debug info")
	EntryNotFoundError      = errors.New("debug entry not found")
	AttrNotFoundError       = errors.New("attribute not found")
	MalformedReferenceError = errors.New("malformed reference")
	MalformedDwarfError     = errors.New("malformed debug info")
	NoLineTableError        = errors.New("no line table")
)
