package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestWriteSummary(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	writeSummary(&buf, []Result{
		{Symbol: "MtObject", Path: "output/MtObject.h", Size: 2048},
		{Symbol: "cGhost", Path: "output/cGhost.h", Size: 256, Placeholder: true},
		{Symbol: "cBroken", Err: errors.New("malformed debug info")},
	})

	out := buf.String()
	require.Contains(t, out, "MtObject")
	require.Contains(t, out, "OK")
	require.Contains(t, out, "placeholder")
	require.Contains(t, out, "FAILED")
	require.Contains(t, out, "malformed debug info")
	require.Contains(t, out, "2.0 kB")
	require.Contains(t, out, "generated 2/3 headers")
}
