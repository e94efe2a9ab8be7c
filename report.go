package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/elastic/go-sysinfo"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	"github.com/consoledbg/dwarfclass/elf"
)

func printSummary(results []Result) {
	writeSummary(os.Stdout, results)
}

func writeSummary(w io.Writer, results []Result) {
	ok := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"SYMBOL", "STATUS", "OUTPUT", "SIZE"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	generated := 0
	for _, result := range results {
		switch {
		case result.Err != nil:
			table.Append([]string{result.Symbol, bad("FAILED"), result.Err.Error(), ""})
		case result.Placeholder:
			generated++
			table.Append([]string{result.Symbol, warn("placeholder"), result.Path, humanize.Bytes(uint64(result.Size))})
		default:
			generated++
			table.Append([]string{result.Symbol, ok("OK"), result.Path, humanize.Bytes(uint64(result.Size))})
		}
	}
	table.Render()
	fmt.Fprintf(w, "\ngenerated %d/%d headers\n", generated, len(results))
}

func logBinaryInfo(e *elf.ELF, path string) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	stats, err := e.Stats()
	if err != nil {
		log.Debugf("debug info stats unavailable: %v", err)
		return
	}
	log.Debugf("%s: platform=%s dwarf=v%d units=%d symbols=%d .debug_info=%s",
		path, stats.Platform, stats.DwarfVersion, stats.CompileUnits,
		stats.SymbolCount, humanize.Bytes(stats.DebugInfoSize))
}

func logHostInfo() {
	host, err := sysinfo.Host()
	if err != nil {
		log.Debugf("host info unavailable: %v", err)
		return
	}
	info := host.Info()
	log.Debugf("host: os=%s %s kernel=%s arch=%s",
		info.OS.Name, info.OS.Version, info.KernelVersion, info.Architecture)
	if memory, err := host.Memory(); err == nil {
		log.Debugf("memory: %s total, %s available",
			humanize.Bytes(memory.Total), humanize.Bytes(memory.Available))
	}
}
