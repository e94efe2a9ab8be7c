package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/consoledbg/dwarfclass/internal/index"
	"github.com/consoledbg/dwarfclass/version"
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Print(version.String())
	}

	app := &cli.App{
		Name:      "dwarfclass",
		Usage:     "reconstruct C++ class declarations from DWARF debug info in console ELF binaries",
		UsageText: "dwarfclass [options] <elf-binary> [symbol ...]",
		Version:   version.VERSION,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "symbols-file",
				Aliases: []string{"f"},
				Usage:   "read symbols from a file, one per line, # starts a comment",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "output",
				Usage:   "directory for generated headers",
				EnvVars: []string{"DWARFCLASS_OUTPUT"},
			},
			&cli.BoolFlag{
				Name:  "full-hierarchy",
				Value: false,
				Usage: "emit the whole inheritance chain plus small dependencies in one header",
			},
			&cli.StringFlag{
				Name:    "cache-dir",
				Usage:   "persistent symbol cache directory, defaults to the user cache folder",
				EnvVars: []string{"DWARFCLASS_CACHE_DIR"},
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Value: false,
				Usage: "neither load nor save the persistent symbol cache",
			},
			&cli.IntFlag{
				Name:    "entry-cache-size",
				Value:   index.DefaultEntryCacheSize,
				Usage:   "in-memory DIE cache capacity",
				EnvVars: []string{"DWARFCLASS_ENTRY_CACHE"},
			},
			&cli.IntFlag{
				Name:    "type-cache-size",
				Value:   index.DefaultTypeCacheSize,
				Usage:   "resolved type name cache capacity",
				EnvVars: []string{"DWARFCLASS_TYPE_CACHE"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Value:   false,
				Usage:   "enable debug logging",
				EnvVars: []string{"DWARFCLASS_VERBOSE"},
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				log.SetLevel(log.DebugLevel)
				logHostInfo()
			}
			return nil
		},
		Action: func(ctx *cli.Context) (err error) {
			bin := ctx.Args().First()
			if bin == "" {
				cli.ShowAppHelpAndExit(ctx, 1)
			}
			symbols, err := collectSymbols(afero.NewOsFs(), ctx.Args().Tail(), ctx.String("symbols-file"))
			if err != nil {
				return
			}
			if len(symbols) == 0 {
				fmt.Fprintln(ctx.App.ErrWriter, "no symbols requested: pass them as arguments or via --symbols-file")
				cli.ShowAppHelpAndExit(ctx, 1)
			}

			recon, err := NewReconstructor(bin, Options{
				OutputDir:      ctx.String("output"),
				FullHierarchy:  ctx.Bool("full-hierarchy"),
				CacheDir:       ctx.String("cache-dir"),
				NoCache:        ctx.Bool("no-cache"),
				EntryCacheSize: ctx.Int("entry-cache-size"),
				TypeCacheSize:  ctx.Int("type-cache-size"),
			})
			if err != nil {
				return
			}
			return recon.Run(symbols)
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
