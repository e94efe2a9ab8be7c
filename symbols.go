package main

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// collectSymbols merges positional symbols with the optional symbols file,
// first occurrence wins. File lines are trimmed; blank lines and lines
// starting with # are skipped.
func collectSymbols(fs afero.Fs, args []string, path string) (symbols []string, err error) {
	seen := map[string]struct{}{}
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		symbols = append(symbols, name)
	}

	for _, arg := range args {
		add(arg)
	}
	if path == "" {
		return
	}

	content, err := afero.ReadFile(fs, path)
	if err != nil {
		err = errors.WithMessage(err, "symbols file")
		return
	}
	fromFile := 0
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		add(line)
		fromFile++
	}
	log.Infof("read %d symbols from %s", fromFile, path)
	return
}
