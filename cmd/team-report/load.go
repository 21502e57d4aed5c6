package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/perfreport/internal/domain/assembler"
	"github.com/okian/perfreport/internal/domain/sanitize"
	"github.com/okian/perfreport/internal/domain/schema"
	"github.com/okian/perfreport/internal/domain/upload"
)

// loaded is a parsed, resolved and assembled CSV.
type loaded struct {
	table  *upload.Table
	avail  *schema.AvailabilityMap
	result *assembler.Result
}

// load runs a CSV file through the same pipeline as an HTTP upload.
func load(path string, season schema.Season) (*loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	parser := upload.NewParser(sanitize.DefaultLimits(), sanitize.New())
	data, err := parser.ReadAll(f, info.Size())
	if err != nil {
		return nil, err
	}
	table, err := parser.Parse(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}

	reg := schema.DefaultRegistry()
	av := reg.Resolve(table.Headers)
	av.Populate(table.Rows)
	return &loaded{
		table:  table,
		avail:  av,
		result: assembler.New(reg).Assemble(av, table.Rows, season),
	}, nil
}
