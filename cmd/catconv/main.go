package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/crystal-mush/gorom/pkg/catalog"
	"github.com/crystal-mush/gorom/pkg/fileguard"
	"github.com/crystal-mush/gorom/pkg/loot"
)

func main() {
	kindName := flag.String("kind", "", "Catalog kind (classes, races, commands, socials, tutorials, scripts, loot)")
	in := flag.String("in", "", "Input file; format chosen by extension")
	out := flag.String("out", "", "Output file; omit to only check the input")
	check := flag.Bool("check", false, "Resolve every loot table after loading")
	flag.Parse()

	if *kindName == "" || *in == "" {
		fmt.Fprintln(os.Stderr, "Usage: catconv -kind <catalog> -in <file> [-out <file>] [-check]")
		fmt.Fprintln(os.Stderr, "  .olc files use the area-style text format, .json files the JSON format.")
		os.Exit(1)
	}
	kind, ok := catalog.ParseKind(*kindName)
	if !ok {
		fmt.Fprintf(os.Stderr, "ERROR: unknown catalog %q\n", *kindName)
		os.Exit(1)
	}

	guard, err := fileguard.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer guard.Shutdown()
	m := catalog.New(catalog.Config{JSON: true}, nil, guard)

	start := time.Now()
	if res := m.Load(kind, *in); !res.IsOK() {
		fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", *in, res)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d %s from %s in %v\n", m.Catalogs.Counts()[kind.String()], kind, *in, time.Since(start))

	if *check && kind == catalog.Loot {
		if err := loot.ResolveAll(m.Catalogs.Loot); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("All %d loot tables resolve\n", m.Catalogs.Loot.Tables.Len())
	}

	if *out == "" {
		return
	}
	if res := m.Convert(kind, *in, *out); !res.IsOK() {
		fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", *out, res)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
}
