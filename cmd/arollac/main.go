// Copyright (C) 2024 Arolla authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command arollac loads an expression+qtype-map fixture, runs it
// through the preparation pipeline and the evaluation visitor against
// a small built-in arithmetic backend directory, and prints the bound
// program's layout and (with -debug) its per-op descriptions. It is a
// diagnostic/demo front end, not a real query tool — a real deployment
// supplies its own backend directory and its own front end for turning
// source expressions into expr.Node trees (spec §1 non-goals).
package main

import (
	"flag"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/arolla-go/arolla/compile"
	"github.com/arolla-go/arolla/internal/logging"
	"github.com/arolla-go/arolla/prepare"
	"github.com/arolla-go/arolla/trace"
)

var (
	dashDebug   bool
	dashVerbose bool
	dashTrace   bool
)

func init() {
	flag.BoolVar(&dashDebug, "debug", false, "print per-op descriptions of the bound program")
	flag.BoolVar(&dashVerbose, "v", false, "enable verbose stage-by-stage diagnostic logging")
	flag.BoolVar(&dashTrace, "trace", false, "keep a detailed rewrite-chain log during preparation")
}

func main() {
	flag.Parse()
	if dashVerbose {
		logging.Enable()
	}
	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: arollac [-debug] [-v] [-trace] <fixture.yaml>")
		os.Exit(2)
	}
	if err := run(args[0]); err != nil {
		fmt.Fprintln(os.Stderr, "arollac:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}
	var f fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing fixture: %w", err)
	}

	leafQTypes, err := parseLeafQTypes(f.LeafQTypes)
	if err != nil {
		return fmt.Errorf("leaf_qtypes: %w", err)
	}
	root, err := f.Expr.build(leafQTypes)
	if err != nil {
		return fmt.Errorf("building expression: %w", err)
	}

	backends := newArithmeticDirectory()
	log := trace.NewLog(dashTrace)

	prepared, err := prepare.Prepare(root, prepare.Options{
		LeafQTypes: leafQTypes,
		Backends:   backends,
		Log:        log,
	})
	if err != nil {
		return fmt.Errorf("preparing expression: %w", err)
	}

	ce, err := compile.Compile(prepared, leafQTypes, compile.Options{
		Backends: backends,
		Debug:    dashDebug,
		Log:      log,
	})
	if err != nil {
		return fmt.Errorf("compiling expression: %w", err)
	}

	bound, err := ce.Bind()
	if err != nil {
		return fmt.Errorf("binding expression: %w", err)
	}

	fmt.Printf("session: %s\n", ce.SessionID)
	fmt.Printf("output qtype: %s\n", ce.OutputQType)
	if len(ce.SideOutputs) > 0 {
		fmt.Println("side outputs:")
		for name, t := range ce.SideOutputs {
			fmt.Printf("  %s: %s\n", name, t)
		}
	}
	fmt.Printf("layout: %s\n", bound.Layout)
	fmt.Printf("init ops: %d, eval ops: %d\n", len(bound.InitOps), len(bound.EvalOps))
	if dashDebug {
		for i, d := range bound.Descriptions {
			fmt.Printf("  [%d] %s\n", i, d)
		}
	}
	return nil
}
