// Ella CLI - runs ella scripts, the REPL and the playground servers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/ellapad/examples"
	"github.com/chazu/ellapad/manifest"
	"github.com/chazu/ellapad/runner"
	"github.com/chazu/ellapad/vm"
)

const version = "0.1.0"

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	serveMode := flag.Bool("serve", false, "Start the playground server (Connect + socket.io)")
	addr := flag.String("addr", "", "Server address (default from ellapad.toml, else :4567)")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")
	listExamples := flag.Bool("examples", false, "List the example catalog")
	exampleName := flag.String("example", "", "Run the named example")
	dump := flag.Bool("dump", false, "Print the compiled bytecode instead of running")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ella [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Runs ella files in one session and prints the transcript.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ella -i                   # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  ella main.ella            # Run a file\n")
		fmt.Fprintf(os.Stderr, "  ella -dump main.ella      # Show bytecode\n")
		fmt.Fprintf(os.Stderr, "  ella -serve -addr :8080   # Serve the playground\n")
		fmt.Fprintf(os.Stderr, "  ella -example fizzbuzz    # Run a catalog example\n")
	}
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verbosity := cfg.Verbosity()
	if *verbose {
		verbosity = 2
	}
	// The LSP speaks on stdout, so its log must never go there.
	commonlog.Configure(verbosity, cfg.LogPath())

	switch {
	case *lspMode:
		if err := runLSP(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
			os.Exit(1)
		}
	case *serveMode:
		if *addr != "" {
			cfg.Server.Addr = *addr
		}
		if err := serve(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	case *listExamples || *exampleName != "":
		os.Exit(runCatalog(cfg, *exampleName, *dump))
	case *interactive || flag.NArg() == 0:
		runREPL(*verbose)
	default:
		os.Exit(runFiles(flag.Args(), *dump))
	}
}

// loadConfig returns the nearest ellapad.toml, or defaults when there is
// none.
func loadConfig() (*manifest.Manifest, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

// runFiles runs every file in one session. Later files see the globals of
// earlier ones.
func runFiles(paths []string, dump bool) int {
	session := runner.NewSession()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if code := runSource(session, string(data), dump); code != 0 {
			return code
		}
	}
	return 0
}

// runSource compiles and runs text, streaming the transcript to stdout.
// With dump it prints the bytecode and CBOR size instead.
func runSource(session *runner.Session, text string, dump bool) int {
	program, err := session.Compile(text)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return 1
	}

	if dump {
		data, err := vm.MarshalChunk(program.Chunk())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Print(vm.Disassemble(program.Chunk()))
		fmt.Printf("; %d bytes encoded\n", len(data))
		return 0
	}

	out := newTranscriptWriter(os.Stdout, false)
	if _, err := session.Execute(program, runner.NewSubscription(out.Update)); err != nil {
		if runner.IsRuntimeError(err) {
			return 70
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runCatalog lists the examples, or runs the one named.
func runCatalog(cfg *manifest.Manifest, name string, dump bool) int {
	catalog, err := examples.OpenSeeded(cfg.DatabasePath(), cfg.SeedPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer catalog.Close()
	ctx := context.Background()

	if name == "" {
		list, err := catalog.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		width := 0
		for _, ex := range list {
			width = max(width, len(ex.Name))
		}
		for _, ex := range list {
			fmt.Printf("%-*s  %s\n", width, ex.Name, ex.Title)
		}
		return 0
	}

	source := catalog.SourceOrPlaceholder(ctx, name)
	if source == examples.Placeholder {
		fmt.Fprintf(os.Stderr, "Error: no example named %q\n", name)
		return 1
	}
	fmt.Println(strings.TrimRight(source, "\n"))
	fmt.Println()
	return runSource(runner.NewSession(), source, dump)
}
