// Command relicdb is the CLI entry point: a REPL over a disk-backed
// relational store, plus a "serve" subcommand exposing the same engine
// over HTTP, built as a cobra command tree.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relicdb/relicdb/internal/catalog"
	"github.com/relicdb/relicdb/internal/executor"
	"github.com/relicdb/relicdb/internal/sql/lexer"
	"github.com/relicdb/relicdb/internal/sql/parser"
	"github.com/relicdb/relicdb/internal/storage"
	"github.com/relicdb/relicdb/internal/web"
)

const banner = `
 _ __ ___| (_) ___|  _ \| __ )
| '__/ _ \ | |/ __| | | |  _ \
| | |  __/ | | (__| |_| | |_) |
|_|  \___|_|_|\___|____/|____/

A single-node disk-backed relational store.
Type '.help' for usage hints or '.quit' to exit.
`

var dbPath string

func main() {
	root := &cobra.Command{
		Use:   "relicdb",
		Short: "A single-node disk-backed relational store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(dbPath)
		},
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "relic.db", "path to the database file")

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive SQL REPL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(dbPath)
		},
	}

	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the database over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dbPath, addr)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")

	root.AddCommand(replCmd, serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openEngine wires the storage/catalog/executor stack on top of a single
// main database file.
func openEngine(path string) (*executor.Engine, func() error, error) {
	zl, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	log := zl.Sugar()

	store, err := storage.OpenFileStore(path, true)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database file: %w", err)
	}
	pm, err := storage.OpenPageManager(store, 256, log)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("opening page manager: %w", err)
	}
	cat, err := catalog.Open(pm, log)
	if err != nil {
		pm.Close()
		return nil, nil, fmt.Errorf("opening catalog: %w", err)
	}
	dir := "."
	eng, err := executor.Open(dir, pm, cat, log, executor.Options{})
	if err != nil {
		pm.Close()
		return nil, nil, fmt.Errorf("opening engine: %w", err)
	}

	closeFn := func() error {
		err := pm.Close()
		_ = zl.Sync()
		return err
	}
	return eng, closeFn, nil
}

func runServe(path, addr string) error {
	eng, closeFn, err := openEngine(path)
	if err != nil {
		return err
	}
	defer closeFn()

	port := 8080
	if _, portStr, found := strings.Cut(addr, ":"); found {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	srv := web.NewServer(port, eng)
	fmt.Printf("Serving %s on %s\n", path, addr)
	return srv.Run()
}

func runRepl(path string) error {
	eng, closeFn, err := openEngine(path)
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Print(banner)
	tables := eng.Tables()
	if len(tables) > 0 {
		fmt.Printf("Loaded %d table(s): %s\n\n", len(tables), strings.Join(tables, ", "))
	}

	repl(eng)
	return nil
}

var dotCommands = map[string]string{
	".help":   "Show this help message",
	".quit":   "Exit the program",
	".exit":   "Exit the program (alias for .quit)",
	".tables": "List all tables",
	".schema": "Show schema for all tables or a specific table",
	".clear":  "Clear the screen",
}

// repl implements the Read-Eval-Print Loop over *executor.Engine.
func repl(eng *executor.Engine) {
	reader := bufio.NewReader(os.Stdin)
	var inputBuffer strings.Builder

	for {
		if inputBuffer.Len() == 0 {
			fmt.Print("relicdb> ")
		} else {
			fmt.Print("     ...> ")
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nGoodbye!")
			return
		}
		line = strings.TrimRight(line, "\n\r")

		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), ".") {
			if handleDotCommand(strings.TrimSpace(line), eng) {
				return
			}
			continue
		}

		inputBuffer.WriteString(line)

		input := strings.TrimSpace(inputBuffer.String())
		if !strings.HasSuffix(input, ";") {
			inputBuffer.WriteString(" ")
			continue
		}

		input = strings.TrimSuffix(input, ";")
		inputBuffer.Reset()
		executeSQL(input, eng)
	}
}

// handleDotCommand processes special dot commands. It returns true when the
// REPL should exit.
func handleDotCommand(cmd string, eng *executor.Engine) bool {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case ".help":
		fmt.Println("\nAvailable commands:")
		for c, desc := range dotCommands {
			fmt.Printf("  %-12s %s\n", c, desc)
		}
		fmt.Println("\nSQL commands:")
		fmt.Println("  CREATE TABLE name (column definitions)")
		fmt.Println("  DROP TABLE name")
		fmt.Println("  INSERT INTO table (columns) VALUES (values)")
		fmt.Println("  SELECT columns FROM table [WHERE condition] [ORDER BY ...] [LIMIT n]")
		fmt.Println("  UPDATE table SET column = value [WHERE condition]")
		fmt.Println("  DELETE FROM table [WHERE condition]")
		fmt.Println("  EXPLAIN statement")
		fmt.Println()

	case ".quit", ".exit":
		fmt.Println("Goodbye!")
		return true

	case ".tables":
		tables := eng.Tables()
		if len(tables) == 0 {
			fmt.Println("No tables found.")
		} else {
			fmt.Println("Tables:")
			for _, name := range tables {
				fmt.Printf("  %s\n", name)
			}
		}

	case ".schema":
		if len(parts) > 1 {
			showTableSchema(parts[1], eng)
		} else {
			for _, name := range eng.Tables() {
				showTableSchema(name, eng)
			}
		}

	case ".clear":
		fmt.Print("\033[H\033[2J")

	default:
		fmt.Printf("Unknown command: %s\n", parts[0])
		fmt.Println("Type '.help' for available commands.")
	}
	return false
}

func showTableSchema(name string, eng *executor.Engine) {
	summary, ok := eng.TableSchema(name)
	if !ok {
		fmt.Printf("Table '%s' not found.\n", name)
		return
	}

	fmt.Printf("CREATE TABLE %s (\n", name)
	for i, col := range summary.Columns {
		suffix := ""
		if col.PrimaryKey {
			suffix = " PRIMARY KEY"
		} else if col.NotNull {
			suffix = " NOT NULL"
		}
		comma := ","
		if i == len(summary.Columns)-1 {
			comma = ""
		}
		fmt.Printf("  %s %s%s%s\n", col.Name, col.Type, suffix, comma)
	}
	fmt.Println(");")
}

// executeSQL parses and executes a SQL statement against the engine.
func executeSQL(input string, eng *executor.Engine) {
	lex := lexer.New(input)
	p := parser.New(lex)
	stmt, err := p.Parse()
	if err != nil {
		fmt.Printf("Parse error: %v\n", err)
		return
	}
	if stmt == nil {
		fmt.Println("Error: could not parse statement")
		return
	}

	result, err := eng.Execute(stmt)
	if err != nil {
		fmt.Printf("Execution error: %v\n", err)
		return
	}
	fmt.Print(result.String())
	if !strings.HasSuffix(result.String(), "\n") {
		fmt.Println()
	}
}
