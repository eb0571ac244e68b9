// Command orchestratorctl is the orchestration middleware's operator CLI.
// It lets an operator inspect the traceability ledger, the intent map, and
// the shared lessons document, and record a new lesson by hand, without
// standing up the full orchestratord service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/orchestra-core/ledger/internal/intentmap"
	"github.com/orchestra-core/ledger/internal/ledger"
	"github.com/orchestra-core/ledger/internal/ledgerindex"
	"github.com/orchestra-core/ledger/internal/lessons"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "ledger":
		err = runLedger(os.Args[2:])
	case "intent-map":
		err = runIntentMap(os.Args[2:])
	case "lessons":
		err = runLessons(os.Args[2:])
	case "rebuild-index":
		err = runRebuildIndex(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "orchestratorctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: orchestratorctl <command> [flags]

commands:
  ledger         tail the traceability ledger for a workspace
  intent-map     show which files an intent owns
  lessons        list or record shared lessons
  rebuild-index  rebuild the ledger query index from the ledger file`)
}

func runLedger(args []string) error {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	workspaceRoot := fs.String("workspace", ".", "workspace root")
	limit := fs.Int("limit", 20, "maximum number of entries to show, most recent last (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries, err := ledger.NewWriter(nil).Read(*workspaceRoot)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	if *limit > 0 && len(entries) > *limit {
		entries = entries[len(entries)-*limit:]
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
	}
	return nil
}

func runIntentMap(args []string) error {
	fs := flag.NewFlagSet("intent-map", flag.ExitOnError)
	workspaceRoot := fs.String("workspace", ".", "workspace root")
	intentID := fs.String("intent", "", "intent id to show files for (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *intentID == "" {
		return fmt.Errorf("-intent is required")
	}

	files, err := intentmap.Files(*workspaceRoot, *intentID)
	if err != nil {
		return fmt.Errorf("read intent map: %w", err)
	}

	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}

func runLessons(args []string) error {
	fs := flag.NewFlagSet("lessons", flag.ExitOnError)
	workspaceRoot := fs.String("workspace", ".", "workspace root")
	category := fs.String("category", "", "category for -record (required with -record)")
	body := fs.String("record", "", "record a new lesson with this body under -category")
	search := fs.String("search", "", "keyword search across recorded lessons")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := lessons.New()

	if *body != "" {
		if *category == "" {
			return fmt.Errorf("-category is required with -record")
		}
		recorded, err := store.Record(*workspaceRoot, lessons.Category(*category), *body)
		if err != nil {
			return fmt.Errorf("record lesson: %w", err)
		}
		if recorded {
			fmt.Println("lesson recorded")
		} else {
			fmt.Println("lesson skipped: duplicate of a recent entry")
		}
		return nil
	}

	if *search != "" {
		results, err := store.Search(*workspaceRoot, strings.Fields(*search))
		if err != nil {
			return fmt.Errorf("search lessons: %w", err)
		}
		for _, s := range results {
			fmt.Printf("[%s] %s (score %d)\n%s\n\n", s.Category, s.Timestamp, s.Score, s.Body)
		}
		return nil
	}

	sections, err := store.List(*workspaceRoot)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}
	for _, s := range sections {
		fmt.Printf("[%s] %s\n%s\n\n", s.Category, s.Timestamp, s.Body)
	}
	return nil
}

func runRebuildIndex(args []string) error {
	fs := flag.NewFlagSet("rebuild-index", flag.ExitOnError)
	workspaceRoot := fs.String("workspace", ".", "workspace root")
	dsn := fs.String("dsn", "", "ledger index DSN (sqlite path, or postgres:// connection string); defaults to <workspace>/.orchestration/ledger_index.db")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" {
		*dsn = *workspaceRoot + "/.orchestration/ledger_index.db"
	}

	entries, err := ledger.NewWriter(nil).Read(*workspaceRoot)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	var index ledgerindex.Backend
	if len(*dsn) > len("postgres://") && (*dsn)[:len("postgres://")] == "postgres://" {
		index, err = ledgerindex.OpenPostgres(context.Background(), *dsn, 100, 5*time.Second, nil)
	} else {
		index, err = ledgerindex.OpenSQLite(*dsn)
	}
	if err != nil {
		return fmt.Errorf("open ledger index: %w", err)
	}
	defer index.Close()

	if err := index.Rebuild(context.Background(), entries); err != nil {
		return fmt.Errorf("rebuild ledger index: %w", err)
	}

	fmt.Printf("rebuilt index from %d ledger entries\n", len(entries))
	return nil
}
