// Command financeiro-journal prints the most recent entries of the local
// mutation journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"financeiro/internal/cli"
	"financeiro/internal/storage"
)

func main() {
	cli.LoadEnvFile()

	dbPath := flag.String("db", os.Getenv("JOURNAL_DB_PATH"), "journal database path")
	limit := flag.Int("n", 20, "number of entries to show")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "set JOURNAL_DB_PATH or pass -db")
		os.Exit(2)
	}

	journal, err := storage.NewJournal(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		os.Exit(1)
	}
	defer journal.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := journal.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read journal: %v\n", err)
		os.Exit(1)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tMUTATION\tENTITY\tOUTCOME\tSTALE\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s.%s\t%d\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Kind, r.Operation, r.EntityID, r.Outcome,
			strings.Join(r.Stale, ","), r.Message)
	}
	tw.Flush()

	applied, errA := journal.CountByOutcome(ctx, storage.OutcomeApplied)
	failed, errF := journal.CountByOutcome(ctx, storage.OutcomeFailed)
	if errA == nil && errF == nil {
		fmt.Printf("\n%d applied, %d failed\n", applied, failed)
	}
}
