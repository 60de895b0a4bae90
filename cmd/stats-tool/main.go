package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"cachestats/internal/config"
	"cachestats/internal/report"
	"cachestats/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to config.json/config.yaml")
	redisAddr := flag.String("redis", "", "Redis address, overrides the config")
	prefix := flag.String("prefix", "", "Redis key prefix, overrides the config")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  stats-tool [flags] list")
		fmt.Fprintln(os.Stderr, "  stats-tool [flags] show <cache>")
		flag.PrintDefaults()
	}
	flag.Parse()

	opts, err := storeOptions(*configPath, *redisAddr, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	s, err := store.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, s, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("unknown command")

type snapshotReader interface {
	Load(ctx context.Context, name string) (*store.Record, error)
	List(ctx context.Context) ([]*store.Record, error)
}

func storeOptions(configPath, redisAddr, prefix string) (store.Options, error) {
	opts := store.Options{RedisAddr: redisAddr, RedisPrefix: prefix}
	if redisAddr != "" && prefix != "" {
		return opts, nil
	}
	cfg, _, err := config.Load(configPath)
	if err != nil {
		if redisAddr != "" {
			return opts, nil
		}
		return opts, err
	}
	if opts.RedisAddr == "" {
		opts.RedisAddr = cfg.RedisAddr
		opts.RedisPassword = cfg.RedisPassword
		opts.RedisDB = cfg.RedisDB
	}
	if opts.RedisPrefix == "" {
		opts.RedisPrefix = cfg.RedisPrefix
	}
	return opts, nil
}

func run(ctx context.Context, s snapshotReader, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "list":
		recs, err := s.List(ctx)
		if err != nil {
			return err
		}
		printList(out, recs)
		return nil
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("%w: show needs a cache name", errUsage)
		}
		rec, err := s.Load(ctx, args[1])
		if err != nil {
			return fmt.Errorf("load %s: %w", args[1], err)
		}
		printRecord(out, rec)
		return nil
	default:
		return fmt.Errorf("%w: %s", errUsage, args[0])
	}
}

func printList(out io.Writer, recs []*store.Record) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CACHE\tACCESSES\tHIT RATIO\tFLUSHES\tSAVED")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%d\t%s\n",
			rec.Name,
			humanize.Comma(rec.Snapshot.Totals().Accesses()),
			rec.Ratios.Hit*100,
			rec.Snapshot.FlushCount,
			humanize.Time(rec.SavedAt),
		)
	}
	tw.Flush()
}

func printRecord(out io.Writer, rec *store.Record) {
	fmt.Fprintf(out, "%s (tracker #%d, saved %s)\n", rec.Name, rec.Tracker, humanize.Time(rec.SavedAt))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, row := range report.Rows(rec.Snapshot) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Label, row.Value, row.Details)
	}
	tw.Flush()
}
