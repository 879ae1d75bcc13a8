package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	json "github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/linereader"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/pairs"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/record"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/shard"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/logger"
)

const usage = `usage: shardctl <command> [flags]

commands:
  stat   print the shard index of a collection directory
  pack   split a JSON-lines or id<TAB>text file into compressed shards
  pairs  summarize a training pair file
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	logger.Setup("warn", "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "stat":
		err = runStat(ctx, os.Args[2:])
	case "pack":
		err = runPack(ctx, os.Args[2:])
	case "pairs":
		err = runPairs(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "shardctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func runStat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stat", flag.ExitOnError)
	dir := fs.String("dir", ".", "collection directory")
	suffix := fs.String("suffix", ".json.zstd", "shard file suffix")
	concurrency := fs.Int("concurrency", 4, "shards counted in parallel")
	asJSON := fs.Bool("json", false, "print entries as JSON")
	fs.Parse(args)

	store := storage.NewLocal(*dir)
	names, err := shard.Discover(ctx, store, ".", *suffix)
	if err != nil {
		return err
	}
	idx, err := shard.Build(ctx, linereader.NewReader(store), names, shard.Options{Concurrency: *concurrency})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"shards":  idx.Entries(),
			"records": idx.Total(),
		})
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHARD\tSTART\tEND\tLINES")
	for _, e := range idx.Entries() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", e.Name, e.Start, e.End, e.Lines())
	}
	fmt.Fprintf(tw, "total\t\t\t%d\n", idx.Total())
	return tw.Flush()
}

func runPack(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	in := fs.String("in", "", "input file (- for stdin)")
	format := fs.String("format", "jsonl", "input format: jsonl or tsv (id<TAB>text)")
	dir := fs.String("dir", "", "output collection directory")
	prefix := fs.String("prefix", "part", "shard name prefix")
	codecName := fs.String("codec", "zstd", "shard codec: zstd, gzip, lz4 or plain")
	linesPerShard := fs.Int("lines-per-shard", 100000, "maximum lines per shard")
	fs.Parse(args)

	if *in == "" || *dir == "" {
		return fmt.Errorf("-in and -dir are required")
	}
	codec, ok := linereader.CodecByName(*codecName)
	if !ok {
		return fmt.Errorf("unknown codec %q", *codecName)
	}
	var src io.Reader = os.Stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	switch *format {
	case "jsonl":
	case "tsv":
		lines, err := tsvToJSONLines(ctx, src)
		if err != nil {
			return err
		}
		src = lines
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	paths, err := linereader.NewWriter(*dir, ".json"+codec.Suffix()).Pack(ctx, src, *prefix, *linesPerShard)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	fmt.Fprintf(os.Stderr, "wrote %d %s shards\n", len(paths), codec.Name())
	return nil
}

// tsvToJSONLines re-encodes an id<TAB>text file as one JSON record per line.
func tsvToJSONLines(ctx context.Context, r io.Reader) (io.Reader, error) {
	m, err := collection.LoadTSV(r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for i := range m.Size() {
		rec, err := m.Get(ctx, i)
		if err != nil {
			return nil, err
		}
		line, err := record.Encode(rec)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return &buf, nil
}

func runPairs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pairs", flag.ExitOnError)
	root := fs.String("root", ".", "directory the file path is relative to")
	file := fs.String("file", "", "pair file (3 or 5 tab-separated columns)")
	head := fs.Int("head", 5, "rows to print")
	asJSON := fs.Bool("json", false, "print rows as JSON")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}
	d, err := pairs.LoadFile(ctx, storage.NewLocal(*root), *file)
	if err != nil {
		return err
	}
	n := min(*head, d.Size())
	rows := make([]pairs.Row, 0, n)
	for i := range n {
		row, err := d.Get(i)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"rows":   d.Size(),
			"scored": d.HasScores(),
			"head":   rows,
		})
	}
	fmt.Printf("%d rows, scored=%t\n", d.Size(), d.HasScores())
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tPOSITIVE\tNEGATIVE\tPOS_SCORE\tNEG_SCORE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\n",
			truncate(r.Query, 40), truncate(r.Positive, 40), truncate(r.Negative, 40),
			r.PositiveScore, r.NegativeScore)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
