package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/facebookgo/flagenv"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"

	"github.com/TecharoHQ/powhash"
	"github.com/TecharoHQ/powhash/lib/binding"
	"github.com/TecharoHQ/powhash/lib/digest"
	"github.com/TecharoHQ/powhash/lib/dispatch"
)

var (
	fastFlag     = flag.Bool("fast", false, "use the fast variant instead of the memory-hard one")
	asyncFlag    = flag.Bool("async", false, "hash inputs in parallel on a background worker pool")
	workers      = flag.Int("workers", 0, "number of background workers for -async, 0 means one per CPU")
	fastAlg      = flag.String("fast-algorithm", digest.DefaultFast, "algorithm behind the fast variant")
	fullAlg      = flag.String("full-algorithm", digest.DefaultFull, "algorithm behind the full variant")
	outputFormat = flag.String("format", "text", "output format: text, json or yaml")
	listFlag     = flag.Bool("list", false, "list the available algorithms and exit")
	versionFlag  = flag.Bool("version", false, "print powhash version")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s [options] [file ...]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nWith no file, or when file is -, read standard input.")
		fmt.Fprintln(os.Stderr, "\nExamples:")
		fmt.Fprintln(os.Stderr, "  # Memory-hard digest of a block header")
		fmt.Fprintln(os.Stderr, "  powhash header.bin")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "  # Fast digests of many files at once")
		fmt.Fprintln(os.Stderr, "  powhash -fast -async -format json *.bin")
		os.Exit(2)
	}
}

// Result is one line of output.
type Result struct {
	Name      string         `json:"name"`
	Variant   digest.Variant `json:"variant"`
	Algorithm string         `json:"algorithm"`
	Digest    digest.Digest  `json:"digest"`
}

type options struct {
	fast    bool
	async   bool
	workers int
}

// readInput reads a named file, or stdin for "-". Stdin is read once; every
// "-" on the command line gets the same bytes.
func readInput(name string, stdin func() ([]byte, error)) ([]byte, error) {
	if name == "-" {
		return stdin()
	}
	return os.ReadFile(name)
}

// hashInputs hashes every named input. Results come back in the order of
// names whether or not the work ran in parallel.
func hashInputs(ctx context.Context, e *digest.Engine, opts options, names []string, stdin io.Reader) ([]Result, error) {
	readStdin := sync.OnceValues(func() ([]byte, error) {
		return io.ReadAll(stdin)
	})

	v := digest.VariantOf(opts.fast)
	results := make([]Result, len(names))
	for i, name := range names {
		results[i] = Result{Name: name, Variant: v, Algorithm: e.Algorithm(v)}
	}

	if !opts.async {
		b := binding.New(e, nil)

		for i, name := range names {
			data, err := readInput(name, readStdin)
			if err != nil {
				return nil, err
			}

			if results[i].Digest, err = b.Hash(data, opts.fast); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}

		return results, nil
	}

	d := dispatch.New(dispatch.Options{Workers: opts.workers, Engine: e})
	defer d.Close()
	b := binding.New(e, d)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, d.Stats().Workers) * 2)

	for i, name := range names {
		g.Go(func() error {
			data, err := readInput(name, readStdin)
			if err != nil {
				return err
			}

			fut := dispatch.NewFuture()
			if err := b.HashAsync(data, opts.fast, fut); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			results[i].Digest, err = fut.Wait(gCtx)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func writeResults(w io.Writer, format string, results []Result) error {
	switch format {
	case "text":
		for _, r := range results {
			if _, err := fmt.Fprintf(w, "%s  %s\n", r.Digest, r.Name); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "yaml":
		out, err := yaml.Marshal(results)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format %q, use text, json or yaml", format)
	}
}

func listAlgorithms(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMEMORY-HARD\tDEFAULT")
	for _, name := range digest.Algorithms() {
		alg, _ := digest.Get(name)
		def := ""
		switch name {
		case digest.DefaultFast:
			def = "fast"
		case digest.DefaultFull:
			def = "full"
		}
		fmt.Fprintf(tw, "%s\t%v\t%s\n", name, alg.MemoryHard, def)
	}
	return tw.Flush()
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("powhash", powhash.Version)
		return
	}

	if *listFlag {
		if err := listAlgorithms(os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	switch strings.ToLower(*outputFormat) {
	case "text", "json", "yaml":
	default:
		flag.Usage()
	}

	e, err := digest.New(*fastAlg, *fullAlg)
	if err != nil {
		log.Fatalf("can't build digest engine: %v", err)
	}

	names := flag.Args()
	if len(names) == 0 {
		names = []string{"-"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := hashInputs(ctx, e, options{fast: *fastFlag, async: *asyncFlag, workers: *workers}, names, os.Stdin)
	if err != nil {
		log.Fatal(err)
	}

	if err := writeResults(os.Stdout, strings.ToLower(*outputFormat), results); err != nil {
		log.Fatal(err)
	}
}
