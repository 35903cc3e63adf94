// Command ftlsim drives an FTL engine with a synthetic or recorded host write
// workload and reports garbage collection cost for each overprovisioning ratio.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/garethgeorge/goftl/internal/ftl"
	"github.com/garethgeorge/goftl/internal/progress"
	"github.com/garethgeorge/goftl/internal/workload"
	"golang.org/x/sync/errgroup"
)

var defaults = ftl.DefaultConfig()

var (
	opList         = flag.String("op", "7", "Comma separated overprovisioning percentages, one engine per value")
	channels       = flag.Int("channels", defaults.Channels, "Number of channels")
	dies           = flag.Int("dies", defaults.Dies, "Dies per channel")
	planes         = flag.Int("planes", defaults.Planes, "Planes per die")
	blocksPerPlane = flag.Int("blocks", 256, "Erase blocks per plane")
	pagesPerBlock  = flag.Int("pages", 256, "Pages per erase block")
	pageSize       = flag.Int("page-size", defaults.PageSize, "Page size in bytes")
	threshold      = flag.Int("threshold", defaults.FreeBlockThreshold, "Minimum free blocks kept after every write")
	policy         = flag.String("policy", defaults.VictimPolicy.String(), "GC victim policy (fifo or greedy)")
	workloadKind   = flag.String("workload", "uniform", "Host workload (sequential, uniform or hotcold)")
	passes         = flag.Float64("passes", 10, "Host writes to issue, as a multiple of the physical page count")
	seed           = flag.Int64("seed", 1, "Seed for random workloads")
	recordPath     = flag.String("record", "", "Record the generated workload to this trace file (single -op only)")
	replayPath     = flag.String("replay", "", "Replay a recorded trace instead of generating a workload")
	verbose        = flag.Bool("v", false, "Log block rotations and GC cycles")
)

type result struct {
	op          float64
	logicalSize int64
	stats       ftl.Stats
	digest      uint64
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger); err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ops, err := parseOps(*opList)
	if err != nil {
		return err
	}
	if *recordPath != "" && len(ops) != 1 {
		return fmt.Errorf("-record needs exactly one -op value, got %d", len(ops))
	}
	if *recordPath != "" && *replayPath != "" {
		return fmt.Errorf("-record and -replay are mutually exclusive")
	}
	victimPolicy, err := ftl.ParseVictimPolicy(*policy)
	if err != nil {
		return err
	}

	cfg := ftl.Config{
		Channels:           *channels,
		Dies:               *dies,
		Planes:             *planes,
		BlocksPerPlane:     *blocksPerPlane,
		PagesPerBlock:      *pagesPerBlock,
		PageSize:           *pageSize,
		FreeBlockThreshold: *threshold,
		VictimPolicy:       victimPolicy,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	writes := int64(*passes * float64(cfg.TotalPages()))

	results := make([]result, len(ops))
	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	for i, op := range ops {
		eg.Go(func() error {
			res, err := simulate(cfg, op, writes, logger.With("op", op))
			if err != nil {
				return fmt.Errorf("op %v%%: %w", op, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	printResults(results)
	return nil
}

func simulate(cfg ftl.Config, op float64, writes int64, logger *slog.Logger) (result, error) {
	e, err := ftl.New(cfg, op, ftl.WithLogger(logger))
	if err != nil {
		return result{}, err
	}

	gen, err := openGenerator(e.LogicalSize())
	if err != nil {
		return result{}, err
	}

	var rec *recorder
	if *recordPath != "" {
		rec, err = createRecorder(*recordPath, e.LogicalSize())
		if err != nil {
			return result{}, err
		}
		defer rec.abort()
	}

	prog := progress.NewLogBarProgressTracker(logger, 10)
	prog.SetMessage("host writes")
	prog.SetTotal(writes)
	const reportEvery = 1 << 16
	for i := int64(0); i < writes; i++ {
		lba := gen.Next()
		if rec != nil {
			if err := rec.append(lba); err != nil {
				return result{}, err
			}
		}
		if err := e.Write(lba); err != nil {
			prog.SetError(err)
			return result{}, err
		}
		if i%reportEvery == 0 {
			prog.SetDone(i)
		}
	}
	prog.SetDone(writes)
	prog.MarkFinished()

	if rec != nil {
		if err := rec.finish(); err != nil {
			return result{}, err
		}
		logger.Info("recorded trace", "path", *recordPath, "writes", rec.count())
	}
	if err := e.Verify(); err != nil {
		return result{}, fmt.Errorf("verify: %w", err)
	}
	return result{
		op:          op,
		logicalSize: e.LogicalSize(),
		stats:       e.Stats(),
		digest:      e.Digest(),
	}, nil
}

// openGenerator returns the -replay trace if set, otherwise a fresh -workload
// generator. Each engine gets its own generator.
func openGenerator(logicalSize int64) (workload.Generator, error) {
	if *replayPath == "" {
		return workload.New(*workloadKind, logicalSize, *seed)
	}

	f, err := os.Open(*replayPath)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()
	tr, err := workload.NewTraceReader(f)
	if err != nil {
		return nil, err
	}
	defer tr.Close()
	if tr.Header.LogicalSize > logicalSize {
		return nil, fmt.Errorf("trace recorded for %d logical pages, engine has %d", tr.Header.LogicalSize, logicalSize)
	}
	return workload.LoadReplay(tr)
}

func parseOps(s string) ([]float64, error) {
	var ops []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		op, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parse -op value %q: %w", part, err)
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("no -op values given")
	}
	slices.Sort(ops)
	return slices.Compact(ops), nil
}

func printResults(results []result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OP%\tLOGICAL PAGES\tHOST WRITES\tGC WRITES\tGC CYCLES\tERASES\tWA\tDIGEST")
	for _, r := range results {
		fmt.Fprintf(w, "%.2f\t%d\t%d\t%d\t%d\t%d\t%.3f\t%016x\n",
			r.op, r.logicalSize, r.stats.HostWrites, r.stats.GCWrites,
			r.stats.GCCycles, r.stats.Erases, r.stats.WriteAmplification(), r.digest)
	}
	w.Flush()
}
