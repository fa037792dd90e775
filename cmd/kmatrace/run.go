package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"github.com/vkngwrapper/kma/kma"
	"github.com/vkngwrapper/kma/memutils"
	"github.com/vkngwrapper/kma/page"
	"github.com/vkngwrapper/kma/trace"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "replay traces against a fresh allocator each",
	ArgsUsage: "TRACE...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "algorithm",
			Value: "buddy",
			Usage: "allocation algorithm: buddy, p2fl or dummy",
		},
		&cli.IntFlag{
			Name:  "page-size",
			Value: page.DefaultPageSize,
			Usage: "size of every page in bytes",
		},
		&cli.IntFlag{
			Name:  "max-pages",
			Value: page.DefaultMaxPages,
			Usage: "number of pages available to each trace",
		},
		&cli.IntFlag{
			Name:  "min-block",
			Value: kma.DefaultMinBlockSize,
			Usage: "smallest block size in bytes",
		},
		&cli.BoolFlag{
			Name:  "mmap",
			Usage: "back pages with an anonymous memory mapping",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "write per-command memory use to this file (single trace only)",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "show a progress bar for each trace",
		},
		&cli.IntFlag{
			Name:  "jobs",
			Value: 4,
			Usage: "number of traces to replay at once",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "log page traffic",
		},
		&cli.BoolFlag{
			Name:  "stats",
			Usage: "print the allocator's detailed statistics when a trace fails",
		},
	},
	Action: runTraces,
}

type runConfig struct {
	algorithm    kma.Algorithm
	pageSize     int
	maxPages     int
	minBlockSize int
	mapped       bool
	output       string
	progress     bool
	stats        bool
}

type traceReport struct {
	path       string
	pageStats  page.Stats
	wasteRatio float64
	failure    error
	statsJSON  string
	// peak is the allocator's state when it held the most pages
	peak memutils.DetailedStatistics
}

func runTraces(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one trace file is required")
	}
	if c.String("output") != "" && len(paths) > 1 {
		return errors.New("--output can only be used with a single trace")
	}

	algorithm, err := kma.ParseAlgorithm(c.String("algorithm"))
	if err != nil {
		return err
	}

	config := runConfig{
		algorithm:    algorithm,
		pageSize:     c.Int("page-size"),
		maxPages:     c.Int("max-pages"),
		minBlockSize: c.Int("min-block"),
		mapped:       c.Bool("mmap"),
		output:       c.String("output"),
		progress:     c.Bool("progress"),
		stats:        c.Bool("stats"),
	}
	logger := newLogger(c.App.ErrWriter, c.Bool("verbose"))

	jobs := c.Int("jobs")
	if jobs < 1 {
		jobs = 1
	}

	reports := make([]traceReport, len(paths))
	group, ctx := errgroup.WithContext(c.Context)
	group.SetLimit(jobs)
	for i, path := range paths {
		i, path := i, path
		group.Go(func() error {
			report, err := replayFile(ctx, logger.With(slog.String("trace", path)), config, path)
			if err != nil {
				return errors.Wrapf(err, "failed to replay %s", path)
			}
			reports[i] = report
			return nil
		})
	}

	err = group.Wait()
	if err != nil {
		return err
	}

	printer := message.NewPrinter(language.English)
	failed := 0
	var combined memutils.DetailedStatistics
	combined.Clear()
	for i := range reports {
		report := &reports[i]
		combined.AddDetailedStatistics(&report.peak)

		printer.Fprintf(c.App.Writer, "%s: Page Requested/Freed/In Use: %5d/%5d/%5d\n",
			report.path, report.pageStats.Requested, report.pageStats.Freed, report.pageStats.InUse)
		printer.Fprintf(c.App.Writer, "%s: Average waste ratio: %f\n", report.path, report.wasteRatio)

		if report.failure != nil {
			failed++
			printer.Fprintf(c.App.Writer, "%s: ERROR: %v\n", report.path, report.failure)
			printer.Fprintf(c.App.Writer, "%s: Test: FAILED\n", report.path)
			if report.statsJSON != "" {
				printer.Fprintf(c.App.Writer, "%s\n", report.statsJSON)
			}
			continue
		}

		printer.Fprintf(c.App.Writer, "%s: Test: PASS\n", report.path)
	}

	printer.Fprintf(c.App.Writer, "All traces: Peak pages %d (%d bytes), allocations %d (%d bytes), largest free range %d bytes\n",
		combined.PageCount, combined.PageBytes, combined.AllocationCount, combined.AllocationBytes, combined.FreeRangeSizeMax)

	if failed > 0 {
		return errors.New(printer.Sprintf("%d of %d traces failed", failed, len(reports)))
	}
	return nil
}

func replayFile(ctx context.Context, logger *slog.Logger, config runConfig, path string) (traceReport, error) {
	report := traceReport{path: path}

	file, err := os.Open(path)
	if err != nil {
		return report, err
	}
	parsed, err := trace.Parse(file)
	closeErr := file.Close()
	if err != nil {
		return report, err
	}
	if closeErr != nil {
		return report, closeErr
	}

	// Each trace gets its own pool and allocator on a single goroutine
	poolFlags := page.PoolCreateExternallySynchronized
	if config.mapped {
		poolFlags |= page.PoolCreateMappedArena
	}

	pool, err := page.NewPool(logger, page.PoolCreateOptions{
		Flags:    poolFlags,
		PageSize: config.pageSize,
		MaxPages: config.maxPages,
	})
	if err != nil {
		return report, err
	}

	allocator, err := kma.New(logger, pool, kma.CreateOptions{
		Flags:        kma.AllocatorCreateExternallySynchronized,
		Algorithm:    config.algorithm,
		MinBlockSize: config.minBlockSize,
	})
	if err != nil {
		return report, err
	}

	var bar *progressbar.ProgressBar
	if config.progress {
		bar = progressbar.NewOptions(len(parsed.Commands),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(filepath.Base(path)),
			progressbar.OptionShowCount(),
		)
		defer func() { _ = bar.Finish() }()
	}

	report.peak.Clear()
	peakPages := 0
	var peakErr error
	options := trace.RunOptions{
		Logger:        logger,
		RecordSamples: config.output != "",
		OnCommand: func(int) {
			if bar != nil {
				_ = bar.Add(1)
			}

			inUse := pool.Stats().InUse
			if inUse > peakPages && peakErr == nil {
				peakPages = inUse
				report.peak.Clear()
				peakErr = allocator.AddDetailedStatistics(&report.peak)
			}
		},
	}

	result, err := trace.Run(ctx, allocator, pool, parsed, options)
	if err != nil {
		return report, err
	}
	if peakErr != nil {
		return report, errors.Wrap(peakErr, "failed to collect allocator statistics")
	}

	report.pageStats = result.PageStats
	report.wasteRatio = result.WasteRatio
	report.failure = result.Check()

	if report.failure != nil && config.stats {
		report.statsJSON = allocator.BuildStatsString(true)
	}

	if config.output != "" {
		err = writeSamples(config.output, result.Samples)
		if err != nil {
			return report, err
		}
	}

	// Leaks have already been reported through the result
	if report.failure == nil {
		err = allocator.Destroy()
		if err == nil {
			err = pool.Destroy()
		}
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

func writeSamples(path string, samples []trace.Sample) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	err = trace.WriteSamples(file, samples)
	closeErr := file.Close()
	if err != nil {
		return err
	}
	return closeErr
}
