package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/snatchdl/snatch/internal/httpexec"
	"github.com/snatchdl/snatch/pkg/logger"
	"github.com/snatchdl/snatch/pkg/snatchlib"
)

var (
	maxConcurrent int
	rateLimit     string
	priorityName  string
	maxRetries    int
	outDir        string
	startAt       string
	verbose       bool

	getFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "max-concurrent, n",
			Usage:       "maximum number of simultaneous downloads",
			Value:       snatchlib.DefMaxConcurrent,
			Destination: &maxConcurrent,
		},
		cli.StringFlag{
			Name:        "rate, r",
			Usage:       "global bandwidth cap (e.g. 512KB, 1.5MB); 0 = unlimited",
			Value:       "0",
			Destination: &rateLimit,
		},
		cli.StringFlag{
			Name:        "priority, p",
			Usage:       "dispatch priority: urgent, high, normal, low, background",
			Value:       "normal",
			Destination: &priorityName,
		},
		cli.IntFlag{
			Name:        "retries",
			Usage:       "retry attempts per download",
			Value:       snatchlib.DefMaxRetries,
			Destination: &maxRetries,
		},
		cli.StringFlag{
			Name:        "out, o",
			Usage:       "output directory",
			Value:       ".",
			Destination: &outDir,
		},
		cli.StringFlag{
			Name:        "at",
			Usage:       "defer start until the given RFC3339 time",
			Destination: &startAt,
		},
		cli.BoolFlag{
			Name:        "verbose, V",
			Usage:       "log scheduler activity to stderr",
			Destination: &verbose,
		},
	}
)

func parsePriority(s string) (snatchlib.Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "urgent":
		return snatchlib.PriorityUrgent, nil
	case "high":
		return snatchlib.PriorityHigh, nil
	case "", "normal":
		return snatchlib.PriorityNormal, nil
	case "low":
		return snatchlib.PriorityLow, nil
	case "background":
		return snatchlib.PriorityBackground, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

func get(ctx *cli.Context) error {
	urls := ctx.Args()
	if len(urls) == 0 {
		return errors.New("no url provided")
	}

	rate, err := snatchlib.ParseRate(rateLimit)
	if err != nil {
		return err
	}
	priority, err := parsePriority(priorityName)
	if err != nil {
		return err
	}
	var scheduledAt time.Time
	if startAt != "" {
		scheduledAt, err = time.Parse(time.RFC3339, startAt)
		if err != nil {
			return fmt.Errorf("invalid --at time: %w", err)
		}
	}

	var lg logger.Logger = logger.NewNopLogger()
	if verbose {
		lg = logger.NewStandardLogger(log.New(os.Stderr, "snatch: ", log.LstdFlags))
	}

	exec := httpexec.New(&httpexec.Config{
		Dir:    outDir,
		Logger: lg,
	})
	retry := snatchlib.DefaultRetryPolicy()
	retry.MaxRetries = maxRetries
	sched := snatchlib.New(exec, &snatchlib.Config{
		MaxConcurrent: maxConcurrent,
		TickInterval:  200 * time.Millisecond,
		BandwidthCap:  rate,
		Retry:         retry,
		Logger:        lg,
	})

	progress := mpb.New(mpb.WithWidth(64))
	var (
		mu   sync.Mutex
		bars = make(map[string]*mpb.Bar)
	)
	done := make(chan snatchlib.TaskSnapshot, len(urls))

	sched.On(snatchlib.EventStarted, func(snap snatchlib.TaskSnapshot) {
		name := displayName(snap)
		bar := progress.New(0,
			mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			),
			mpb.AppendDecorators(
				decor.AverageSpeed(decor.SizeB1024(0), "% .2f"),
			),
		)
		mu.Lock()
		bars[snap.Id] = bar
		mu.Unlock()
	})
	sched.On(snatchlib.EventProgress, func(snap snatchlib.TaskSnapshot) {
		mu.Lock()
		bar := bars[snap.Id]
		mu.Unlock()
		if bar == nil {
			return
		}
		if snap.EstimatedSize > 0 {
			bar.SetTotal(snap.EstimatedSize, false)
		}
		bar.SetCurrent(snap.Downloaded)
	})
	sched.On(snatchlib.EventCompleted, func(snap snatchlib.TaskSnapshot) {
		mu.Lock()
		bar := bars[snap.Id]
		mu.Unlock()
		if bar != nil {
			bar.SetTotal(snap.Downloaded, true)
		}
		done <- snap
	})
	sched.On(snatchlib.EventFailed, func(snap snatchlib.TaskSnapshot) {
		mu.Lock()
		bar := bars[snap.Id]
		mu.Unlock()
		if bar != nil {
			bar.Abort(false)
		}
		done <- snap
	})

	for _, u := range urls {
		sched.Schedule(strings.TrimSpace(u), nil, priority, scheduledAt)
	}
	sched.Start()
	defer sched.Stop()

	var result *multierror.Error
	var total int64
	for range urls {
		snap := <-done
		if snap.Status == snatchlib.StatusFailed {
			result = multierror.Append(result, fmt.Errorf("%s: %s", snap.Url, snap.ErrorMessage))
			continue
		}
		total += snap.Downloaded
	}
	progress.Wait()

	if total > 0 {
		fmt.Printf("downloaded %s\n", humanize.IBytes(uint64(total)))
	}
	return result.ErrorOrNil()
}

// displayName is the bar label: the filename option, the URL path tail,
// or the whole URL.
func displayName(snap snatchlib.TaskSnapshot) string {
	if name := snap.Options[httpexec.OptFilename]; name != "" {
		return name
	}
	if i := strings.LastIndexByte(snap.Url, '/'); i >= 0 && i+1 < len(snap.Url) {
		return snap.Url[i+1:]
	}
	return snap.Url
}
