package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/robfig/cron/v3"

	"reccal/internal/calendar"
	"reccal/internal/config"
	"reccal/internal/ics"
	appLog "reccal/internal/log"
	"reccal/internal/model"
	"reccal/internal/recurrence"
	"reccal/internal/store"
	"reccal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	syncOnce   bool
	start      string
	end        string
}

func main() {
	flags := parseFlags()
	if err := run(flags, os.Stdout); err != nil {
		appLog.Error("reccal failed", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Sync()
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional .env file with RECCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print expanded occurrences as JSON and exit")
	flag.BoolVar(&cfg.syncOnce, "sync", false, "Run one subscription sync, print the reports and exit")
	flag.StringVar(&cfg.start, "start", "", "Window start for -once (YYYY-MM-DD, default today)")
	flag.StringVar(&cfg.end, "end", "", "Window end for -once, inclusive (YYYY-MM-DD, default start+30d)")

	flag.Parse()
	return cfg
}

func run(flags flagConfig, stdout io.Writer) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if err := conf.ApplyEnv(flags.envFile); err != nil {
		return err
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// Logs go to stderr, so -once and -sync keep stdout clean for JSON.
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("reccal starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"store_path", conf.StorePath,
		"subscriptions", len(conf.Subscriptions),
	)

	st, err := store.OpenFile(conf.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	loc, _ := conf.Location()
	syncer := newSyncer(conf, st, loc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case flags.once:
		return dumpOccurrences(stdout, conf, st.List(), flags.start, flags.end)
	case flags.syncOnce:
		if syncer == nil {
			return errors.New("no subscriptions configured")
		}
		reports, err := syncer.SyncAll(ctx)
		if encErr := writeJSON(stdout, reports); encErr != nil {
			return encErr
		}
		return err
	}

	var scheduler *cron.Cron
	if syncer != nil {
		scheduler, err = startSyncSchedule(ctx, conf.RefreshCron, loc, syncer)
		if err != nil {
			return err
		}
	}

	srv := web.NewServer(conf, st, syncer)
	err = srv.ListenAndServe(ctx)

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	appLog.Info("reccal exiting")
	return err
}

func newSyncer(conf *config.Config, st store.Store, loc *time.Location) *ics.Syncer {
	if len(conf.Subscriptions) == 0 {
		return nil
	}
	sources := make([]ics.Source, 0, len(conf.Subscriptions))
	for _, sub := range conf.Subscriptions {
		sources = append(sources, ics.Source{ID: sub.ID, Name: sub.Name, URL: sub.URL})
	}
	return ics.NewSyncer(ics.NewFetcher(conf.CacheDir, nil), st, sources, loc)
}

// startSyncSchedule runs a sync right away and then on every tick of spec.
// Overlapping ticks are skipped while a sync is still running.
func startSyncSchedule(ctx context.Context, spec string, loc *time.Location, syncer *ics.Syncer) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	job := func() {
		if _, err := syncer.SyncAll(ctx); err != nil {
			appLog.Error("scheduled sync finished with errors", err)
		}
	}
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, fmt.Errorf("refresh %q: %w", spec, err)
	}
	c.Start()
	go job()
	appLog.Info("subscription sync scheduled", "refresh", spec)
	return c, nil
}

// onceOutput is what -once prints.
type onceOutput struct {
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	Occurrences []model.Occurrence   `json:"occurrences"`
	Warnings    []string             `json:"warnings,omitempty"`
	Truncated   []recurrence.RuleRef `json:"truncated,omitempty"`
}

// dumpOccurrences expands events over [start, end] and writes the result
// as indented JSON. start defaults to today and end to 30 days later; end
// covers its whole day.
func dumpOccurrences(w io.Writer, conf *config.Config, events []model.Event, startArg, endArg string) error {
	loc, err := conf.Location()
	if err != nil {
		return err
	}

	start := calendar.Midnight(time.Now().In(loc))
	if startArg != "" {
		if start, err = time.ParseInLocation(time.DateOnly, startArg, loc); err != nil {
			return fmt.Errorf("-start: %w", err)
		}
	}
	last := start.AddDate(0, 0, 30)
	if endArg != "" {
		if last, err = time.ParseInLocation(time.DateOnly, endArg, loc); err != nil {
			return fmt.Errorf("-end: %w", err)
		}
	}
	if last.Before(start) {
		return errors.New("-end is before -start")
	}
	end := last.AddDate(0, 0, 1).Add(-time.Nanosecond)

	res := recurrence.ExpandAll(events, start, end, conf.ExpandOptions())
	out := onceOutput{
		Start:       start,
		End:         end,
		Occurrences: res.Occurrences,
		Truncated:   res.Truncated,
	}
	if out.Occurrences == nil {
		out.Occurrences = []model.Occurrence{}
	}
	for _, re := range res.RuleErrors {
		out.Warnings = append(out.Warnings, re.Error())
	}
	return writeJSON(w, out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
