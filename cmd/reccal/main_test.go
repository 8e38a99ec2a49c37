package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reccal/internal/config"
	"reccal/internal/model"
	"reccal/internal/store"
)

func weekly(start time.Time) model.Event {
	return model.Recurring(
		model.BaseEvent{Title: "Standup", StartDate: start, EndDate: start.Add(30 * time.Minute)},
		model.Schedule{
			Inclusion: []model.InclusionRule{{Frequency: model.FrequencyWeekly, Limit: mo.Some(4)}},
			Exclusion: []model.ExclusionRule{{Date: start.AddDate(0, 0, 7)}},
		},
	)
}

func TestDumpOccurrences(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	events := []model.Event{
		weekly(start),
		model.Recurring(model.BaseEvent{Title: "Bad", StartDate: start, EndDate: start},
			model.Schedule{Inclusion: []model.InclusionRule{{Frequency: "FORTNIGHTLY"}}}),
	}

	var buf bytes.Buffer
	require.NoError(t, dumpOccurrences(&buf, cfg, events, "2024-01-02", "2024-01-31"))

	var out onceOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	// Jan 8 is excluded; the masters fall before the window.
	var days []int
	for _, o := range out.Occurrences {
		days = append(days, o.StartDate.Day())
	}
	assert.Equal(t, []int{15, 22}, days)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "FORTNIGHTLY")
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), out.End.UTC())
}

func TestDumpOccurrencesRejectsBadWindow(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	var buf bytes.Buffer
	assert.Error(t, dumpOccurrences(&buf, cfg, nil, "yesterday", ""))
	assert.Error(t, dumpOccurrences(&buf, cfg, nil, "2024-02-01", "2024-01-01"))
	assert.Zero(t, buf.Len())
}

func TestRunOnce(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "events.json")
	cfgPath := filepath.Join(dir, "config.yaml")

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.StorePath = storePath
	cfg.CacheDir = filepath.Join(dir, "cache")
	require.NoError(t, cfg.Save(cfgPath))

	st, err := store.OpenFile(storePath)
	require.NoError(t, err)
	_, err = st.Add(weekly(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	var buf bytes.Buffer
	err = run(flagConfig{
		configPath: cfgPath,
		envFile:    filepath.Join(dir, "missing.env"),
		once:       true,
		start:      "2024-01-01",
		end:        "2024-01-31",
	}, &buf)
	require.NoError(t, err)

	var out onceOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Len(t, out.Occurrences, 3, "master, Jan 15 and Jan 22")
}

func TestRunSyncWithoutSubscriptions(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := config.DefaultConfig()
	cfg.StorePath = filepath.Join(dir, "events.json")
	require.NoError(t, cfg.Save(cfgPath))

	err := run(flagConfig{configPath: cfgPath, envFile: filepath.Join(dir, "none.env"), syncOnce: true}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no subscriptions")

	_, statErr := os.Stat(cfg.StorePath)
	assert.True(t, os.IsNotExist(statErr), "nothing is written without mutations")
}

func TestNewSyncer(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	assert.Nil(t, newSyncer(cfg, store.NewMemory(), time.UTC))

	cfg.Subscriptions = []config.SubscriptionConfig{{ID: "work", URL: "https://example.com/work.ics"}}
	assert.NotNil(t, newSyncer(cfg, store.NewMemory(), time.UTC))
}
