package scheduler

import (
	"context"
	"testing"
	"time"

	"investorradar/app"
	"investorradar/domain/catalog"
	"investorradar/internal/config"
	"investorradar/internal/jobs"
	"investorradar/internal/testkit"
	"investorradar/ports"
)

type schedulerFixture struct {
	sched    *Scheduler
	runner   *jobs.Runner
	client   *testkit.ScriptedCatalogClient
	datasets *testkit.MemoryDatasetRepository
}

func newSchedulerFixture(cfg config.SchedulerConfig) *schedulerFixture {
	f := &schedulerFixture{
		runner:   jobs.NewRunner(nil),
		client:   testkit.NewScriptedCatalogClient(),
		datasets: testkit.NewMemoryDatasetRepository(),
	}

	appCfg := &config.Config{
		Catalog: config.CatalogConfig{BaseURL: "https://data.example.gov"},
		Discovery: config.DiscoveryConfig{
			Policy:     catalog.DefaultTerminationPolicy(),
			PageSize:   10,
			ProbeTerms: []string{"data"},
			Categories: []string{"economy"},
		},
		Sync: config.SyncConfig{Workers: 2, DetailTimeout: time.Second},
	}

	snapshots := testkit.NewMemorySnapshotRepository()
	publisher := testkit.NewCapturingPublisher()
	discovery := app.NewDiscoveryService(f.client, f.datasets, appCfg.Discovery, nil)
	syncSvc := app.NewSyncService(f.client, f.datasets, snapshots, publisher, appCfg.Sync, nil)
	workflow := app.NewWorkflowService(discovery, syncSvc, nil, f.datasets, f.client, appCfg, nil)

	f.sched = New(workflow, syncSvc, f.runner, cfg, nil)
	return f
}

// scriptOneDataset makes every probe surface one dataset and gives it a
// syncable detail payload.
func (f *schedulerFixture) scriptOneDataset() {
	f.client.SearchFunc = func(term string, offset, limit int) (*ports.CatalogPage, error) {
		if offset > 0 {
			return &ports.CatalogPage{}, nil
		}
		return &ports.CatalogPage{
			Entries: []catalog.CatalogEntry{{ExternalID: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", Title: "Port Traffic"}},
		}, nil
	}
	f.client.DetailFunc = func(externalID string) (*ports.DatasetDetail, error) {
		return &ports.DatasetDetail{ExternalID: externalID, Title: "Port Traffic", RecordCount: 10}, nil
	}
}

// awaitFinishedJob polls until a job of the given kind completes.
func awaitFinishedJob(t *testing.T, runner *jobs.Runner, kind string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, job := range runner.List() {
			if job.Kind == kind && job.Done() {
				return job
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no finished %q job", kind)
	return jobs.Job{}
}

func TestSchedulerRunsDiscoveryOnInterval(t *testing.T) {
	f := newSchedulerFixture(config.SchedulerConfig{
		Enabled:           true,
		DiscoveryInterval: 30 * time.Millisecond,
		SyncInterval:      time.Hour,
		RunTimeout:        5 * time.Second,
	})
	f.scriptOneDataset()

	f.sched.Start()
	defer f.sched.Stop()

	job := awaitFinishedJob(t, f.runner, "scheduled-discover-and-sync")
	if job.Error != "" {
		t.Fatalf("scheduled run failed: %s", job.Error)
	}
	if job.Phase != "DONE" {
		t.Fatalf("phase %q, want DONE", job.Phase)
	}

	count, err := f.datasets.Count(context.Background(), ports.DatasetFilter{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the discovered dataset to be registered, count=%d", count)
	}
}

func TestSchedulerRunsContentSyncOnInterval(t *testing.T) {
	f := newSchedulerFixture(config.SchedulerConfig{
		Enabled:           true,
		DiscoveryInterval: time.Hour,
		SyncInterval:      30 * time.Millisecond,
		RunTimeout:        5 * time.Second,
	})
	f.scriptOneDataset()
	f.datasets.Seed(catalog.NewFromDiscovery("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", "Port Traffic", "", "transport", "discovery", ""))

	f.sched.Start()
	defer f.sched.Stop()

	job := awaitFinishedJob(t, f.runner, "scheduled-sync-all")
	if job.Error != "" {
		t.Fatalf("scheduled sync failed: %s", job.Error)
	}
}

func TestSchedulerDisabled(t *testing.T) {
	f := newSchedulerFixture(config.SchedulerConfig{Enabled: false})

	f.sched.Start()
	f.sched.Stop()

	ticks, _ := f.sched.Stats()
	if ticks != 0 {
		t.Fatalf("disabled scheduler ticked %d times", ticks)
	}
}

func TestSchedulerSkipsWhileRunLive(t *testing.T) {
	f := newSchedulerFixture(config.SchedulerConfig{
		Enabled:           true,
		DiscoveryInterval: 15 * time.Millisecond,
		SyncInterval:      time.Hour,
		RunTimeout:        5 * time.Second,
	})

	// Hold the gate with a manual run so every tick lands on a live runner.
	release := make(chan struct{})
	if _, err := f.runner.Start("manual", func(ctx context.Context, setPhase func(string)) (interface{}, error) {
		<-release
		return nil, nil
	}); err != nil {
		t.Fatalf("Start manual job: %v", err)
	}

	f.sched.Start()
	time.Sleep(120 * time.Millisecond)
	f.sched.Stop()
	close(release)

	ticks, skipped := f.sched.Stats()
	if ticks == 0 {
		t.Fatal("expected at least one tick")
	}
	if skipped != ticks {
		t.Fatalf("expected every tick skipped, got ticks=%d skipped=%d", ticks, skipped)
	}
}
