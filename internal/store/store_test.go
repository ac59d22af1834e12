package store_test

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"mediasuite/internal/agent"
	"mediasuite/internal/orchestrator"
	"mediasuite/internal/protocol"
	"mediasuite/internal/registry"
	"mediasuite/internal/store"
	"mediasuite/internal/testsupport"
)

func TestSaveJobRoundTripsResultsInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := orchestrator.Job{
		ID:            "job-1",
		FileReference: "/media/in.mp4",
		FileKind:      "video/mp4",
		Status:        orchestrator.StatusCompleted,
		CreatedAt:     created,
		CompletedAt:   created.Add(3 * time.Second),
		Results: []orchestrator.AgentResult{
			{AgentID: agent.VideoAgentID, Result: agent.Success(map[string]any{"codec": "h264"}).WithValidation(true)},
			{AgentID: agent.AudioAgentID, Result: agent.Failure("audio-agent crashed: boom").WithValidation(false)},
		},
	}
	if err := st.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	got, err := st.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored job")
	}
	if got.Status != orchestrator.StatusCompleted || got.FileKind != "video/mp4" {
		t.Fatalf("unexpected job %+v", got)
	}
	if !got.CreatedAt.Equal(created) || !got.CompletedAt.Equal(job.CompletedAt) {
		t.Fatalf("timestamps created=%s completed=%s", got.CreatedAt, got.CompletedAt)
	}
	if ids := got.AgentIDs(); !slices.Equal(ids, []string{agent.VideoAgentID, agent.AudioAgentID}) {
		t.Fatalf("result order %v", ids)
	}
	video, _ := got.Result(agent.VideoAgentID)
	if video.StringMetric("codec") != "h264" || !video.Verified() {
		t.Fatalf("unexpected video result %+v", video)
	}
	audio, _ := got.Result(agent.AudioAgentID)
	if audio.Error != "audio-agent crashed: boom" || audio.Validation != agent.ValidationFailed {
		t.Fatalf("unexpected audio result %+v", audio)
	}
}

func TestSaveJobReplacesSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.SaveJob(t, st, "job-2", orchestrator.StatusProcessing)
	job.Results = []orchestrator.AgentResult{{AgentID: "a", Result: agent.Success(nil)}}
	if err := st.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	job.Status = orchestrator.StatusCompleted
	job.CompletedAt = job.CreatedAt.Add(time.Minute)
	job.Results = append(job.Results, orchestrator.AgentResult{AgentID: "b", Result: agent.Success(nil)})
	if err := st.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	got, err := st.GetJob(ctx, "job-2")
	if err != nil || got == nil {
		t.Fatalf("GetJob: %v %v", got, err)
	}
	if got.Status != orchestrator.StatusCompleted || len(got.Results) != 2 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestGetJobMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	got, err := st.GetJob(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestListJobsFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SaveJob(t, st, "a", orchestrator.StatusCompleted)
	testsupport.SaveJob(t, st, "b", orchestrator.StatusError)
	testsupport.SaveJob(t, st, "c", orchestrator.StatusCompleted)

	all, err := st.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}
	completed, err := st.ListJobs(ctx, orchestrator.StatusCompleted)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	var ids []string
	for _, job := range completed {
		ids = append(ids, job.ID)
	}
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"a", "c"}) {
		t.Fatalf("completed ids = %v", ids)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[orchestrator.StatusCompleted] != 2 || stats[orchestrator.StatusError] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestMessagesPersistInOrderAndCascade(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.SaveJob(t, st, "job-3", orchestrator.StatusProcessing)

	p := protocol.New(orchestrator.ParticipantID)
	req := p.CreateMessage("", agent.VideoAgentID, protocol.ActionProcess, map[string]any{"job_id": "job-3"})
	resp := p.CreateMessage(agent.VideoAgentID, orchestrator.ParticipantID, protocol.ActionProcessComplete,
		map[string]any{"job_id": "job-3"}, protocol.WithCorrelationID(req.ID()))
	for _, env := range []protocol.Envelope{req, resp, req} {
		if err := st.AppendMessage(ctx, "job-3", env); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	envs, err := st.Messages(ctx, "job-3")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(envs) != 2 {
		t.Fatalf("duplicate message ids should be stored once, got %d", len(envs))
	}
	if envs[0].ID() != req.ID() || envs[1].Header.CorrelationID != req.ID() {
		t.Fatalf("unexpected order or correlation: %+v", envs)
	}

	removed, err := st.Remove(ctx, "job-3")
	if err != nil || !removed {
		t.Fatalf("Remove: %v %v", removed, err)
	}
	envs, err = st.Messages(ctx, "job-3")
	if err != nil || len(envs) != 0 {
		t.Fatalf("expected messages removed with job, got %d (%v)", len(envs), err)
	}
}

func TestAppendMessageRequiresJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	env := protocol.New("x").CreateMessage("", "y", protocol.ActionProcess, nil)
	if err := st.AppendMessage(context.Background(), "missing", env); err == nil {
		t.Fatal("expected foreign key failure for unknown job")
	}
}

func TestOrchestratorRecordsIntoStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	reg := registry.New()
	ok := func(agent.Config) (agent.Agent, error) {
		return agent.Func(func(context.Context) (agent.Result, error) {
			return agent.Success(map[string]any{"n": 1}), nil
		}), nil
	}
	_ = reg.Register(registry.Descriptor{ID: agent.VideoAgentID, Kind: agent.KindVideo}, ok)
	_ = reg.Register(registry.Descriptor{ID: agent.AudioAgentID, Kind: agent.KindAudio}, ok)
	orch := orchestrator.New(reg, nil, orchestrator.WithRecorder(st))

	jobID, err := orch.ProcessFile(context.Background(), "/media/in.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	stored, err := st.GetJob(context.Background(), jobID)
	if err != nil || stored == nil {
		t.Fatalf("GetJob: %v %v", stored, err)
	}
	if stored.Status != orchestrator.StatusCompleted || len(stored.Results) != 2 {
		t.Fatalf("unexpected stored job %+v", stored)
	}
	envs, err := st.Messages(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(envs) != 5 || envs[4].Action() != protocol.ActionPipelineComplete {
		t.Fatalf("unexpected stored messages: %d", len(envs))
	}
	if log := orch.Log(); !reflect.DeepEqual(envs, log) {
		t.Fatalf("stored messages differ from the protocol log:\n got %#v\nwant %#v", envs, log)
	}
}

func TestListJobsOrdersBySubSecondCreation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	jobs := []struct {
		id     string
		offset time.Duration
	}{
		{"c-third", 120 * time.Millisecond},
		{"a-first", 0},
		{"b-second", 100 * time.Millisecond},
		{"d-fourth", time.Second},
	}
	for _, j := range jobs {
		job := orchestrator.Job{
			ID:            j.id,
			FileReference: "/media/" + j.id + ".mp4",
			Status:        orchestrator.StatusCompleted,
			CreatedAt:     base.Add(j.offset),
			CompletedAt:   base.Add(2 * time.Second),
		}
		if err := st.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob %s: %v", j.id, err)
		}
	}

	listed, err := st.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	var ids []string
	for _, job := range listed {
		ids = append(ids, job.ID)
	}
	want := []string{"a-first", "b-second", "c-third", "d-fourth"}
	if !slices.Equal(ids, want) {
		t.Fatalf("ListJobs order = %v, want %v", ids, want)
	}
	if !listed[2].CreatedAt.Equal(base.Add(120 * time.Millisecond)) {
		t.Fatalf("created_at = %s, want %s", listed[2].CreatedAt, base.Add(120*time.Millisecond))
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	path := st.Path()
	st.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := store.OpenPath(path); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SaveJob(t, st, "h", orchestrator.StatusCompleted)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health %+v", health)
	}
	if len(health.MissingTables) != 0 || health.TotalJobs != 1 || health.SchemaVersion != "1" {
		t.Fatalf("unexpected health %+v", health)
	}
}
