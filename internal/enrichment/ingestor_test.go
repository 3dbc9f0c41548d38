package enrichment_test

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"shelver/internal/config"
	"shelver/internal/enrichment"
	"shelver/internal/logging"
	"shelver/internal/testsupport"
	"shelver/internal/tracking"
)

func newIngestor(t *testing.T, cfg *config.Config, store *tracking.Store) *enrichment.Ingestor {
	t.Helper()
	ingestor, err := enrichment.NewIngestor(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewIngestor: %v", err)
	}
	return ingestor
}

func queueLines(t *testing.T, path string) []string {
	t.Helper()
	content := strings.TrimSpace(testsupport.ReadText(t, path))
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func writeQueue(t *testing.T, path string, lines ...string) {
	t.Helper()
	testsupport.WriteText(t, path, strings.Join(lines, "\n")+"\n")
}

func TestIngestAcceptsValidResponse(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirectories())
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustTrack(t, store, "Author/Book", tracking.StateReadyForAI)
	line := `{"relative_path":"Author/Book","title":"Book","author":"Author","confidence":{"title":"high","author":"high"}}`
	writeQueue(t, cfg.ResponseQueuePath(), line)

	result, err := newIngestor(t, cfg, store).Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Accepted != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	item := testsupport.MustGet(t, store, "Author/Book")
	if item.State != tracking.StateAIReturned {
		t.Fatalf("expected ai_returned, got %s", item.State)
	}
	var metadata map[string]any
	if err := json.Unmarshal(item.Metadata, &metadata); err != nil {
		t.Fatalf("decode stored metadata: %v", err)
	}
	if metadata["title"] != "Book" {
		t.Fatalf("unexpected stored metadata: %v", metadata)
	}
	if lines := queueLines(t, cfg.ResponseQueuePath()); len(lines) != 1 {
		t.Fatalf("accepted record should stay for the organizer, got %v", lines)
	}
	if _, err := os.Stat(cfg.ManualQueuePath()); !os.IsNotExist(err) {
		t.Fatalf("manual queue should not exist: %v", err)
	}
}

func TestIngestRoutesFailuresToManualQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirectories())
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustTrack(t, store, "A", tracking.StateReadyForAI)
	testsupport.MustTrack(t, store, "B", tracking.StateReadyForAI)
	writeQueue(t, cfg.ResponseQueuePath(),
		`{"relative_path":"A","status":"ai_failed"}`,
		`{"relative_path":"B","title":"T","author":"W","confidence":{"author":"low"}}`,
	)

	ingestor := newIngestor(t, cfg, store)
	result, err := ingestor.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Failed != 2 || result.Accepted != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	for _, rel := range []string{"A", "B"} {
		item := testsupport.MustGet(t, store, rel)
		if item.State != tracking.StateAIFailed {
			t.Fatalf("%s: expected ai_failed, got %s", rel, item.State)
		}
		if item.Attempts != 1 || item.LastError == "" {
			t.Fatalf("%s: expected attempt and error recorded: %+v", rel, item)
		}
	}

	if lines := queueLines(t, cfg.ResponseQueuePath()); len(lines) != 0 {
		t.Fatalf("failed records should leave the response queue: %v", lines)
	}
	manual := queueLines(t, cfg.ManualQueuePath())
	if len(manual) != 2 {
		t.Fatalf("expected two manual records, got %v", manual)
	}
	for _, line := range manual {
		rec := mustParse(t, line)
		if rec.ManualStatus != enrichment.ManualStatusPending || rec.ManualReason == "" {
			t.Fatalf("manual record missing review fields: %s", line)
		}
	}

	// A second pass finds nothing left to route.
	again, err := ingestor.Ingest(context.Background())
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if again != (enrichment.IngestResult{}) {
		t.Fatalf("second pass should be a no-op: %+v", again)
	}
	if got := queueLines(t, cfg.ManualQueuePath()); len(got) != 2 {
		t.Fatalf("manual queue changed on second pass: %v", got)
	}
}

func TestIngestSkipsUnknownAndMalformedRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirectories())
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustTrack(t, store, "Author/Book One", tracking.StateReadyForAI)
	malformed := `{"relative_path": "Author/Book One"`
	unknownStatus := `{"relative_path":"Author/Book One","status":"perhaps","title":"T","author":"W"}`
	unknown := `{"relative_path":"Author/Book Won","title":"T","author":"W"}`
	writeQueue(t, cfg.ResponseQueuePath(), malformed, unknownStatus, unknown)

	result, err := newIngestor(t, cfg, store).Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Malformed != 2 || result.Unknown != 1 || result.Accepted != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := testsupport.MustGet(t, store, "Author/Book One").State; got != tracking.StateReadyForAI {
		t.Fatalf("state changed to %s", got)
	}
	item, err := store.GetByPath(context.Background(), "Author/Book Won")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if item != nil {
		t.Fatal("ingest must not fabricate items")
	}

	lines := queueLines(t, cfg.ResponseQueuePath())
	if len(lines) != 3 || lines[0] != malformed {
		t.Fatalf("malformed and unknown lines must stay in place: %v", lines)
	}
}

func TestIngestKeepsLastDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirectories())
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustTrack(t, store, "A", tracking.StateReadyForAI)
	writeQueue(t, cfg.ResponseQueuePath(),
		`{"relative_path":"A","status":"ai_failed"}`,
		`{"relative_path":"A","title":"Second","author":"W"}`,
	)

	result, err := newIngestor(t, cfg, store).Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Duplicates != 1 || result.Accepted != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	lines := queueLines(t, cfg.ResponseQueuePath())
	if len(lines) != 1 || !strings.Contains(lines[0], "Second") {
		t.Fatalf("expected only the later record to remain: %v", lines)
	}
}

func TestIngestLeavesAppliedRecordsAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirectories())
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustTrack(t, store, "A", tracking.StateAIReturned)
	writeQueue(t, cfg.ResponseQueuePath(), `{"relative_path":"A","title":"T","author":"W"}`)

	result, err := newIngestor(t, cfg, store).Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Unchanged != 1 || result.Accepted != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := testsupport.MustGet(t, store, "A").State; got != tracking.StateAIReturned {
		t.Fatalf("state changed to %s", got)
	}
}

func TestIngestDryRunWritesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirectories())
	seed := testsupport.MustOpenStore(t, cfg)
	testsupport.MustTrack(t, seed, "A", tracking.StateReadyForAI)
	testsupport.MustTrack(t, seed, "B", tracking.StateReadyForAI)
	if err := seed.Close(); err != nil {
		t.Fatalf("close seed store: %v", err)
	}
	original := []string{
		`{"relative_path":"A","status":"ai_failed"}`,
		`{"relative_path":"B","title":"T","author":"W"}`,
	}
	writeQueue(t, cfg.ResponseQueuePath(), original...)

	cfg.DryRun = true
	store := testsupport.MustOpenStore(t, cfg)
	result, err := newIngestor(t, cfg, store).Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Failed != 1 || result.Accepted != 1 {
		t.Fatalf("dry run should still report outcomes: %+v", result)
	}
	if lines := queueLines(t, cfg.ResponseQueuePath()); strings.Join(lines, "\n") != strings.Join(original, "\n") {
		t.Fatalf("dry run rewrote response queue: %v", lines)
	}
	if _, err := os.Stat(cfg.ManualQueuePath()); !os.IsNotExist(err) {
		t.Fatalf("dry run created manual queue: %v", err)
	}
	for _, rel := range []string{"A", "B"} {
		if got := testsupport.MustGet(t, store, rel).State; got != tracking.StateReadyForAI {
			t.Fatalf("%s: dry run changed state to %s", rel, got)
		}
	}
}

func TestIngestMissingQueueIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirectories())
	store := testsupport.MustOpenStore(t, cfg)
	result, err := newIngestor(t, cfg, store).Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result != (enrichment.IngestResult{}) {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestIngestReplacesPendingManualRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirectories())
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustTrack(t, store, "A", tracking.StateAIFailed)
	writeQueue(t, cfg.ManualQueuePath(), `{"author":"W","manual_reason":"status ai_failed","manual_status":"pending","relative_path":"A","title":"Old"}`)
	writeQueue(t, cfg.ResponseQueuePath(), `{"author":"W","confidence":{"author":"low"},"relative_path":"A","title":"Newer"}`)

	ingestor := newIngestor(t, cfg, store)
	result, err := ingestor.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if lines := queueLines(t, cfg.ResponseQueuePath()); len(lines) != 0 {
		t.Fatalf("failed record should leave the response queue: %v", lines)
	}
	manual := queueLines(t, cfg.ManualQueuePath())
	if len(manual) != 1 {
		t.Fatalf("expected one manual record, got %v", manual)
	}
	rec := mustParse(t, manual[0])
	if string(rec.Fields["title"]) != `"Newer"` || rec.ManualStatus != enrichment.ManualStatusPending {
		t.Fatalf("newer response should replace the pending record: %s", manual[0])
	}
	if !strings.Contains(rec.ManualReason, "author") {
		t.Fatalf("manual reason should describe the newer failure: %q", rec.ManualReason)
	}
	if got := testsupport.MustGet(t, store, "A"); got.State != tracking.StateAIFailed || got.Attempts != 0 {
		t.Fatalf("item should stay ai_failed without a new attempt: %+v", got)
	}
}

func TestIngestKeepsIdenticalManualRecordOnRerun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnsuredDirectories())
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustTrack(t, store, "A", tracking.StateReadyForAI)
	failed := `{"relative_path":"A","status":"ai_failed"}`
	writeQueue(t, cfg.ResponseQueuePath(), failed)

	ingestor := newIngestor(t, cfg, store)
	if _, err := ingestor.Ingest(context.Background()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	before := testsupport.ReadText(t, cfg.ManualQueuePath())

	// An interrupted run wrote the manual queue but not the response queue.
	writeQueue(t, cfg.ResponseQueuePath(), failed)
	if _, err := ingestor.Ingest(context.Background()); err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if lines := queueLines(t, cfg.ResponseQueuePath()); len(lines) != 0 {
		t.Fatalf("response queue should be cleared: %v", lines)
	}
	if got := testsupport.ReadText(t, cfg.ManualQueuePath()); got != before {
		t.Fatalf("manual queue changed:\n%s\nwant:\n%s", got, before)
	}
	if got := testsupport.MustGet(t, store, "A").Attempts; got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}
