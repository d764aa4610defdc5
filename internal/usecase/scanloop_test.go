package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"MarketRadar/internal/batch"
	"MarketRadar/internal/classify"
	"MarketRadar/internal/dedup"
	"MarketRadar/internal/domain"
	"MarketRadar/internal/filter"
	"MarketRadar/internal/infrastructure/feed"
	"MarketRadar/internal/reconcile"
)

type stubSource struct {
	pages [][]domain.FeedItem
	errs  []error
	calls int
}

func (s *stubSource) Fetch(_ context.Context, _ []string, _ int) ([]domain.FeedItem, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.pages) {
		return s.pages[i], nil
	}
	return nil, nil
}

type stubCompleter struct {
	responses []string
	prompts   []string
}

func (c *stubCompleter) Complete(_ context.Context, _, user string) (string, error) {
	c.prompts = append(c.prompts, user)
	if len(c.responses) == 0 {
		return "[]", nil
	}
	out := c.responses[0]
	c.responses = c.responses[1:]
	return out, nil
}

type memorySink struct {
	mu      sync.Mutex
	records []domain.OpportunityRecord
	err     error
}

func (s *memorySink) Append(_ context.Context, records []domain.OpportunityRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

type stubNotifier struct {
	digests []string
}

func (n *stubNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return nil
}

// cancelSleeper records waits and cancels the loop after the given count.
type cancelSleeper struct {
	waits  []time.Duration
	after  int
	cancel context.CancelFunc
}

func (s *cancelSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	if len(s.waits) >= s.after && s.cancel != nil {
		s.cancel()
	}
	return ctx.Err()
}

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestLoop(t *testing.T, source *stubSource, completer *stubCompleter, sink *memorySink, sleeper *cancelSleeper, batchSize int) *ScanLoop {
	t.Helper()

	ledger, err := dedup.NewLRU(100)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	return NewScanLoop(ScanLoopDeps{
		Source:     source,
		Ledger:     ledger,
		Filter:     filter.New(10, []string{"pain", "looking for"}),
		Buffer:     batch.NewBuffer(batchSize, 1500),
		Classifier: classify.NewAdapter(completer, classify.Options{MaxTextChars: 1500, MinScore: 7}, nil, nil),
		Reconciler: reconcile.New(7, func() time.Time { return fixedNow }),
		Sink:       sink,
		Sleeper:    sleeper,
		NewID:      func() string { return "cycle-1" },
	}, ScanLoopOptions{
		Subjects:      []string{"SaaS"},
		PageSize:      25,
		Interval:      60 * time.Second,
		RateLimitWait: 61 * time.Second,
		ErrorBackoff:  62 * time.Second,
	})
}

func threeItems() []domain.FeedItem {
	return []domain.FeedItem{
		{ID: "a", Title: "Invoicing is a pain", Body: "Every month I copy numbers by hand into sheets.", Permalink: "https://www.reddit.com/r/SaaS/a"},
		{ID: "b", Title: "Weekend update", Body: "Shipped a new landing page and got ten signups.", Permalink: "https://www.reddit.com/r/SaaS/b"},
		{ID: "c", Title: "Looking for a scheduling tool", Body: "Our clinic still books patients over the phone.", Permalink: "https://www.reddit.com/r/SaaS/c"},
	}
}

func TestRunCyclePersistsAcceptedVerdicts(t *testing.T) {
	t.Parallel()

	source := &stubSource{pages: [][]domain.FeedItem{threeItems()}}
	completer := &stubCompleter{responses: []string{
		`[{"post_id":0,"is_opportunity":true,"score":8,"pain_point":"manual invoicing","target_audience":"freelancers","suggested_solution":"invoice sync"},
		  {"post_id":1,"is_opportunity":false}]`,
	}}
	sink := &memorySink{}
	loop := newTestLoop(t, source, completer, sink, &cancelSleeper{}, 2)

	report, err := loop.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if report.Fetched != 3 || report.Fresh != 3 || report.Buffered != 2 || report.Batches != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Persisted != 1 || report.Rejected != 1 {
		t.Fatalf("unexpected outcome %+v", report)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Score != 8 || rec.Permalink != "https://www.reddit.com/r/SaaS/a" || !rec.Timestamp.Equal(fixedNow) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(completer.prompts) != 1 || strings.Contains(completer.prompts[0], "Weekend update") {
		t.Fatalf("filtered item must not reach the classifier: %v", completer.prompts)
	}
	if loop.State() != StateIdle {
		t.Fatalf("state = %s", loop.State())
	}
}

func TestRunCycleSkipsSeenItemsAndKeepsLeftovers(t *testing.T) {
	t.Parallel()

	items := threeItems()
	source := &stubSource{pages: [][]domain.FeedItem{items, items}}
	completer := &stubCompleter{}
	sink := &memorySink{}
	loop := newTestLoop(t, source, completer, sink, &cancelSleeper{}, 5)

	first, err := loop.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if first.Buffered != 2 || first.Batches != 0 {
		t.Fatalf("first cycle should only buffer: %+v", first)
	}

	second, err := loop.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if second.Fresh != 0 || second.Buffered != 0 {
		t.Fatalf("seen items must be skipped: %+v", second)
	}
	if len(completer.prompts) != 0 {
		t.Fatalf("partial batch must not be classified, got %d calls", len(completer.prompts))
	}

	flushed, err := loop.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if flushed.Batches != 1 || len(completer.prompts) != 1 {
		t.Fatalf("flush should classify leftovers: %+v, calls=%d", flushed, len(completer.prompts))
	}
}

func TestRunCycleDrainsEveryFullBatchOnAPage(t *testing.T) {
	t.Parallel()

	page := []domain.FeedItem{
		{ID: "p1", Title: "Billing pain", Body: "Reconciling invoices by hand every week."},
		{ID: "p2", Title: "Looking for a CRM", Body: "Spreadsheets are falling apart for our team."},
		{ID: "p3", Title: "Onboarding pain", Body: "New hires wait days for accounts to be set up."},
		{ID: "p4", Title: "Looking for uptime alerts", Body: "We learn about outages from angry customers."},
		{ID: "p5", Title: "Reporting pain", Body: "Monthly reports take two full days to assemble."},
	}
	completer := &stubCompleter{}
	loop := newTestLoop(t, &stubSource{pages: [][]domain.FeedItem{page}}, completer, &memorySink{}, &cancelSleeper{}, 2)

	report, err := loop.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.Buffered != 5 || report.Batches != 2 {
		t.Fatalf("expected two full batches from one page: %+v", report)
	}
	for i, prompt := range completer.prompts {
		if strings.Contains(prompt, "--- POST ID 2 ---") {
			t.Fatalf("request %d carried more than one batch", i)
		}
	}
	if loop.buffer.Len() != 1 {
		t.Fatalf("leftover should stay buffered, got %d", loop.buffer.Len())
	}
}

func TestProcessBatchNotifiesAndSurvivesSinkErrors(t *testing.T) {
	t.Parallel()

	verdict := `[{"post_id":0,"is_opportunity":true,"score":9,"pain_point":"p","target_audience":"a","suggested_solution":"s"}]`
	items := []domain.FeedItem{threeItems()[0]}

	sink := &memorySink{}
	notifier := &stubNotifier{}
	loop := newTestLoop(t, &stubSource{pages: [][]domain.FeedItem{items}}, &stubCompleter{responses: []string{verdict}}, sink, &cancelSleeper{}, 1)
	loop.notifier = notifier

	if _, err := loop.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(notifier.digests) != 1 || !strings.Contains(notifier.digests[0], "[9/10] p") {
		t.Fatalf("unexpected digests %v", notifier.digests)
	}

	failing := &memorySink{err: errors.New("disk full")}
	lossy := newTestLoop(t, &stubSource{pages: [][]domain.FeedItem{items}}, &stubCompleter{responses: []string{verdict}}, failing, &cancelSleeper{}, 1)
	report, err := lossy.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("sink errors must not fail the cycle: %v", err)
	}
	if report.Persisted != 0 || lossy.buffer.Len() != 0 {
		t.Fatalf("batch should be dropped after a sink error: %+v", report)
	}
}

func TestRunSleepsPerOutcomeAndStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &stubSource{errs: []error{
		nil,
		feed.ErrRateLimited,
		errors.New("connection reset"),
	}}
	sleeper := &cancelSleeper{after: 3, cancel: cancel}
	loop := newTestLoop(t, source, &stubCompleter{}, &memorySink{}, sleeper, 5)

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []time.Duration{60 * time.Second, 61 * time.Second, 62 * time.Second}
	if len(sleeper.waits) != len(want) {
		t.Fatalf("waits = %v", sleeper.waits)
	}
	for i := range want {
		if sleeper.waits[i] != want[i] {
			t.Fatalf("wait %d = %v, want %v", i, sleeper.waits[i], want[i])
		}
	}
	if loop.State() != StateStopped {
		t.Fatalf("state = %s", loop.State())
	}
}

func TestRunReturnsImmediatelyWhenCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &stubSource{}
	loop := newTestLoop(t, source, &stubCompleter{}, &memorySink{}, &cancelSleeper{}, 5)
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if source.calls != 0 {
		t.Fatalf("cancelled loop must not fetch, got %d calls", source.calls)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	if StateClassifying.String() != "CLASSIFYING" || State(99).String() != "UNKNOWN" {
		t.Fatal("unexpected state names")
	}
}
