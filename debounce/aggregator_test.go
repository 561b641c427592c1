package debounce_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/xerrors"

	"github.com/st-keller/thankyou-client/debounce"
	"github.com/st-keller/thankyou-client/identity"
	"github.com/st-keller/thankyou-client/metrics"
	"github.com/st-keller/thankyou-client/standard"
	"github.com/st-keller/thankyou-client/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// recordingSink stores every submitted payload and can fail on demand.
type recordingSink struct {
	mu       sync.Mutex
	payloads []types.ClickPayload
	err      error
}

func (s *recordingSink) Submit(_ context.Context, p types.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p.(types.ClickPayload))
	return s.err
}

func (s *recordingSink) got() []types.ClickPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ClickPayload, len(s.payloads))
	copy(out, s.payloads)
	return out
}

func newAggregator(t *testing.T, mClock *quartz.Mock, s *recordingSink) *debounce.Aggregator {
	t.Helper()
	agg, err := debounce.New(debounce.Config{
		Delay:       time.Second,
		Clock:       mClock,
		Logger:      slogtest.Make(t, nil),
		Sink:        s,
		Identity:    identity.Static("user-test"),
		ProjectName: "my-project",
		DevID:       7,
	})
	require.NoError(t, err)
	t.Cleanup(agg.Wait)
	return agg
}

func TestThreeClicksOneReport(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	rec := &recordingSink{}
	agg := newAggregator(t, mClock, rec)

	require.Equal(t, debounce.Idle, agg.State())
	require.Equal(t, 1, agg.Click()) // t=0
	require.Equal(t, debounce.Pending, agg.State())
	mClock.Advance(300 * time.Millisecond).MustWait(ctx)
	require.Equal(t, 2, agg.Click()) // t=300
	mClock.Advance(300 * time.Millisecond).MustWait(ctx)
	require.Equal(t, 3, agg.Click()) // t=600

	// t=1599: the timer measures time since the last click, not the first.
	mClock.Advance(999 * time.Millisecond).MustWait(ctx)
	agg.Wait()
	require.Empty(t, rec.got())
	require.Equal(t, 3, agg.Pending())

	// t=1600: exactly one report carrying the whole burst.
	mClock.Advance(time.Millisecond).MustWait(ctx)
	agg.Wait()
	require.Equal(t, []types.ClickPayload{{
		UserID:      "user-test",
		ProjectName: "my-project",
		DevID:       7,
		Clicks:      3,
	}}, rec.got())
	require.Equal(t, debounce.Idle, agg.State())
}

func TestBurstOfN(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 17, 100} {
		ctx := testContext(t)
		mClock := quartz.NewMock(t)
		rec := &recordingSink{}
		agg := newAggregator(t, mClock, rec)

		for i := range n {
			agg.Click()
			if i < n-1 {
				mClock.Advance(999 * time.Millisecond).MustWait(ctx)
			}
		}
		require.Empty(t, rec.got())

		mClock.Advance(time.Second).MustWait(ctx)
		agg.Wait()
		got := rec.got()
		require.Len(t, got, 1, "n=%d", n)
		require.Equal(t, n, got[0].Clicks)
	}
}

func TestBurstsAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	rec := &recordingSink{}
	agg := newAggregator(t, mClock, rec)

	agg.Click()
	agg.Click()
	mClock.Advance(time.Second).MustWait(ctx)
	agg.Wait()

	// Quiet period longer than the delay, then a second burst.
	mClock.Advance(5 * time.Second).MustWait(ctx)
	agg.Click()
	agg.Click()
	agg.Click()
	mClock.Advance(time.Second).MustWait(ctx)
	agg.Wait()

	got := rec.got()
	require.Len(t, got, 2)
	require.Equal(t, 2, got[0].Clicks)
	require.Equal(t, 3, got[1].Clicks)
}

func TestNoEmptyFlush(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	rec := &recordingSink{}
	agg := newAggregator(t, mClock, rec)

	agg.Flush()
	mClock.Advance(10 * time.Second).MustWait(ctx)
	agg.Stop()
	agg.Wait()
	require.Empty(t, rec.got())
}

// blockingSink holds each submission until released, exposing the window in
// which the payload is in flight.
type blockingSink struct {
	submitted chan types.ClickPayload
	release   chan struct{}
}

func (s *blockingSink) Submit(ctx context.Context, p types.Payload) error {
	s.submitted <- p.(types.ClickPayload)
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

func TestClickDuringDispatchStartsNextBatch(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	bs := &blockingSink{submitted: make(chan types.ClickPayload, 2), release: make(chan struct{})}
	agg, err := debounce.New(debounce.Config{
		Clock:       mClock,
		Logger:      slogtest.Make(t, nil),
		Sink:        bs,
		Identity:    identity.Static("user-test"),
		ProjectName: "my-project",
	})
	require.NoError(t, err)
	require.Equal(t, debounce.DefaultDelay, agg.Delay())

	agg.Click()
	agg.Click()
	mClock.Advance(debounce.DefaultDelay).MustWait(ctx)

	var first types.ClickPayload
	select {
	case first = <-bs.submitted:
	case <-ctx.Done():
		t.Fatal("timed out waiting for first submission")
	}
	require.Equal(t, 2, first.Clicks)

	// The first batch is still in flight; this click belongs to the next one.
	require.Equal(t, 1, agg.Click())
	close(bs.release)

	mClock.Advance(debounce.DefaultDelay).MustWait(ctx)
	select {
	case second := <-bs.submitted:
		require.Equal(t, 1, second.Clicks)
	case <-ctx.Done():
		t.Fatal("timed out waiting for second submission")
	}
	agg.Wait()
}

func TestTransportFailureLosesBatch(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	rec := &recordingSink{err: xerrors.New("connection refused")}
	agg := newAggregator(t, mClock, rec)

	agg.Click()
	agg.Click()
	mClock.Advance(time.Second).MustWait(ctx)
	agg.Wait()

	// At most once: the failed batch is not retried nor folded into the next.
	require.Equal(t, debounce.Idle, agg.State())
	require.Zero(t, agg.Pending())
	mClock.Advance(30 * time.Second).MustWait(ctx)
	require.Len(t, rec.got(), 1)

	agg.Click()
	mClock.Advance(time.Second).MustWait(ctx)
	agg.Wait()
	got := rec.got()
	require.Len(t, got, 2)
	require.Equal(t, 1, got[1].Clicks)
}

func TestLostBatchLoggedAtWarn(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	logs := standard.NewRecentLogs(10)
	agg, err := debounce.New(debounce.Config{
		Clock:       mClock,
		Logger:      slogtest.Make(t, nil).AppendSinks(logs),
		Sink:        &recordingSink{err: xerrors.New("queue full")},
		Identity:    identity.Static("user-test"),
		ProjectName: "my-project",
	})
	require.NoError(t, err)

	agg.Click()
	mClock.Advance(debounce.DefaultDelay).MustWait(ctx)
	agg.Wait()

	require.Equal(t, 1, logs.Count(slog.LevelWarn.String()))
	entries := logs.Entries()
	require.Equal(t, "click batch lost", entries[len(entries)-1].Message)
}

func TestFlushAndStop(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	rec := &recordingSink{}
	agg := newAggregator(t, mClock, rec)

	agg.Click()
	agg.Flush()
	agg.Wait()
	require.Len(t, rec.got(), 1)

	// The cancelled timer must not produce a second report.
	mClock.Advance(5 * time.Second).MustWait(ctx)
	agg.Wait()
	require.Len(t, rec.got(), 1)

	agg.Click()
	agg.Click()
	agg.Stop()
	agg.Wait()
	require.Len(t, rec.got(), 2)
	require.Equal(t, 2, rec.got()[1].Clicks)

	require.Zero(t, agg.Click(), "clicks after stop are ignored")
	agg.Stop()
	mClock.Advance(5 * time.Second).MustWait(ctx)
	agg.Wait()
	require.Len(t, rec.got(), 2)
}

func TestInvalidBatchDropped(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	mClock := quartz.NewMock(t)
	rec := &recordingSink{}
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	agg, err := debounce.New(debounce.Config{
		Clock:       mClock,
		Logger:      slogtest.Make(t, nil),
		Sink:        rec,
		Identity:    identity.Static("x"), // too short for the backend
		ProjectName: "my-project",
		Metrics:     m,
	})
	require.NoError(t, err)

	agg.Click()
	mClock.Advance(debounce.DefaultDelay).MustWait(ctx)
	agg.Wait()
	require.Empty(t, rec.got())
	require.Equal(t, 1.0, promtest.ToFloat64(m.Clicks.WithLabelValues("my-project")))
	require.Equal(t, 1.0, promtest.ToFloat64(m.Rejections.WithLabelValues("clicks", "invalid")))
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	rec := &recordingSink{}
	_, err := debounce.New(debounce.Config{Identity: identity.Static("user-test")})
	require.Error(t, err)
	_, err = debounce.New(debounce.Config{Sink: rec})
	require.Error(t, err)
	_, err = debounce.New(debounce.Config{Sink: rec, Identity: identity.Static("user-test"), Delay: -time.Second})
	require.Error(t, err)
}

func TestResolveDelay(t *testing.T) {
	t.Parallel()

	d, err := debounce.ResolveDelay(0)
	require.NoError(t, err)
	require.Equal(t, time.Second, d)

	d, err = debounce.ResolveDelay(250 * time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, d)

	_, err = debounce.ResolveDelay(-1)
	require.Error(t, err)

	require.Equal(t, "pending", debounce.Pending.String())
	require.Equal(t, "idle", debounce.Idle.String())
}
