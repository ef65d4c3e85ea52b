package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ppiankov/factstrip/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubBackend answers each call through fn and counts calls
type stubBackend struct {
	mu    sync.Mutex
	calls []model.VerificationRequest
	fn    func(ctx context.Context, req model.VerificationRequest) (map[string]any, error)
}

func (b *stubBackend) Verify(ctx context.Context, req model.VerificationRequest) (map[string]any, error) {
	b.mu.Lock()
	b.calls = append(b.calls, req)
	b.mu.Unlock()
	return b.fn(ctx, req)
}

func (b *stubBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// gatedBackend blocks each call until the test releases it by statement.
// It ignores ctx on purpose, like a backend that never honours cancellation.
type gatedBackend struct {
	started chan string
	mu      sync.Mutex
	gates   map[string]chan outcome
}

func newGatedBackend(statements ...string) *gatedBackend {
	g := &gatedBackend{started: make(chan string, len(statements)), gates: map[string]chan outcome{}}
	for _, s := range statements {
		g.gates[s] = make(chan outcome, 1)
	}
	return g
}

func (g *gatedBackend) Verify(_ context.Context, req model.VerificationRequest) (map[string]any, error) {
	g.mu.Lock()
	gate := g.gates[req.Statement]
	g.mu.Unlock()

	g.started <- req.Statement
	out := <-gate
	return out.payload, out.err
}

func (g *gatedBackend) release(statement string, payload map[string]any, err error) {
	g.gates[statement] <- outcome{payload: payload, err: err}
}

// memRecorder collects recorded results
type memRecorder struct {
	mu      sync.Mutex
	results []model.VerificationResult
}

func (r *memRecorder) Add(res model.VerificationResult) model.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return model.NewHistoryEntry(res)
}

func (r *memRecorder) statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, res := range r.results {
		out = append(out, res.Statement)
	}
	return out
}

func skyPayload() map[string]any {
	return map[string]any{
		"verdict": "true", "confidence": 95.0, "mood": "neutral",
		"moodConfidence": 80.0, "comicImage": "http://x/img.png",
	}
}

func TestController_Submit_ValidationNeverCallsBackend(t *testing.T) {
	backend := &stubBackend{fn: func(context.Context, model.VerificationRequest) (map[string]any, error) {
		t.Fatal("backend must not be called")
		return nil, nil
	}}
	rec := &memRecorder{}
	c := NewController(backend, rec, Options{})

	for _, statement := range []string{"", " ", "\t\n", "     "} {
		res, err := c.Submit(context.Background(), statement, model.StyleNormal)
		assert.Nil(t, res)
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err), "statement %q", statement)

		st := c.Status()
		assert.Equal(t, StateFailed, st.State)
		assert.Equal(t, "Statement is required", st.Err.Message)
		assert.False(t, st.IsLoading())
	}

	_, err := c.Submit(context.Background(), "Fine statement", model.Style("watercolor"))
	assert.Equal(t, KindValidation, KindOf(err))

	assert.Equal(t, 0, backend.callCount())
	assert.Empty(t, rec.statements())
}

func TestController_Submit_Success(t *testing.T) {
	backend := &stubBackend{fn: func(context.Context, model.VerificationRequest) (map[string]any, error) {
		return skyPayload(), nil
	}}
	rec := &memRecorder{}
	c := NewController(backend, rec, Options{
		Now:   func() time.Time { return fixedNow },
		NewID: fixedID,
	})

	res, err := c.Submit(context.Background(), "  The sky is blue  ", "")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, []model.VerificationRequest{{Statement: "The sky is blue", Style: model.StyleNormal}}, backend.calls)
	assert.Equal(t, model.EntryID("generated-id"), res.ID)
	assert.Equal(t, fixedNow, res.Timestamp)
	assert.Equal(t, model.VerdictTrue, res.Verdict)
	assert.Equal(t, 95, *res.Confidence)
	assert.Equal(t, "http://x/img.png", *res.ImageRef)

	st := c.Status()
	assert.Equal(t, StateSucceeded, st.State)
	assert.Nil(t, st.Err)
	assert.Equal(t, res, st.Result)
	assert.Equal(t, []string{"The sky is blue"}, rec.statements())
}

func TestController_Submit_FailureReplacesResult(t *testing.T) {
	fail := false
	backend := &stubBackend{fn: func(context.Context, model.VerificationRequest) (map[string]any, error) {
		if fail {
			return nil, &ServerFailure{StatusCode: 500, Message: "Internal server error"}
		}
		return skyPayload(), nil
	}}
	c := NewController(backend, nil, Options{})

	_, err := c.Submit(context.Background(), "first", model.StyleNormal)
	require.NoError(t, err)

	fail = true
	_, err = c.Submit(context.Background(), "second", model.StyleNormal)
	require.Error(t, err)

	st := c.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.Nil(t, st.Result)
	assert.Equal(t, KindServer, st.Err.Kind)
	assert.Equal(t, "Internal server error", st.Err.Message)

	fail = false
	_, err = c.Submit(context.Background(), "third", model.StyleNormal)
	require.NoError(t, err)
	assert.Nil(t, c.Status().Err, "a new submit clears the previous error")
}

func TestController_LatestWins_OlderResolvesLast(t *testing.T) {
	backend := newGatedBackend("A", "B")
	rec := &memRecorder{}
	c := NewController(backend, rec, Options{})

	var (
		resA, resB *model.VerificationResult
		errA, errB error
		wg         sync.WaitGroup
	)
	wg.Add(2)
	go func() { defer wg.Done(); resA, errA = c.Submit(context.Background(), "A", model.StyleNormal) }()
	require.Equal(t, "A", <-backend.started)
	go func() { defer wg.Done(); resB, errB = c.Submit(context.Background(), "B", model.StyleNormal) }()
	require.Equal(t, "B", <-backend.started)

	backend.release("B", map[string]any{"verdict": "false"}, nil)
	require.Eventually(t, func() bool { return c.Status().State == StateSucceeded }, time.Second, time.Millisecond)
	backend.release("A", map[string]any{"verdict": "true"}, nil)
	wg.Wait()

	require.NoError(t, errB)
	assert.Equal(t, "B", resB.Statement)
	assert.ErrorIs(t, errA, ErrSuperseded)
	assert.Nil(t, resA)

	st := c.Status()
	assert.Equal(t, StateSucceeded, st.State)
	assert.Equal(t, "B", st.Result.Statement)
	assert.Equal(t, model.VerdictFalse, st.Result.Verdict)
	assert.Equal(t, []string{"B"}, rec.statements())
}

func TestController_LatestWins_OlderResolvesFirst(t *testing.T) {
	backend := newGatedBackend("A", "B")
	rec := &memRecorder{}
	c := NewController(backend, rec, Options{})

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "A", model.StyleNormal)
		doneA <- err
	}()
	<-backend.started
	go func() {
		_, err := c.Submit(context.Background(), "B", model.StyleNormal)
		doneB <- err
	}()
	<-backend.started

	// A's failure arrives while B is still pending: it must not show
	backend.release("A", nil, &ServerFailure{StatusCode: 500})
	assert.ErrorIs(t, <-doneA, ErrSuperseded)
	st := c.Status()
	assert.Equal(t, StateSubmitting, st.State)
	assert.True(t, st.IsLoading())
	assert.Nil(t, st.Err)

	backend.release("B", map[string]any{"verdict": "true"}, nil)
	assert.NoError(t, <-doneB)

	assert.Equal(t, "B", c.Status().Result.Statement)
	assert.Equal(t, []string{"B"}, rec.statements())
}

func TestController_SequentialSubmitsRecordedInOrder(t *testing.T) {
	backend := &stubBackend{fn: func(_ context.Context, req model.VerificationRequest) (map[string]any, error) {
		return map[string]any{"verdict": "true"}, nil
	}}
	rec := &memRecorder{}
	c := NewController(backend, rec, Options{})

	for _, s := range []string{"one", "two", "three"} {
		_, err := c.Submit(context.Background(), s, model.StyleNormal)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"one", "two", "three"}, rec.statements())
}

func TestController_Timeout(t *testing.T) {
	backend := newGatedBackend("slow")
	rec := &memRecorder{}
	c := NewController(backend, rec, Options{Timeout: 30 * time.Millisecond})

	res, err := c.Submit(context.Background(), "slow", model.StyleNormal)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, StateFailed, c.Status().State)

	// the real answer shows up later and must be ignored
	backend.release("slow", skyPayload(), nil)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, StateFailed, c.Status().State)
	assert.Empty(t, rec.statements())
}

func TestController_AnswerAfterDeadlineIsNetworkError(t *testing.T) {
	backend := &stubBackend{fn: func(ctx context.Context, _ model.VerificationRequest) (map[string]any, error) {
		<-ctx.Done()
		// a backend that answers anyway once the deadline passed
		return skyPayload(), nil
	}}
	c := NewController(backend, nil, Options{Timeout: 20 * time.Millisecond})

	_, err := c.Submit(context.Background(), "late", model.StyleNormal)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestController_CallerCancellation(t *testing.T) {
	backend := &stubBackend{fn: func(ctx context.Context, _ model.VerificationRequest) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := NewController(backend, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Submit(ctx, "cancel me", model.StyleNormal)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestController_ClearMakesInFlightStale(t *testing.T) {
	backend := newGatedBackend("pending")
	rec := &memRecorder{}
	c := NewController(backend, rec, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "pending", model.StyleNormal)
		done <- err
	}()
	<-backend.started

	c.Clear()
	st := c.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.Result)
	assert.Nil(t, st.Err)

	backend.release("pending", skyPayload(), nil)
	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, StateIdle, c.Status().State)
	assert.Empty(t, rec.statements())
}

func TestController_OnChange(t *testing.T) {
	backend := &stubBackend{fn: func(context.Context, model.VerificationRequest) (map[string]any, error) {
		return skyPayload(), nil
	}}

	var mu sync.Mutex
	var states []State
	c := NewController(backend, nil, Options{OnChange: func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	}})

	_, err := c.Submit(context.Background(), "The sky is blue", model.StyleNormal)
	require.NoError(t, err)
	c.Clear()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateSubmitting, StateSucceeded, StateIdle}, states)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "submitting", StateSubmitting.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
}
