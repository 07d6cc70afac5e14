package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/autoflow/pkg/actions/apicall"
	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/mocks"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/persistence/file"
	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/registry"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func succeed(result map[string]any) protocol.ActionHandler {
	return protocol.HandlerFunc(func(context.Context, map[string]any, models.TriggerContext, *slog.Logger) (map[string]any, error) {
		return result, nil
	})
}

func fail(msg string) protocol.ActionHandler {
	return protocol.HandlerFunc(func(context.Context, map[string]any, models.TriggerContext, *slog.Logger) (map[string]any, error) {
		return nil, errors.New(msg)
	})
}

type fixture struct {
	store    *file.Persistence
	registry *registry.Registry
	engine   *engine.Coordinator
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	reg := registry.New(discard())
	reg.Register("ok", succeed(map[string]any{"status": "done"}))
	reg.Register("boom", fail("boom"))

	return &fixture{
		store:    store,
		registry: reg,
		engine:   engine.New(store, store, reg, discard(), opts...),
	}
}

func (f *fixture) save(t *testing.T, def *models.WorkflowDefinition) {
	t.Helper()

	if def.TriggerType == "" {
		def.TriggerType = models.TriggerTypeManual
	}

	require.NoError(t, f.store.SaveWorkflow(context.Background(), def))
}

func actions(types ...string) []models.ActionSpec {
	specs := make([]models.ActionSpec, 0, len(types))
	for _, actionType := range types {
		specs = append(specs, models.ActionSpec{Type: actionType, Config: map[string]any{}})
	}

	return specs
}

func outcomeTypes(outcomes []models.ActionOutcome) []string {
	types := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		types = append(types, o.ActionType)
	}

	return types
}

func TestRun_FailFastStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, FailFast: true, Actions: actions("ok", "boom", "ok")})

	result, err := f.engine.Run(context.Background(), "wf", map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Equal(t, []string{"ok", "boom"}, outcomeTypes(result.Outcomes))
	assert.True(t, result.Outcomes[0].Success)
	assert.False(t, result.Outcomes[1].Success)
	assert.Equal(t, "boom", result.Outcomes[1].Error)
	assert.Contains(t, result.ErrorMessage, "boom")
}

func TestRun_WithoutFailFastRunsEveryAction(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, Actions: actions("boom", "ok", "boom", "ok")})

	result, err := f.engine.Run(context.Background(), "wf", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Equal(t, []string{"boom", "ok", "boom", "ok"}, outcomeTypes(result.Outcomes))

	for i, o := range result.Outcomes {
		assert.Equal(t, i, o.Index)
	}
}

func TestRun_StatusSucceededIffAllOutcomesSucceed(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"all ok":     {"ok", "ok"},
		"one fails":  {"ok", "boom"},
		"first fail": {"boom", "ok"},
	}

	for name, types := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, Actions: actions(types...)})

			result, err := f.engine.Run(context.Background(), "wf", nil)
			require.NoError(t, err)

			allOK := true
			for _, o := range result.Outcomes {
				allOK = allOK && o.Success
			}

			assert.Equal(t, allOK, result.Status == models.ExecutionStatusSucceeded)
			assert.Equal(t, allOK, result.Succeeded())
		})
	}
}

// An unregistered type ends the run even without fail-fast.
func TestRun_UnknownActionIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, FailFast: false, Actions: actions("ok", "frobnicate", "ok")})

	result, err := f.engine.Run(context.Background(), "wf", map[string]any{"n": 1})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	require.Len(t, result.Outcomes, 2)
	assert.True(t, result.Outcomes[0].Success)
	assert.False(t, result.Outcomes[1].Success)
	assert.Equal(t, "frobnicate", result.Outcomes[1].ActionType)
	assert.Equal(t, "unknown action type: frobnicate", result.Outcomes[1].Error)

	record, err := f.store.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, "unknown action type: frobnicate", *record.ErrorMessage)
}

func TestRun_AllSucceed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, Actions: actions("ok", "ok", "ok")})

	result, err := f.engine.Run(context.Background(), "wf", map[string]any{"order": "A-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSucceeded, result.Status)
	assert.Len(t, result.Outcomes, 3)
	assert.Empty(t, result.ErrorMessage)
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))

	record, err := f.store.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSucceeded, record.Status)
	assert.Nil(t, record.ErrorMessage)
	assert.NotNil(t, record.CompletedAt)
	assert.Equal(t, map[string]any{"order": "A-1"}, record.TriggerData)
}

func TestRun_TimingIsRecordedOnlyAtFinalize(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var mid *models.ExecutionRecord

	f.registry.Register("inspect", protocol.HandlerFunc(func(ctx context.Context, _ map[string]any, tc models.TriggerContext, _ *slog.Logger) (map[string]any, error) {
		record, err := f.store.ExecutionByID(ctx, tc.ExecutionID)
		mid = record

		return map[string]any{}, err
	}))
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, Actions: actions("ok", "inspect")})

	result, err := f.engine.Run(context.Background(), "wf", nil)
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	require.NotNil(t, mid)
	assert.Equal(t, models.ExecutionStatusRunning, mid.Status)
	assert.Nil(t, mid.ExecutionTimeMs)
	assert.Nil(t, mid.CompletedAt)
	assert.Len(t, mid.Outcomes, 1, "outcomes are appended as actions finish")

	record, err := f.store.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.NotNil(t, record.ExecutionTimeMs)
	assert.GreaterOrEqual(t, *record.ExecutionTimeMs, int64(0))
	assert.Equal(t, result.ExecutionTimeMs, *record.ExecutionTimeMs)
}

// jsonShaped returns v as it reads back from a store: numbers become float64.
func jsonShaped(t *testing.T, v any) any {
	t.Helper()

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var out any
	require.NoError(t, json.Unmarshal(raw, &out))

	return out
}

func TestRun_PersistedOutcomesRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.Register("counts", succeed(map[string]any{"http_code": 200, "items": []int{1, 2}}))
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, Actions: actions("ok", "boom", "counts")})

	result, err := f.engine.Run(context.Background(), "wf", nil)
	require.NoError(t, err)

	record, err := f.store.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, jsonShaped(t, result.Outcomes), jsonShaped(t, record.Outcomes))
	assert.Equal(t, 200, result.Outcomes[2].Result["http_code"])
	assert.InDelta(t, 200, record.Outcomes[2].Result["http_code"], 0)
}

func TestRun_APICallServerErrorIsSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newFixture(t)
	f.registry.Register(apicall.Type, apicall.New(server.Client()))
	f.save(t, &models.WorkflowDefinition{
		ID:       "wf",
		IsActive: true,
		FailFast: true,
		Actions:  []models.ActionSpec{{Type: apicall.Type, Config: map[string]any{"url": server.URL}}},
	})

	result, err := f.engine.Run(context.Background(), "wf", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSucceeded, result.Status)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, http.StatusInternalServerError, result.Outcomes[0].Result["http_code"])
}

func TestRun_APICallTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	f := newFixture(t)
	f.registry.Register(apicall.Type, apicall.New(nil))
	f.save(t, &models.WorkflowDefinition{
		ID:       "wf",
		IsActive: true,
		Actions:  []models.ActionSpec{{Type: apicall.Type, Config: map[string]any{"url": url}}, {Type: "ok"}},
	})

	result, err := f.engine.Run(context.Background(), "wf", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Len(t, result.Outcomes, 2)
	assert.Contains(t, result.Outcomes[0].Error, "transport error")
}

func TestFire_MissingFieldFailsCondition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, &models.WorkflowDefinition{
		ID:         "wf",
		IsActive:   true,
		Actions:    actions("ok"),
		Conditions: []models.ConditionSpec{{Field: "amount", Operator: models.OperatorGreaterThan, Value: 100}},
	})

	_, err := f.engine.Fire(context.Background(), "wf", map[string]any{"other": 500})
	require.ErrorIs(t, err, engine.ErrConditionsNotMet)

	records, err := f.store.ExecutionsByWorkflow(context.Background(), "wf")
	require.NoError(t, err)
	assert.Empty(t, records)

	result, err := f.engine.Fire(context.Background(), "wf", map[string]any{"amount": 500})
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
}

func TestRun_DefinitionNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, &models.WorkflowDefinition{ID: "inactive", IsActive: false, Actions: actions("ok")})
	f.save(t, &models.WorkflowDefinition{ID: "scoped", ScopeID: "team-a", IsActive: true, Actions: actions("ok")})

	_, err := f.engine.Run(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, engine.ErrDefinitionNotFound)

	_, err = f.engine.Run(context.Background(), "inactive", nil)
	assert.ErrorIs(t, err, engine.ErrDefinitionNotFound)

	_, err = f.engine.Run(context.Background(), "scoped", nil, engine.WithScope("team-b"))
	assert.ErrorIs(t, err, engine.ErrDefinitionNotFound)

	_, err = f.engine.Run(context.Background(), "scoped", nil, engine.WithScope("team-a"))
	assert.NoError(t, err)

	f.save(t, &models.WorkflowDefinition{ID: "empty", IsActive: true})

	_, err = f.engine.Run(context.Background(), "empty", nil)
	require.ErrorIs(t, err, engine.ErrInvalidDefinition)
	assert.False(t, engine.IsDefinitionNotFound(err))

	_, err = f.engine.Fire(context.Background(), "empty", nil)
	require.ErrorIs(t, err, engine.ErrInvalidDefinition)

	for _, id := range []string{"missing", "inactive", "empty"} {
		records, err := f.store.ExecutionsByWorkflow(context.Background(), id)
		require.NoError(t, err)
		assert.Empty(t, records)
	}
}

func TestRun_TriggerContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, engine.WithConfig(engine.Config{ActionTimeout: time.Minute}))

	var got models.TriggerContext

	f.registry.Register("capture", protocol.HandlerFunc(func(ctx context.Context, _ map[string]any, tc models.TriggerContext, _ *slog.Logger) (map[string]any, error) {
		got = tc

		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.Equal(t, deadline, tc.Deadline)

		return nil, nil
	}))
	f.save(t, &models.WorkflowDefinition{ID: "wf", ScopeID: "team-a", AIModel: "small", IsActive: true, Actions: actions("capture")})

	actor := models.Actor{ID: "u1", Name: "Ada", Email: "ada@example.com"}

	result, err := f.engine.Run(context.Background(), "wf", map[string]any{"k": "v"}, engine.WithActor(actor))
	require.NoError(t, err)

	assert.Equal(t, result.ExecutionID, got.ExecutionID)
	assert.Equal(t, "wf", got.WorkflowID)
	assert.Equal(t, "team-a", got.ScopeID)
	assert.Equal(t, "small", got.AIModel)
	assert.Equal(t, actor, got.Actor)
	assert.Equal(t, map[string]any{"k": "v"}, got.Payload)
	assert.WithinDuration(t, time.Now().Add(time.Minute), got.Deadline, 5*time.Second)
}

func TestRun_ActionDeadline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, engine.WithConfig(engine.Config{ActionTimeout: 20 * time.Millisecond}))
	f.registry.Register("slow", protocol.HandlerFunc(func(ctx context.Context, _ map[string]any, _ models.TriggerContext, _ *slog.Logger) (map[string]any, error) {
		<-ctx.Done()

		return nil, ctx.Err()
	}))
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, Actions: actions("slow", "ok")})

	result, err := f.engine.Run(context.Background(), "wf", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	require.Len(t, result.Outcomes, 2, "a timed out action is an ordinary failure")
	assert.Contains(t, result.Outcomes[0].Error, context.DeadlineExceeded.Error())
	assert.True(t, result.Outcomes[1].Success)
}

func TestRun_CancellationStopsTheRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.registry.Register("cancel", protocol.HandlerFunc(func(context.Context, map[string]any, models.TriggerContext, *slog.Logger) (map[string]any, error) {
		cancel()

		return map[string]any{}, nil
	}))
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, Actions: actions("cancel", "ok", "ok")})

	result, err := f.engine.Run(ctx, "wf", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	require.Len(t, result.Outcomes, 2)
	assert.True(t, result.Outcomes[0].Success)
	assert.Equal(t, "ok", result.Outcomes[1].ActionType)
	assert.Contains(t, result.Outcomes[1].Error, "execution cancelled")

	record, err := f.store.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, record.Status, "the record is finalized despite the cancelled context")
}

func TestRun_PanicIsRecordedAndFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.registry.Register("panics", protocol.HandlerFunc(func(context.Context, map[string]any, models.TriggerContext, *slog.Logger) (map[string]any, error) {
		panic("nil map")
	}))
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, Actions: actions("panics", "ok")})

	result, err := f.engine.Run(context.Background(), "wf", nil)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "action panicked: nil map", result.Outcomes[0].Error)

	record, err := f.store.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
}

func TestRun_ConcurrencyLimit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})

	f.registry.Register("block", protocol.HandlerFunc(func(context.Context, map[string]any, models.TriggerContext, *slog.Logger) (map[string]any, error) {
		close(entered)
		<-release

		return nil, nil
	}))
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, MaxConcurrentRuns: 1, Actions: actions("block")})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		_, err := f.engine.Run(context.Background(), "wf", nil)
		assert.NoError(t, err)
	}()

	<-entered

	_, err := f.engine.Run(context.Background(), "wf", nil)
	require.ErrorIs(t, err, engine.ErrConcurrencyLimitReached)

	close(release)
	wg.Wait()

	records, err := f.store.ExecutionsByWorkflow(context.Background(), "wf")
	require.NoError(t, err)
	assert.Len(t, records, 1, "a rejected run creates no record")
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []engine.RunInfo
	finished []*models.ExecutionResult
}

func (o *recordingObserver) ExecutionStarted(_ context.Context, run engine.RunInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.started = append(o.started, run)
}

func (o *recordingObserver) ExecutionFinished(_ context.Context, _ engine.RunInfo, result *models.ExecutionResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.finished = append(o.finished, result)
}

func TestRun_Observers(t *testing.T) {
	t.Parallel()

	observer := &recordingObserver{}
	f := newFixture(t, engine.WithObservers(observer))
	f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, Actions: actions("ok")})

	result, err := f.engine.Run(context.Background(), "wf", map[string]any{"x": 1})
	require.NoError(t, err)

	require.Len(t, observer.started, 1)
	assert.Equal(t, result.ExecutionID, observer.started[0].ExecutionID)
	require.Len(t, observer.finished, 1)
	assert.Equal(t, result, observer.finished[0])
}

type panicObserver struct {
	onStart  bool
	onFinish bool
}

func (o panicObserver) ExecutionStarted(context.Context, engine.RunInfo) {
	if o.onStart {
		panic("observer start")
	}
}

func (o panicObserver) ExecutionFinished(context.Context, engine.RunInfo, *models.ExecutionResult) {
	if o.onFinish {
		panic("observer finish")
	}
}

func TestRun_PanickingObserverDoesNotAffectRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		observer panicObserver
	}{
		{"on start", panicObserver{onStart: true}},
		{"on finish", panicObserver{onFinish: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			recorder := &recordingObserver{}
			f := newFixture(t, engine.WithObservers(tt.observer, recorder))
			f.save(t, &models.WorkflowDefinition{ID: "wf", IsActive: true, Actions: actions("ok")})

			result, err := f.engine.Run(context.Background(), "wf", nil)
			require.NoError(t, err)
			assert.Equal(t, models.ExecutionStatusSucceeded, result.Status)
			assert.Len(t, recorder.started, 1, "later observers still run")
			assert.Len(t, recorder.finished, 1)

			record, err := f.store.ExecutionByID(context.Background(), result.ExecutionID)
			require.NoError(t, err)
			assert.Equal(t, models.ExecutionStatusSucceeded, record.Status)
			assert.NotNil(t, record.CompletedAt)
		})
	}
}

func TestRun_PanicInRecorderFinalizesOnce(t *testing.T) {
	t.Parallel()

	coordinator, recorder := mockedEngine(t, activeWorkflow("ok", "ok"))
	recorder.On("CreateRunning", mock.Anything, "wf", mock.Anything).Return("exec-1", nil)
	recorder.On("AppendOutcome", mock.Anything, "exec-1", mock.Anything).Return(nil).Once()
	recorder.On("AppendOutcome", mock.Anything, "exec-1", mock.Anything).Run(func(mock.Arguments) {
		panic("driver bug")
	}).Once()
	recorder.On("Finalize", mock.Anything, "exec-1", models.ExecutionStatusFailed, mock.MatchedBy(func(outcomes []models.ActionOutcome) bool {
		return len(outcomes) == 2
	}), mock.Anything, mock.MatchedBy(func(msg string) bool {
		return msg == "execution exec-1 panicked: driver bug"
	})).Return(nil).Once()

	_, err := coordinator.Run(context.Background(), "wf", nil)

	var perr *engine.ExecutionPanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "driver bug", perr.Value)
	recorder.AssertNumberOfCalls(t, "Finalize", 1)
}

func activeWorkflow(actionTypes ...string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{ID: "wf", IsActive: true, TriggerType: models.TriggerTypeManual, Actions: actions(actionTypes...)}
}

func mockedEngine(t *testing.T, def *models.WorkflowDefinition) (*engine.Coordinator, *mocks.MockExecutionRecorder) {
	t.Helper()

	workflows := &mocks.MockWorkflowStore{}
	workflows.On("WorkflowByID", mock.Anything, def.ID, "").Return(def, nil)

	reg := registry.New(discard())
	reg.Register("ok", succeed(nil))

	recorder := &mocks.MockExecutionRecorder{}

	t.Cleanup(func() {
		workflows.AssertExpectations(t)
		recorder.AssertExpectations(t)
	})

	return engine.New(workflows, recorder, reg, discard()), recorder
}

func TestRun_CreateRunningFailure(t *testing.T) {
	t.Parallel()

	coordinator, recorder := mockedEngine(t, activeWorkflow("ok"))
	recorder.On("CreateRunning", mock.Anything, "wf", mock.Anything).Return("", errors.New("disk full"))

	_, err := coordinator.Run(context.Background(), "wf", nil)
	require.Error(t, err)
	assert.True(t, engine.IsPersistenceError(err))
	recorder.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_AppendFailureFinalizesAsFailed(t *testing.T) {
	t.Parallel()

	coordinator, recorder := mockedEngine(t, activeWorkflow("ok", "ok"))
	recorder.On("CreateRunning", mock.Anything, "wf", mock.Anything).Return("exec-1", nil)
	recorder.On("AppendOutcome", mock.Anything, "exec-1", mock.Anything).Return(errors.New("connection reset")).Once()
	recorder.On("Finalize", mock.Anything, "exec-1", models.ExecutionStatusFailed, mock.Anything, mock.Anything, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil).Once()

	_, err := coordinator.Run(context.Background(), "wf", nil)
	require.Error(t, err)

	var perr *engine.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "append_outcome", perr.Op)
	assert.Equal(t, "exec-1", perr.ExecutionID)
	recorder.AssertNumberOfCalls(t, "AppendOutcome", 1)
}

func TestRun_FinalizeFailureRetriesOnceAsFailed(t *testing.T) {
	t.Parallel()

	coordinator, recorder := mockedEngine(t, activeWorkflow("ok"))
	recorder.On("CreateRunning", mock.Anything, "wf", mock.Anything).Return("exec-1", nil)
	recorder.On("AppendOutcome", mock.Anything, "exec-1", mock.Anything).Return(nil)
	recorder.On("Finalize", mock.Anything, "exec-1", models.ExecutionStatusSucceeded, mock.Anything, mock.Anything, "").
		Return(errors.New("timeout")).Once()
	recorder.On("Finalize", mock.Anything, "exec-1", models.ExecutionStatusFailed, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Once()

	_, err := coordinator.Run(context.Background(), "wf", nil)
	require.Error(t, err)
	assert.True(t, engine.IsPersistenceError(err))
	recorder.AssertNumberOfCalls(t, "Finalize", 2)
}

func TestRun_StoreFailureIsNotDefinitionNotFound(t *testing.T) {
	t.Parallel()

	workflows := &mocks.MockWorkflowStore{}
	workflows.On("WorkflowByID", mock.Anything, "wf", "").Return(nil, errors.New("db down"))

	coordinator := engine.New(workflows, &mocks.MockExecutionRecorder{}, registry.New(discard()), discard())

	_, err := coordinator.Run(context.Background(), "wf", nil)
	require.Error(t, err)
	assert.False(t, engine.IsDefinitionNotFound(err))

	workflows2 := &mocks.MockWorkflowStore{}
	workflows2.On("WorkflowByID", mock.Anything, "wf", "").Return(nil, persistence.ErrWorkflowNotFound)

	_, err = engine.New(workflows2, &mocks.MockExecutionRecorder{}, registry.New(discard()), discard()).Run(context.Background(), "wf", nil)
	assert.True(t, engine.IsDefinitionNotFound(err))
}
