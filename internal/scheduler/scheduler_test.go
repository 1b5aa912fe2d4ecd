package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"audiolib/internal/creative"
	"audiolib/internal/ensemble"
	"audiolib/internal/library"
)

func fakeTechnical(facts TechnicalResult, err error) func(context.Context, string) (TechnicalResult, error) {
	return func(context.Context, string) (TechnicalResult, error) {
		return facts, err
	}
}

func newTestScheduler(t *testing.T, cfg Config, deps Deps) *Scheduler {
	t.Helper()
	if deps.Store == nil {
		deps.Store = library.New(t.TempDir())
	}
	s := New(cfg, deps, nil)
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func TestSubmitPartialThenFinalResolveInOrder(t *testing.T) {
	deps := Deps{
		RunTechnical: fakeTechnical(TechnicalResult{}, nil),
		RunCreative: func(context.Context, creative.Request) creative.Result {
			return creative.Result{Facts: creative.DefaultFacts(), Status: creative.StatusOK}
		},
		RunInstrumentation: func(context.Context, string) (InstrumentationResult, error) {
			return InstrumentationResult{}, nil
		},
	}
	s := newTestScheduler(t, Config{Mode: ModeConcurrent}, deps)
	s.SignalReady()

	handle := s.Submit("/music/a.mp3")

	select {
	case <-handle.Partial:
	case <-time.After(time.Second):
		t.Fatal("expected a partial record before the final result")
	}

	select {
	case final := <-handle.Final:
		if final.Err != nil {
			t.Fatalf("unexpected error: %v", final.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a final result")
	}
}

func TestSubmitTechnicalFailureSkipsPersistence(t *testing.T) {
	var creativeCalled, instrCalled atomic.Bool
	deps := Deps{
		RunTechnical: fakeTechnical(TechnicalResult{}, context.DeadlineExceeded),
		RunCreative: func(context.Context, creative.Request) creative.Result {
			creativeCalled.Store(true)
			return creative.Result{Facts: creative.DefaultFacts()}
		},
		RunInstrumentation: func(context.Context, string) (InstrumentationResult, error) {
			instrCalled.Store(true)
			return InstrumentationResult{}, nil
		},
	}
	s := newTestScheduler(t, Config{Mode: ModeConcurrent}, deps)
	s.SignalReady()

	handle := s.Submit("/music/bad.mp3")

	select {
	case <-handle.Partial:
		t.Fatal("expected no partial record on a technical-phase failure")
	case final := <-handle.Final:
		if final.Err == nil {
			t.Fatal("expected an error result")
		}
	case <-time.After(time.Second):
		t.Fatal("expected a final result")
	}

	if creativeCalled.Load() || instrCalled.Load() {
		t.Fatal("background phases must not run when the technical phase fails")
	}
}

func TestSubmitSequentialModeRunsInstrumentationAfterCreative(t *testing.T) {
	var creativeDone atomic.Bool
	var orderViolated atomic.Bool
	deps := Deps{
		RunTechnical: fakeTechnical(TechnicalResult{}, nil),
		RunCreative: func(context.Context, creative.Request) creative.Result {
			time.Sleep(20 * time.Millisecond)
			creativeDone.Store(true)
			return creative.Result{Facts: creative.DefaultFacts(), Status: creative.StatusOK}
		},
		RunInstrumentation: func(context.Context, string) (InstrumentationResult, error) {
			if !creativeDone.Load() {
				orderViolated.Store(true)
			}
			return InstrumentationResult{}, nil
		},
	}
	s := newTestScheduler(t, Config{Mode: ModeSequential}, deps)
	s.SignalReady()

	handle := s.Submit("/music/seq.mp3")
	<-handle.Partial
	<-handle.Final

	if orderViolated.Load() {
		t.Fatal("sequential mode must not admit instrumentation before creative completes")
	}
}

func TestSubmitConcurrentModeDoesNotBlockInstrumentationOnCreative(t *testing.T) {
	release := make(chan struct{})
	var instrStarted atomic.Bool
	deps := Deps{
		RunTechnical: fakeTechnical(TechnicalResult{}, nil),
		RunCreative: func(context.Context, creative.Request) creative.Result {
			<-release
			return creative.Result{Facts: creative.DefaultFacts(), Status: creative.StatusOK}
		},
		RunInstrumentation: func(context.Context, string) (InstrumentationResult, error) {
			instrStarted.Store(true)
			return InstrumentationResult{}, nil
		},
	}
	s := newTestScheduler(t, Config{Mode: ModeConcurrent}, deps)
	s.SignalReady()

	handle := s.Submit("/music/conc.mp3")
	<-handle.Partial

	deadline := time.After(time.Second)
	for !instrStarted.Load() {
		select {
		case <-deadline:
			close(release)
			t.Fatal("expected instrumentation to start without waiting on creative")
		case <-time.After(time.Millisecond):
		}
	}
	close(release)
	<-handle.Final
}

func TestSchedulerBoundsTechnicalConcurrency(t *testing.T) {
	const workers = 2
	var inFlight, maxSeen int32
	deps := Deps{
		RunTechnical: func(context.Context, string) (TechnicalResult, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return TechnicalResult{}, nil
		},
		RunCreative: func(context.Context, creative.Request) creative.Result {
			return creative.Result{Facts: creative.DefaultFacts()}
		},
		RunInstrumentation: func(context.Context, string) (InstrumentationResult, error) {
			return InstrumentationResult{}, nil
		},
	}
	s := newTestScheduler(t, Config{TechnicalWorkers: workers, Mode: ModeConcurrent}, deps)
	s.SignalReady()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		h := s.Submit("/music/track.mp3")
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-h.Final
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&maxSeen) > workers {
		t.Fatalf("expected at most %d concurrent technical runs, saw %d", workers, maxSeen)
	}
}

func TestDispatchBufferFlushesOnSignalReady(t *testing.T) {
	deps := Deps{
		RunTechnical: fakeTechnical(TechnicalResult{}, nil),
		RunCreative: func(context.Context, creative.Request) creative.Result {
			return creative.Result{Facts: creative.DefaultFacts()}
		},
		RunInstrumentation: func(context.Context, string) (InstrumentationResult, error) {
			return InstrumentationResult{}, nil
		},
	}
	s := newTestScheduler(t, Config{DispatchReadyTimeout: time.Hour}, deps)

	handle := s.Submit("/music/buffered.mp3")
	select {
	case <-handle.Final:
		t.Fatal("submission should be buffered until readiness is signalled")
	case <-time.After(50 * time.Millisecond):
	}

	s.SignalReady()
	select {
	case <-handle.Final:
	case <-time.After(time.Second):
		t.Fatal("expected buffered submission to flush after SignalReady")
	}
}

func TestDispatchBufferWatchdogAutoFlushes(t *testing.T) {
	deps := Deps{
		RunTechnical: fakeTechnical(TechnicalResult{}, nil),
		RunCreative: func(context.Context, creative.Request) creative.Result {
			return creative.Result{Facts: creative.DefaultFacts()}
		},
		RunInstrumentation: func(context.Context, string) (InstrumentationResult, error) {
			return InstrumentationResult{}, nil
		},
	}
	s := newTestScheduler(t, Config{DispatchReadyTimeout: 20 * time.Millisecond}, deps)

	handle := s.Submit("/music/watchdog.mp3")
	select {
	case <-handle.Final:
	case <-time.After(time.Second):
		t.Fatal("expected the watchdog to assume readiness and flush the buffer")
	}
}

func TestBuildAnalysisElevatesElectronicConfidenceOnElectronicGenre(t *testing.T) {
	out := ensemble.Output{
		ElectronicElements: &ensemble.ElectronicElements{Detected: true, Confidence: "low"},
	}
	analysis := buildAnalysis(out, nil, []string{"Rock", "Electronic"})
	if analysis.ElectronicElements == nil || analysis.ElectronicElements.Confidence != "medium" {
		t.Fatalf("expected elevation to medium, got %+v", analysis.ElectronicElements)
	}
}

func TestBuildAnalysisLeavesConfidenceWithoutElectronicGenre(t *testing.T) {
	out := ensemble.Output{
		ElectronicElements: &ensemble.ElectronicElements{Detected: true, Confidence: "low"},
	}
	analysis := buildAnalysis(out, nil, []string{"Rock"})
	if analysis.ElectronicElements == nil || analysis.ElectronicElements.Confidence != "low" {
		t.Fatalf("expected confidence to stay low, got %+v", analysis.ElectronicElements)
	}
}

func TestProbeRescueNamesOrdersByFixedCandidateList(t *testing.T) {
	got := probeRescueNames(map[string]bool{"strings": true, "drums": true})
	want := []string{"Drum Kit (acoustic)", "Strings"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
