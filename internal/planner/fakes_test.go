package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"aquaplan/internal/anomaly"
	"aquaplan/internal/demand"
	"aquaplan/internal/optimizer"
	"aquaplan/internal/types"
)

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu          sync.Mutex
	runs        map[string]*types.Run
	createErr   error
	completeErr error
}

func newFakeStore() *fakeStore { return &fakeStore{runs: make(map[string]*types.Run)} }

func (f *fakeStore) Create(_ context.Context, run *types.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*types.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundRun, "run not found", nil)
	}
	return run, nil
}

func (f *fakeStore) finish(id string, status types.RunStatus, result json.RawMessage, msg string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok || run.Status != types.RunStatusQueued {
		return types.NewAppError(types.ErrCodeNotFoundRun, "run not found or already finished", nil)
	}
	run.Status = status
	run.Result = result
	run.Error = msg
	run.DurationMS = d.Milliseconds()
	return nil
}

func (f *fakeStore) Complete(_ context.Context, id string, result json.RawMessage, d time.Duration) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	return f.finish(id, types.RunStatusComplete, result, "", d)
}

func (f *fakeStore) Fail(_ context.Context, id string, msg string, d time.Duration) error {
	return f.finish(id, types.RunStatusFailed, nil, msg, d)
}

type fakeTariffs struct {
	curve types.Hourly
	err   error
	days  []time.Time
}

func (f *fakeTariffs) Tariffs(_ context.Context, day time.Time) (types.Hourly, error) {
	f.days = append(f.days, day)
	return f.curve, f.err
}

type fakeQueue struct {
	msgs []types.OptimizationJobMessage
	err  error
}

func (f *fakeQueue) Publish(_ context.Context, msg types.OptimizationJobMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

type recordedRun struct {
	kind   types.RunKind
	status types.RunStatus
}

type fakeMetrics struct {
	mu   sync.Mutex
	runs []recordedRun
}

func (f *fakeMetrics) RecordRun(_ context.Context, kind types.RunKind, status types.RunStatus, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, recordedRun{kind, status})
}

func testDefaults() Defaults {
	opt := optimizer.DefaultOptions()
	opt.PopulationSize = 12
	opt.Generations = 4
	opt.EliteCount = 2
	return Defaults{
		Optimizer: opt,
		Anomaly:   anomaly.DefaultOptions(),
		Demand:    demand.DefaultOptions(),
	}
}

func newTestService(defaults Defaults, opts ...Option) *Service {
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithSeedSource(func() uint64 { return 99 }),
	}
	s := NewService(defaults, slog.New(slog.NewTextHandler(io.Discard, nil)), append(base, opts...)...)
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("run_%d", n)
	}
	return s
}

func flat(v float64) *types.Hourly {
	var h types.Hourly
	for i := range h {
		h[i] = v
	}
	return &h
}

func touTariffs() *types.Hourly {
	var h types.Hourly
	for i := range h {
		switch {
		case i < 6:
			h[i] = 0.08
		case i >= 17 && i < 22:
			h[i] = 0.35
		default:
			h[i] = 0.18
		}
	}
	return &h
}

func testPumps() []types.Pump {
	return []types.Pump{
		{ID: "p1", RatedPowerKW: 75, Efficiency: 0.45, MaxFlow: 120},
		{ID: "p2", RatedPowerKW: 75, Efficiency: 0.5, MaxFlow: 110},
		{ID: "p3", RatedPowerKW: 55, Efficiency: 0.55, MaxFlow: 90},
	}
}

func scheduleRequest() ScheduleRequest {
	return ScheduleRequest{
		Demand:       flat(150),
		Tariffs:      touTariffs(),
		InitialLevel: 60,
		Pumps:        testPumps(),
	}
}

func readings(n int) []types.SensorReading {
	out := make([]types.SensorReading, n)
	for i := range out {
		out[i] = types.SensorReading{
			Timestamp:       testNow.Add(time.Duration(i) * time.Hour),
			EnergyPerVolume: 0.5 + float64(i%3)*0.01,
			Flow:            100 + float64(i%5),
			ReservoirLevel:  60 + float64(i%4),
		}
	}
	return out
}

func u64(v uint64) *uint64 { return &v }

func appCode(err error) types.ErrorCode {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
