package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/mihaiblaga89/ro-auto/internal/fleet"
	"github.com/mihaiblaga89/ro-auto/internal/snapshot"
)

// taskKey labels one (vehicle, subsystem) call so results are associated
// with their origin deterministically, regardless of completion order.
type taskKey struct {
	vin string
	sub fleet.Subsystem
}

// taskResult is the captured outcome of one call: either an apply function
// that overlays the successful data onto the vehicle record, or an error.
type taskResult struct {
	apply func(*snapshot.Vehicle, time.Time)
	err   error
}

// task is one dispatchable (vehicle, subsystem) call.
type task struct {
	key taskKey
	run func(ctx context.Context) taskResult
}

// collectTasks builds the flat batch for one cycle. With full false, pairs
// that already have a value or a recorded error are skipped. With only set,
// every other subsystem is skipped.
//
// All pairs across all vehicles end up in one flat batch, never nested
// per-vehicle groups, so one vehicle's stall cannot serialize another's.
func (o *Orchestrator) collectTasks(full bool, only fleet.Subsystem) []task {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var tasks []task
	for _, vehicle := range o.config.Vehicles {
		record := o.current[vehicle.VIN]

		for _, sub := range []fleet.Subsystem{fleet.Vignette, fleet.RCA, fleet.ITP} {
			if only != "" && sub != only {
				continue
			}
			if !o.enabled(vehicle, sub) {
				continue
			}
			if !full && record != nil && record.Attempted(sub) {
				continue
			}

			tasks = append(tasks, o.newTask(vehicle, sub))
		}
	}

	return tasks
}

// newTask builds the call closure for one pair. The clients capture their
// own timeouts; a timed-out call fails only its own task.
func (o *Orchestrator) newTask(vehicle fleet.Vehicle, sub fleet.Subsystem) task {
	key := taskKey{vin: vehicle.VIN, sub: sub}
	clients := o.clients

	switch sub {
	case fleet.Vignette:
		return task{key: key, run: func(ctx context.Context) taskResult {
			data, err := clients.Vignette.Check(ctx, vehicle.Plate, vehicle.VIN)
			if err != nil {
				return taskResult{err: err}
			}
			return taskResult{apply: func(v *snapshot.Vehicle, at time.Time) { v.ApplyVignette(data, at) }}
		}}
	case fleet.RCA:
		return task{key: key, run: func(ctx context.Context) taskResult {
			data, err := clients.RCA.Check(ctx, vehicle.Plate)
			if err != nil {
				return taskResult{err: err}
			}
			return taskResult{apply: func(v *snapshot.Vehicle, at time.Time) { v.ApplyRCA(data, at) }}
		}}
	default: // fleet.ITP
		return task{key: key, run: func(ctx context.Context) taskResult {
			data, err := clients.ITP.Check(ctx, vehicle.VIN)
			if err != nil {
				return taskResult{err: err}
			}
			return taskResult{apply: func(v *snapshot.Vehicle, at time.Time) { v.ApplyITP(data, at) }}
		}}
	}
}

// runBatch dispatches every task concurrently and gathers the results into a
// keyed map. Failures are captured per task; nothing is ever canceled because
// a sibling failed.
func runBatch(ctx context.Context, tasks []task) map[taskKey]taskResult {
	results := make(map[taskKey]taskResult, len(tasks))
	mu := &sync.Mutex{}
	var wg sync.WaitGroup

	for _, t := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := t.run(ctx)

			mu.Lock()
			defer mu.Unlock()
			results[t.key] = res
		}()
	}
	wg.Wait()

	return results
}
