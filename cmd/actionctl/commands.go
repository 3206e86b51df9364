package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/cron"
	"github.com/goliatone/go-action/pipeline"
)

type runCmd struct {
	Owners      int               `help:"Number of simulated owners." default:"2"`
	Invocations int               `help:"Invocations queued per owner." default:"3"`
	Action      string            `help:"Action to invoke." default:"orders::save_order"`
	Set         map[string]string `help:"Context entries as key=value." short:"s"`
	Timeout     time.Duration     `help:"How long to wait for every result." default:"30s"`
}

type outcome struct {
	owner string
	seq   int
	ok    bool
	err   error
}

func (c *runCmd) Run(a *app) error {
	if c.Owners <= 0 || c.Invocations <= 0 {
		return fmt.Errorf("owners and invocations must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	entries := entriesFrom(c.Set)
	started := time.Now()

	var (
		mu       sync.Mutex
		outcomes []outcome
		wg       sync.WaitGroup
	)
	for i := 0; i < c.Owners; i++ {
		owner := newDemoOwner(a.logger, "")
		futures := make([]*pipeline.Future, 0, c.Invocations)
		for n := 0; n < c.Invocations; n++ {
			futures = append(futures, a.ctrl.InvokeActionAsync(ctx, owner, c.Action, entries...))
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for n, f := range futures {
				ok, err := f.Wait(ctx)
				mu.Lock()
				outcomes = append(outcomes, outcome{owner: owner.OwnerKey(), seq: n, ok: ok, err: err})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].owner != outcomes[j].owner {
			return outcomes[i].owner < outcomes[j].owner
		}
		return outcomes[i].seq < outcomes[j].seq
	})

	var failed int
	for _, o := range outcomes {
		status := "ok"
		switch {
		case o.err != nil:
			status = "timeout: " + o.err.Error()
			failed++
		case !o.ok:
			status = "failed"
			failed++
		}
		fmt.Fprintf(a.out, "%s #%d %s %s\n", o.owner, o.seq, c.Action, status)
	}
	fmt.Fprintf(a.out, "%d invocations, %d failed, %s\n", len(outcomes), failed, time.Since(started).Round(time.Millisecond))
	return nil
}

type scheduleCmd struct {
	For time.Duration `help:"How long to keep the scheduler running." default:"1m"`
}

func (c *scheduleCmd) Run(a *app) error {
	if len(a.cfg.Schedules) == 0 && len(a.exposed.Schedules()) == 0 {
		return fmt.Errorf("no schedules configured")
	}

	owners := make(map[string]action.Owner)
	for _, s := range a.cfg.Schedules {
		owner, ok := owners[s.Owner]
		if !ok {
			owner = newDemoOwner(a.logger, s.Owner)
			owners[s.Owner] = owner
		}
		if _, err := a.scheduler.ScheduleCron(cron.JobConfig{
			Name:       s.Name,
			Expression: s.Expression,
		}, cron.ActionJob(a.ctrl, owner, s.Action, s.ContextEntries()...)); err != nil {
			return fmt.Errorf("schedule %s: %w", s.Name, err)
		}
	}

	if err := a.scheduler.Start(context.Background()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "running %d schedules for %s\n", len(a.scheduler.Handles()), c.For)
	time.Sleep(c.For)

	for _, h := range a.scheduler.Handles() {
		line := fmt.Sprintf("%s runs=%d status=%s", h.Name(), h.Runs(), h.Status())
		if err := h.Err(); err != nil {
			line += " last_error=" + err.Error()
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

type actionsCmd struct{}

func (c *actionsCmd) Run(a *app) error {
	for _, name := range a.ctrl.Registry().Names() {
		line := name
		if e, ok := a.exposed.Exposure(name); ok {
			if len(e.Tags) > 0 {
				line += " tags=" + strings.Join(e.Tags, ",")
			}
			if e.Mutates {
				line += " mutates"
			}
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

func entriesFrom(set map[string]string) []action.Entry {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]action.Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, action.With(k, set[k]))
	}
	return entries
}
