// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package gildash

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kraklabs/gildash/pkg/gilderr"
	"github.com/kraklabs/gildash/pkg/indexer"
	"github.com/kraklabs/gildash/pkg/store"
	"github.com/kraklabs/gildash/pkg/watch"
)

// acquireRole runs the acquisition rules inside one immediate
// transaction: claim a missing row, replace a stale one, otherwise stay
// a reader.
func (g *Gildash) acquireRole(ctx context.Context) (Role, error) {
	role := RoleReader
	err := g.st.WithTx(ctx, func(tx *store.Tx) error {
		now := time.Now()
		rec, err := tx.Owner.Select(ctx)
		if err != nil {
			return err
		}
		switch {
		case rec == nil:
			if err := tx.Owner.Insert(ctx, g.pid, now); err != nil {
				return err
			}
			role = RoleOwner
		case now.Sub(rec.HeartbeatAt) >= StaleOwnerAfter:
			g.logger.Info("gildash.role.replace_stale_owner",
				"stale_pid", rec.PID,
				"heartbeat_age", now.Sub(rec.HeartbeatAt).String(),
			)
			if err := tx.Owner.Replace(ctx, g.pid, now); err != nil {
				return err
			}
			role = RoleOwner
		default:
			role = RoleReader
		}
		return nil
	})
	if err != nil {
		return RoleReader, err
	}
	return role, nil
}

// buildOwnerInfra constructs the owner-only pieces: the index
// coordinator (with the user callbacks re-subscribed), the watcher and
// the heartbeat timer.
func (g *Gildash) buildOwnerInfra() error {
	coord := g.newCoordinator()
	g.mu.Lock()
	g.coord = coord
	g.mu.Unlock()
	g.resubscribeCallbacks()

	w, err := watch.New(watch.Config{
		Root:       g.root,
		Extensions: g.opts.Extensions,
		Ignore:     g.opts.IgnorePatterns,
		Logger:     g.logger,
	})
	if err != nil {
		return gilderr.Wrap(gilderr.KindWatcher, "create watcher", err)
	}
	stop := make(chan struct{})
	g.mu.Lock()
	g.watcher = w
	g.heartbeatStop = stop
	g.mu.Unlock()

	w.Start(g.onWatchBatch)
	go g.heartbeatLoop(stop)
	return nil
}

// onWatchBatch forwards watcher events to the semantic bridge and the
// coordinator. Bridge read failures are logged and dropped.
func (g *Gildash) onWatchBatch(err error, events []watch.Event) {
	if err != nil {
		g.logger.Warn("gildash.watcher_error", "err", err)
		return
	}
	g.mu.Lock()
	coord := g.coord
	g.mu.Unlock()
	if coord == nil {
		// The owner infrastructure is mid-teardown; drop the batch.
		return
	}
	if g.bridge != nil {
		for _, ev := range events {
			switch ev.Type {
			case watch.EventCreate, watch.EventChange:
				content, readErr := os.ReadFile(g.absPath(ev.FilePath))
				if readErr != nil {
					g.logger.Debug("gildash.semantic_feed_skip", "path", ev.FilePath, "err", readErr)
					continue
				}
				g.bridge.NotifyFileChanged(ev.FilePath, content)
			case watch.EventDelete:
				g.bridge.NotifyFileDeleted(ev.FilePath)
			}
		}
	}
	coord.HandleEvents(events)
}

func (g *Gildash) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := g.st.Owner().Touch(context.Background(), g.pid, time.Now()); err != nil {
				g.logger.Warn("gildash.heartbeat_failed", "err", err)
			}
		}
	}
}

// startHealthcheck arms the reader-side timer that re-runs acquisition.
func (g *Gildash) startHealthcheck() {
	stop := make(chan struct{})
	g.mu.Lock()
	g.healthStop = stop
	g.mu.Unlock()
	go g.healthcheckLoop(stop)
}

func (g *Gildash) healthcheckLoop(stop chan struct{}) {
	ticker := time.NewTicker(HealthcheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if g.healthcheckTick() {
				return
			}
		}
	}
}

// healthcheckTick runs one acquisition attempt. Returns true when this
// loop must stop: either the reader was promoted or the instance gave
// up and closed itself.
func (g *Gildash) healthcheckTick() bool {
	g.mu.Lock()
	if g.closed || g.role != RoleReader {
		g.mu.Unlock()
		return true
	}
	g.mu.Unlock()

	role, err := g.acquireRole(context.Background())
	if err != nil {
		g.healthFails++
		g.logger.Warn("gildash.healthcheck_failed", "consecutive", g.healthFails, "err", err)
		if g.healthFails >= MaxHealthcheckRetries {
			g.logger.Error("gildash.healthcheck_giving_up", "retries", g.healthFails)
			go func() {
				if closeErr := g.Close(); closeErr != nil {
					g.logger.Warn("gildash.self_close_failed", "err", closeErr)
				}
			}()
			return true
		}
		return false
	}
	g.healthFails = 0

	if role != RoleOwner {
		return false
	}
	if err := g.promote(); err != nil {
		g.logger.Error("gildash.promotion_failed", "err", err)
		return false
	}
	return true
}

// promote turns this reader into the owner: build the owner
// infrastructure, run a full index and prime the semantic bridge with
// every tracked file. Any failure rolls the promotion back and the
// healthcheck keeps running.
func (g *Gildash) promote() error {
	g.logger.Info("gildash.promote", "pid", g.pid)

	g.mu.Lock()
	g.role = RoleOwner
	g.mu.Unlock()

	if err := g.buildOwnerInfra(); err != nil {
		g.rollbackPromotion()
		return err
	}
	ctx := context.Background()
	if _, err := g.coord.FullIndex(ctx); err != nil {
		g.rollbackPromotion()
		return fmt.Errorf("promotion full index: %w", err)
	}

	if g.bridge != nil {
		files, err := g.st.Files().GetAll(ctx, g.defaultProject)
		if err != nil {
			g.logger.Warn("gildash.promotion_semantic_feed_failed", "err", err)
		} else {
			for _, rec := range files {
				content, readErr := os.ReadFile(g.absPath(rec.FilePath))
				if readErr != nil {
					g.logger.Debug("gildash.semantic_feed_skip", "path", rec.FilePath, "err", readErr)
					continue
				}
				g.bridge.NotifyFileChanged(rec.FilePath, content)
			}
		}
	}

	// The promoted owner heartbeats on the usual cadence; the
	// healthcheck loop exits via the caller.
	return nil
}

// rollbackPromotion tears down any partially built owner infrastructure,
// swallowing secondary errors to the logger, returns the instance to the
// reader role and re-arms the healthcheck.
func (g *Gildash) rollbackPromotion() {
	g.mu.Lock()
	heartbeatStop := g.heartbeatStop
	watcher := g.watcher
	coord := g.coord
	g.heartbeatStop = nil
	g.watcher = nil
	g.coord = nil
	g.mu.Unlock()

	if heartbeatStop != nil {
		close(heartbeatStop)
	}
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			g.logger.Warn("gildash.rollback_watcher_close", "err", err)
		}
	}
	if coord != nil {
		g.dropCoordinatorSubscriptions()
		if err := coord.Close(); err != nil {
			g.logger.Warn("gildash.rollback_coordinator_close", "err", err)
		}
	}
	if err := g.st.Owner().Delete(context.Background(), g.pid); err != nil {
		g.logger.Warn("gildash.rollback_release_owner", "err", err)
	}

	g.mu.Lock()
	g.role = RoleReader
	g.mu.Unlock()
	g.startHealthcheck()
}

// registerSignalHandlers installs close-on-termination handlers. Every
// registration is tracked so Close unregisters exactly what was
// registered.
func (g *Gildash) registerSignalHandlers() {
	g.sigCh = make(chan os.Signal, 1)
	g.sigDone = make(chan struct{})
	signal.Notify(g.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-g.sigDone:
			return
		case sig := <-g.sigCh:
			g.logger.Info("gildash.signal", "signal", sig.String())
			if err := g.Close(); err != nil {
				g.logger.Warn("gildash.signal_close_failed", "err", err)
			}
		}
	}()
}

func (g *Gildash) unregisterSignalHandlers() {
	if g.sigCh == nil {
		return
	}
	signal.Stop(g.sigCh)
	close(g.sigDone)
	g.sigCh = nil
	g.sigDone = nil
}

// OnIndexed subscribes cb to index-run completions. The callback set is
// owned by the runtime: promotion re-subscribes every live callback to
// the new coordinator. The returned unsubscribe is idempotent.
func (g *Gildash) OnIndexed(cb func(indexer.Result)) func() {
	g.mu.Lock()
	coord := g.coord
	g.mu.Unlock()

	g.cbMu.Lock()
	id := g.nextCB
	g.nextCB++
	g.userCBs[id] = cb
	if coord != nil {
		g.userUnsubs[id] = coord.OnIndexed(cb)
	}
	g.cbMu.Unlock()

	return func() {
		g.cbMu.Lock()
		defer g.cbMu.Unlock()
		if unsub, ok := g.userUnsubs[id]; ok {
			unsub()
			delete(g.userUnsubs, id)
		}
		delete(g.userCBs, id)
	}
}

// resubscribeCallbacks attaches every runtime-owned callback to the
// current coordinator. Called whenever a coordinator is (re)built.
func (g *Gildash) resubscribeCallbacks() {
	g.mu.Lock()
	coord := g.coord
	g.mu.Unlock()
	if coord == nil {
		return
	}
	g.cbMu.Lock()
	defer g.cbMu.Unlock()
	for id, cb := range g.userCBs {
		g.userUnsubs[id] = coord.OnIndexed(cb)
	}
}

// dropCoordinatorSubscriptions forgets the per-coordinator handles while
// keeping the runtime-owned callback set for later re-subscription.
func (g *Gildash) dropCoordinatorSubscriptions() {
	g.cbMu.Lock()
	defer g.cbMu.Unlock()
	for id, unsub := range g.userUnsubs {
		unsub()
		delete(g.userUnsubs, id)
	}
}

// Close tears the instance down in order, collecting every step's
// failure into one aggregated error while always running the remaining
// steps. Idempotent: a second call returns nil immediately.
func (g *Gildash) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	wasOwner := g.role == RoleOwner
	coord := g.coord
	watcher := g.watcher
	heartbeatStop := g.heartbeatStop
	healthStop := g.healthStop
	g.coord = nil
	g.watcher = nil
	g.heartbeatStop = nil
	g.healthStop = nil
	g.mu.Unlock()

	var failures []error

	if heartbeatStop != nil {
		close(heartbeatStop)
	}
	if healthStop != nil {
		close(healthStop)
	}

	if g.bridge != nil {
		if err := g.bridge.Dispose(); err != nil {
			failures = append(failures, fmt.Errorf("dispose semantic bridge: %w", err))
		}
	}

	if coord != nil {
		if err := coord.Close(); err != nil {
			failures = append(failures, fmt.Errorf("close index coordinator: %w", err))
		}
	}

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			failures = append(failures, fmt.Errorf("close watcher: %w", err))
		}
	}

	if wasOwner {
		if err := g.st.Owner().Delete(context.Background(), g.pid); err != nil {
			failures = append(failures, fmt.Errorf("release owner row: %w", err))
		}
	}

	if err := g.st.Close(); err != nil {
		failures = append(failures, fmt.Errorf("close store: %w", err))
	}

	if g.opts.CleanupOnClose {
		if err := store.RemoveFiles(g.st.Path()); err != nil {
			failures = append(failures, fmt.Errorf("remove store files: %w", err))
		}
	}

	g.unregisterSignalHandlers()

	if err := gilderr.NewClose(failures); err != nil {
		g.logger.Warn("gildash.close_errors", "count", len(failures))
		return err
	}
	g.logger.Info("gildash.close", "root", g.root)
	return nil
}

func (g *Gildash) absPath(rel string) string {
	return filepath.Join(g.root, filepath.FromSlash(rel))
}
