package driver

import (
	"context"
	"errors"
	"time"

	"tephra/internal/incremental"
	"tephra/internal/trace"
)

// DefaultWatchInterval is how often Watch polls the files.
const DefaultWatchInterval = 500 * time.Millisecond

// Watch runs the session once, then again every time the digest of the stub
// files under paths changes. The file list is collected anew on every tick,
// so added and removed files are noticed. Runs are incremental: a session
// without a store gets an in-memory one. onResult receives every run's
// outcome; Watch returns when ctx is done.
func (s *Session) Watch(ctx context.Context, paths []string, interval time.Duration, onResult func(*Result, error)) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	s.mu.Lock()
	if s.opts.Store == nil {
		s.opts.Store = incremental.NewMemoryStore()
		s.engine.Store = s.opts.Store
	}
	s.opts.Diff = true
	s.mu.Unlock()

	tracer := trace.FromContext(ctx)
	var last Digest
	var lastErr string
	first := true
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		files, err := CollectFiles(ctx, paths)
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			// одна и та же ошибка не повторяется на каждом тике
			if err.Error() != lastErr {
				lastErr = err.Error()
				onResult(nil, err)
			}
			first = true
		default:
			lastErr = ""
			digest := DigestFiles(files)
			if first || digest != last {
				first = false
				last = digest
				trace.Point(tracer, trace.ScopeDriver, "watch_rerun", "")
				s.mu.Lock()
				res, err := s.runFiles(ctx, files)
				s.mu.Unlock()
				if ctx.Err() != nil {
					return nil
				}
				onResult(res, err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
