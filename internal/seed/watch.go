package seed

import (
	"context"
	"os"
	"time"
)

// Watch applies path once, then polls its modification time every interval
// and re-applies it when it changes. Reload failures are logged and the
// previous state is kept. The initial apply error is returned.
func (a *Applier) Watch(ctx context.Context, path string, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if _, err := a.LoadAndApply(ctx, path); err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					a.log.Warn().Err(err).Str("path", path).Msg("seed stat failed")
					continue
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				if _, err := a.LoadAndApply(ctx, path); err != nil {
					a.log.Error().Err(err).Str("path", path).Msg("seed reload failed")
					continue
				}
				lastMod = info.ModTime()
			}
		}
	}()
	return nil
}
