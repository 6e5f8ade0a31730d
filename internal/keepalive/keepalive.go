// Package keepalive periodically pings the service's own health endpoint so
// free-tier hosts do not idle the process out. Purely operational.
package keepalive

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Start launches the self-ping loop. A blank selfURL disables it.
func Start(ctx context.Context, selfURL string, every time.Duration) {
	if selfURL == "" {
		return
	}
	log := logrus.WithField("component", "keepalive")
	client := resty.New().SetTimeout(15 * time.Second)

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				resp, err := client.R().SetContext(ctx).Get(selfURL + "/health")
				if err != nil {
					log.WithError(err).Warn("self-ping failed")
					continue
				}
				log.WithField("status", resp.StatusCode()).Debug("self-ping ok")
			}
		}
	}()
}
