package media

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// ChromeRenderer screenshots pages with a headless Chrome instance that is
// scoped to a single call: every Screenshot launches a fresh browser and
// tears it down on all exit paths, success or error. Instances are never
// pooled or shared between requests.
type ChromeRenderer struct {
	execPath string
	timeout  time.Duration
	settle   time.Duration
	width    int
	height   int
	log      *logrus.Entry
}

// RendererConfig bounds the render fallback. Zero values fall back to the
// defaults: 30s navigation timeout, 2s settle delay, 1280x800 viewport.
type RendererConfig struct {
	ChromePath string
	Timeout    time.Duration
	Settle     time.Duration
	Width      int
	Height     int
}

func NewChromeRenderer(cfg RendererConfig) *ChromeRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 2 * time.Second
	}
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 800
	}
	return &ChromeRenderer{
		execPath: cfg.ChromePath,
		timeout:  cfg.Timeout,
		settle:   cfg.Settle,
		width:    cfg.Width,
		height:   cfg.Height,
		log:      logrus.WithField("component", "renderer"),
	}
}

// Screenshot navigates to the URL, allows late-rendering content to settle,
// and captures a full-page screenshot. The navigation timeout is the only
// bound on worst-case latency.
func (r *ChromeRenderer) Screenshot(ctx context.Context, url string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(r.width, r.height),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancelRun := context.WithTimeout(browserCtx, r.timeout)
	defer cancelRun()

	start := time.Now()
	var buf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(r.settle),
		chromedp.FullScreenshot(&buf, 90),
	)
	if err != nil {
		return nil, fmt.Errorf("headless render of %s: %w", url, err)
	}
	r.log.WithFields(logrus.Fields{
		"url":     url,
		"bytes":   len(buf),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("page rendered")
	return buf, nil
}
