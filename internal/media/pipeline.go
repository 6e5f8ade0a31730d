package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var (
	// ErrProbeFailed means the classification request itself errored before
	// any status code was obtained.
	ErrProbeFailed = errors.New("content probe failed")
	// ErrFetchFailed means the direct download returned a non-success status
	// or died mid-transfer.
	ErrFetchFailed = errors.New("image fetch failed")
	// ErrEmptyMedia means an acquisition tier produced zero bytes.
	ErrEmptyMedia = errors.New("acquired media is empty")
)

// Method tags how an image buffer was acquired.
type Method string

const (
	MethodDirect    Method = "direct"
	MethodRendered  Method = "rendered"
	MethodTemplated Method = "templated"
)

// Image is an owned, immutable acquisition result. It is used for exactly one
// send and then discarded; nothing is cached.
type Image struct {
	Data   []byte
	Method Method
	Mime   string
}

// Size returns the byte length of the buffer.
func (i Image) Size() int { return len(i.Data) }

// Request is the union of the two acquisition shapes: a remote URL or a
// poster template. Exactly one is active; a non-nil Poster wins and skips the
// probe/fetch/render tiers entirely.
type Request struct {
	URL     string
	Caption string
	Poster  *PosterRequest
}

// Renderer captures a page as an image. The production implementation drives
// headless Chrome; tests inject a fake.
type Renderer interface {
	Screenshot(ctx context.Context, url string) ([]byte, error)
}

type contentClass int

const (
	classImage contentClass = iota
	classHTML
	classUnknown
)

// Pipeline resolves a Request into an Image via a tiered strategy:
// probe-classified direct fetch, headless render fallback, or local template
// rasterization.
type Pipeline struct {
	http     *resty.Client
	renderer Renderer
	log      *logrus.Entry
}

func NewPipeline(renderer Renderer) *Pipeline {
	return &Pipeline{
		http:     resty.New().SetTimeout(20 * time.Second),
		renderer: renderer,
		log:      logrus.WithField("component", "media"),
	}
}

// Acquire turns a request into a validated, non-empty image buffer.
func (p *Pipeline) Acquire(ctx context.Context, req Request) (Image, error) {
	if req.Poster != nil {
		data, err := RenderPoster(*req.Poster)
		if err != nil {
			return Image{}, err
		}
		return p.validated(Image{Data: data, Method: MethodTemplated, Mime: "image/jpeg"})
	}

	class, contentType, err := p.probe(ctx, req.URL)
	if err != nil {
		return Image{}, err
	}
	switch class {
	case classImage:
		data, err := p.fetch(ctx, req.URL)
		if err != nil {
			return Image{}, err
		}
		return p.validated(Image{Data: data, Method: MethodDirect, Mime: contentType})
	default:
		// html and unknown both land here: a headless render is the only
		// strategy that can recover content when the declared type does not
		// guarantee raw image bytes.
		data, err := p.renderer.Screenshot(ctx, req.URL)
		if err != nil {
			return Image{}, fmt.Errorf("render fallback: %w", err)
		}
		return p.validated(Image{Data: data, Method: MethodRendered, Mime: "image/png"})
	}
}

// probe issues a header-only request and classifies by the declared content
// type. The declaration is trusted as-is; bytes are never sniffed.
func (p *Pipeline) probe(ctx context.Context, url string) (contentClass, string, error) {
	resp, err := p.http.R().SetContext(ctx).Head(url)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// A stalled probe says nothing about the content; the render
			// tier is the only strategy left.
			p.log.WithField("url", url).Warn("probe timed out, falling back to render")
			return classUnknown, "", nil
		}
		// No status code obtained; not retried.
		return classUnknown, "", fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	contentType := resp.Header().Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	class := classify(mediaType)
	p.log.WithFields(logrus.Fields{
		"url":          url,
		"content_type": mediaType,
		"class":        class,
	}).Debug("probed remote content")
	return class, mediaType, nil
}

func classify(mediaType string) contentClass {
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return classImage
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		return classHTML
	default:
		return classUnknown
	}
}

func (p *Pipeline) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := p.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d from %s", ErrFetchFailed, resp.StatusCode(), url)
	}
	return resp.Body(), nil
}

func (p *Pipeline) validated(img Image) (Image, error) {
	if len(img.Data) == 0 {
		return Image{}, fmt.Errorf("%w: method %s", ErrEmptyMedia, img.Method)
	}
	p.log.WithFields(logrus.Fields{
		"method": img.Method,
		"bytes":  img.Size(),
	}).Info("media acquired")
	return img, nil
}
