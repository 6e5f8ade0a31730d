package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"

	"github.com/mylstore/wa-relay/internal/media"
	"github.com/mylstore/wa-relay/internal/wa"
)

type stubSession struct {
	ready     bool
	sendErr   error
	uploadErr error

	sentTo  []types.JID
	sent    []*waE2E.Message
	uploads [][]byte
}

func (s *stubSession) Send(ctx context.Context, to types.JID, msg *waE2E.Message) (whatsmeow.SendResponse, error) {
	if !s.ready {
		return whatsmeow.SendResponse{}, wa.ErrSessionNotReady
	}
	if s.sendErr != nil {
		return whatsmeow.SendResponse{}, s.sendErr
	}
	s.sentTo = append(s.sentTo, to)
	s.sent = append(s.sent, msg)
	return whatsmeow.SendResponse{ID: "stub-id"}, nil
}

func (s *stubSession) Upload(ctx context.Context, data []byte, mediaType whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	if !s.ready {
		return whatsmeow.UploadResponse{}, wa.ErrSessionNotReady
	}
	if s.uploadErr != nil {
		return whatsmeow.UploadResponse{}, s.uploadErr
	}
	s.uploads = append(s.uploads, data)
	return whatsmeow.UploadResponse{
		URL:        "https://media.example/1",
		DirectPath: "/v/1",
		FileLength: uint64(len(data)),
	}, nil
}

func (s *stubSession) Status() wa.Status {
	if s.ready {
		return wa.Status{State: wa.StateConnected}
	}
	return wa.Status{State: wa.StateConnecting}
}

type stubAcquirer struct {
	img   media.Image
	err   error
	calls []media.Request
}

func (a *stubAcquirer) Acquire(ctx context.Context, req media.Request) (media.Image, error) {
	a.calls = append(a.calls, req)
	if a.err != nil {
		return media.Image{}, a.err
	}
	return a.img, nil
}

func TestSendText(t *testing.T) {
	t.Run("invalid target rejected before any send", func(t *testing.T) {
		session := &stubSession{ready: true}
		r := New(session, &stubAcquirer{})

		err := r.SendText(context.Background(), "no-digits", "Hi")
		require.ErrorIs(t, err, wa.ErrInvalidTarget)
		assert.Empty(t, session.sent)
	})

	t.Run("session not ready surfaces as-is", func(t *testing.T) {
		r := New(&stubSession{ready: false}, &stubAcquirer{})
		err := r.SendText(context.Background(), "123-456-7890", "Hi")
		require.ErrorIs(t, err, wa.ErrSessionNotReady)
	})

	t.Run("normalized target and message forwarded", func(t *testing.T) {
		session := &stubSession{ready: true}
		r := New(session, &stubAcquirer{})

		require.NoError(t, r.SendText(context.Background(), "123-456-7890", "Hi"))
		require.Len(t, session.sentTo, 1)
		assert.Equal(t, "1234567890@s.whatsapp.net", session.sentTo[0].String())
		require.Len(t, session.sent, 1)
		assert.Equal(t, "Hi", session.sent[0].GetConversation())
	})
}

func TestSendImage(t *testing.T) {
	directImg := media.Image{Data: []byte("img-bytes"), Method: media.MethodDirect, Mime: "image/png"}

	t.Run("pipeline error short-circuits before send", func(t *testing.T) {
		session := &stubSession{ready: true}
		r := New(session, &stubAcquirer{err: media.ErrEmptyMedia})

		_, err := r.SendImage(context.Background(), "5551234567", media.Request{URL: "https://x/pic.png"})
		require.ErrorIs(t, err, media.ErrEmptyMedia)
		assert.Empty(t, session.uploads, "no upload after acquisition failure")
		assert.Empty(t, session.sent, "no partial sends")
	})

	t.Run("upload guard blocks when not ready", func(t *testing.T) {
		session := &stubSession{ready: false}
		r := New(session, &stubAcquirer{img: directImg})

		_, err := r.SendImage(context.Background(), "5551234567", media.Request{URL: "https://x/pic.png"})
		require.ErrorIs(t, err, wa.ErrSessionNotReady)
		assert.Empty(t, session.sent)
	})

	t.Run("builds image message with caption", func(t *testing.T) {
		session := &stubSession{ready: true}
		r := New(session, &stubAcquirer{img: directImg})

		img, err := r.SendImage(context.Background(), "555 123 4567", media.Request{
			URL:     "https://x/pic.png",
			Caption: "order update",
		})
		require.NoError(t, err)
		assert.Equal(t, media.MethodDirect, img.Method)

		require.Len(t, session.uploads, 1)
		assert.Equal(t, []byte("img-bytes"), session.uploads[0])

		require.Len(t, session.sent, 1)
		imageMsg := session.sent[0].GetImageMessage()
		require.NotNil(t, imageMsg)
		assert.Equal(t, "order update", imageMsg.GetCaption())
		assert.Equal(t, "image/png", imageMsg.GetMimetype())
		assert.Equal(t, uint64(len(directImg.Data)), imageMsg.GetFileLength())
		assert.Equal(t, "5551234567@s.whatsapp.net", session.sentTo[0].String())
	})

	t.Run("caption omitted when empty", func(t *testing.T) {
		session := &stubSession{ready: true}
		r := New(session, &stubAcquirer{img: directImg})

		_, err := r.SendImage(context.Background(), "5551234567", media.Request{URL: "https://x/pic.png"})
		require.NoError(t, err)
		require.Len(t, session.sent, 1)
		assert.Nil(t, session.sent[0].GetImageMessage().Caption)
	})

	t.Run("send failure propagates", func(t *testing.T) {
		session := &stubSession{ready: true, sendErr: wa.ErrDeliveryFailed}
		r := New(session, &stubAcquirer{img: directImg})

		_, err := r.SendImage(context.Background(), "5551234567", media.Request{URL: "https://x/pic.png"})
		require.ErrorIs(t, err, wa.ErrDeliveryFailed)
	})
}
