// Package relay is the dispatch facade each HTTP handler calls: it
// normalizes the target, optionally runs the media pipeline, and hands the
// message to the session manager.
package relay

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/mylstore/wa-relay/internal/media"
	"github.com/mylstore/wa-relay/internal/wa"
)

// Session is the slice of the session manager the facade needs.
type Session interface {
	Send(ctx context.Context, to types.JID, msg *waE2E.Message) (whatsmeow.SendResponse, error)
	Upload(ctx context.Context, data []byte, mediaType whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
	Status() wa.Status
}

// Acquirer resolves a media request into an image buffer.
type Acquirer interface {
	Acquire(ctx context.Context, req media.Request) (media.Image, error)
}

type Relay struct {
	session Session
	media   Acquirer
	log     *logrus.Entry
}

func New(session Session, acquirer Acquirer) *Relay {
	return &Relay{
		session: session,
		media:   acquirer,
		log:     logrus.WithField("component", "relay"),
	}
}

// Status exposes the session's pairing state for the HTTP layer.
func (r *Relay) Status() wa.Status {
	return r.session.Status()
}

// SendText normalizes the phone target and sends a plain text message.
func (r *Relay) SendText(ctx context.Context, phone, text string) error {
	jid, err := wa.NormalizeTarget(phone)
	if err != nil {
		return err
	}
	msg := &waE2E.Message{Conversation: proto.String(text)}
	resp, err := r.session.Send(ctx, jid, msg)
	if err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{"to": jid.String(), "id": resp.ID}).Info("text sent")
	return nil
}

// SendImage acquires the requested image, uploads it, and sends it with an
// optional caption. Any acquisition error short-circuits before a send is
// attempted — there are no partial sends.
func (r *Relay) SendImage(ctx context.Context, phone string, req media.Request) (media.Image, error) {
	jid, err := wa.NormalizeTarget(phone)
	if err != nil {
		return media.Image{}, err
	}

	img, err := r.media.Acquire(ctx, req)
	if err != nil {
		return media.Image{}, err
	}

	upload, err := r.session.Upload(ctx, img.Data, whatsmeow.MediaImage)
	if err != nil {
		return img, err
	}

	imageMsg := &waE2E.ImageMessage{
		URL:           proto.String(upload.URL),
		DirectPath:    proto.String(upload.DirectPath),
		MediaKey:      upload.MediaKey,
		FileEncSHA256: upload.FileEncSHA256,
		FileSHA256:    upload.FileSHA256,
		FileLength:    proto.Uint64(upload.FileLength),
		Mimetype:      proto.String(img.Mime),
	}
	if req.Caption != "" {
		imageMsg.Caption = proto.String(req.Caption)
	}

	resp, err := r.session.Send(ctx, jid, &waE2E.Message{ImageMessage: imageMsg})
	if err != nil {
		return img, err
	}
	r.log.WithFields(logrus.Fields{
		"to":     jid.String(),
		"id":     resp.ID,
		"method": img.Method,
		"bytes":  img.Size(),
	}).Info("image sent")
	return img, nil
}
