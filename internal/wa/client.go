package wa

import (
	"context"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// Client abstracts the slice of whatsmeow.Client this service touches so the
// session manager can be driven by a mock in tests.
type Client interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	IsLoggedIn() bool

	// HasSession reports whether stored credentials exist (Store.ID != nil).
	// When false a QR pairing round is required before Connect succeeds.
	HasSession() bool
	GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)

	AddEventHandler(handler whatsmeow.EventHandler) uint32

	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
}

// ClientFactory builds a fresh client for a connection attempt. The session
// manager never reuses a handle across attempts; it asks the factory for a
// new one every time.
type ClientFactory func(ctx context.Context) (Client, error)

// NewSQLiteFactory returns a factory backed by a whatsmeow sqlstore
// container. Credential persistence is owned entirely by the container.
func NewSQLiteFactory(container *sqlstore.Container, log waLog.Logger) ClientFactory {
	return func(ctx context.Context) (Client, error) {
		device, err := container.GetFirstDevice(ctx)
		if err != nil {
			return nil, fmt.Errorf("get device from store: %w", err)
		}
		return &realClient{client: whatsmeow.NewClient(device, log)}, nil
	}
}

// OpenContainer opens (or creates) the sqlite-backed credential store.
func OpenContainer(ctx context.Context, dbPath string, log waLog.Logger) (*sqlstore.Container, error) {
	container, err := sqlstore.New(ctx, "sqlite3", "file:"+dbPath+"?_foreign_keys=on", log)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return container, nil
}

type realClient struct {
	client *whatsmeow.Client
}

func (r *realClient) Connect() error    { return r.client.Connect() }
func (r *realClient) Disconnect()       { r.client.Disconnect() }
func (r *realClient) IsConnected() bool { return r.client.IsConnected() }
func (r *realClient) IsLoggedIn() bool  { return r.client.IsLoggedIn() }
func (r *realClient) HasSession() bool  { return r.client.Store.ID != nil }

func (r *realClient) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	return r.client.GetQRChannel(ctx)
}

func (r *realClient) AddEventHandler(handler whatsmeow.EventHandler) uint32 {
	return r.client.AddEventHandler(handler)
}

func (r *realClient) SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error) {
	return r.client.SendMessage(ctx, to, message, extra...)
}

func (r *realClient) Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	return r.client.Upload(ctx, plaintext, appInfo)
}
