package wa

import (
	"context"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
)

// MockClient implements Client for tests. It records calls and lets tests
// emit socket events and QR codes as if they came from whatsmeow.
type MockClient struct {
	mu sync.Mutex

	connected  bool
	hasSession bool
	handlers   []whatsmeow.EventHandler
	qrChan     chan whatsmeow.QRChannelItem

	ConnectError   error
	SendResponse   whatsmeow.SendResponse
	SendError      error
	UploadResponse whatsmeow.UploadResponse
	UploadError    error
	QRChannelError error

	Calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method    string
	Args      []interface{}
	Timestamp time.Time
}

// NewMockClient creates an unpaired, disconnected mock.
func NewMockClient() *MockClient {
	return &MockClient{
		qrChan: make(chan whatsmeow.QRChannelItem, 8),
	}
}

// NewPairedMockClient creates a mock with stored credentials, so the manager
// skips the QR round.
func NewPairedMockClient() *MockClient {
	m := NewMockClient()
	m.hasSession = true
	return m
}

func (m *MockClient) record(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args, Timestamp: time.Now()})
}

// CallsByMethod returns recorded calls for one method.
func (m *MockClient) CallsByMethod(method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCall
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Emit delivers a whatsmeow event to every registered handler, mimicking the
// socket's event goroutine.
func (m *MockClient) Emit(evt interface{}) {
	m.mu.Lock()
	handlers := append([]whatsmeow.EventHandler(nil), m.handlers...)
	m.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}

// EmitQRCode pushes a pairing code through the QR channel.
func (m *MockClient) EmitQRCode(code string) {
	m.qrChan <- whatsmeow.QRChannelItem{Event: "code", Code: code}
}

func (m *MockClient) Connect() error {
	m.record("Connect")
	if m.ConnectError != nil {
		return m.ConnectError
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MockClient) Disconnect() {
	m.record("Disconnect")
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockClient) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && m.hasSession
}

func (m *MockClient) HasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasSession
}

func (m *MockClient) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	m.record("GetQRChannel")
	if m.QRChannelError != nil {
		return nil, m.QRChannelError
	}
	return m.qrChan, nil
}

func (m *MockClient) AddEventHandler(handler whatsmeow.EventHandler) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
	return uint32(len(m.handlers))
}

func (m *MockClient) SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error) {
	m.record("SendMessage", to, message)
	if m.SendError != nil {
		return whatsmeow.SendResponse{}, m.SendError
	}
	if m.SendResponse.ID == "" {
		return whatsmeow.SendResponse{ID: "mock-msg-id", Timestamp: time.Now()}, nil
	}
	return m.SendResponse, nil
}

func (m *MockClient) Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	m.record("Upload", plaintext, appInfo)
	if m.UploadError != nil {
		return whatsmeow.UploadResponse{}, m.UploadError
	}
	if m.UploadResponse.URL == "" {
		return whatsmeow.UploadResponse{
			URL:           "https://mock.whatsapp.net/media/123",
			DirectPath:    "/v/mock/123",
			MediaKey:      []byte("mock-media-key"),
			FileEncSHA256: []byte("mock-enc-sha"),
			FileSHA256:    []byte("mock-sha"),
			FileLength:    uint64(len(plaintext)),
		}, nil
	}
	return m.UploadResponse, nil
}
