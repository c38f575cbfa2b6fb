package emailsvc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaluo/core"
)

var testConf = &core.Config{
	AppName:          "Evaluo",
	SendgridApiKey:   "SG.test",
	DefaultFromEmail: mail.Address{Name: "Evaluo", Address: "noreply@evaluo.test"},
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{})  {}
func (l *recordingLogger) Warn(string, ...interface{})  {}
func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}
func (l *recordingLogger) Fatal(string, ...interface{}) {}

func TestConsoleServiceMock(t *testing.T) {
	ResetSentMessages()
	svc := NewConsoleServiceMock(testConf)

	to := []mail.Address{{Name: "Ana", Address: "ana@test.pe"}}
	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "Weekly digest", TextContent: "hello"},
		&core.EmailMessage{Subject: "no recipients", TextContent: "dropped"},
		&core.EmailMessage{To: to, Subject: "no content"},
	)

	require.Len(t, SentMessages, 1)
	msg, ok := LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "Weekly digest", msg.Subject)

	ResetSentMessages()
	_, ok = LastSentMessage()
	assert.False(t, ok)
}

func TestSendgridService_prepare(t *testing.T) {
	svc := newSendgridService(testConf, host, &recordingLogger{})
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Ana", Address: "ana@test.pe"}},
		Bcc:         []mail.Address{{Address: "audit@test.pe"}},
		Subject:     "Weekly digest",
		TextContent: "plain",
	})

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Evaluo] Weekly digest", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "ana@test.pe", p.To[0].Address)
	require.Len(t, p.BCC, 1)
	assert.Equal(t, "noreply@evaluo.test", m.From.Address)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}

func TestSendgridService_send(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]interface{}
	)
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	svc := newSendgridService(testConf, srv.URL, logger)
	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "ana@test.pe"}},
		Subject:     "Weekly digest",
		TextContent: "plain",
	}

	svc.send(msg)
	assert.Equal(t, "Bearer SG.test", gotAuth)
	assert.Equal(t, "plain", gotBody["content"].([]interface{})[0].(map[string]interface{})["value"])
	assert.Empty(t, logger.errors)

	status = http.StatusBadRequest
	svc.send(msg)
	assert.Len(t, logger.errors, 1)
}
