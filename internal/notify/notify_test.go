package notify

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/emersion/go-sasl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

var sampleEvents = []harvest.Candidate{
	{
		Title:       "Cate Blanchett In Conversation",
		URL:         "https://whatson.bfi.org.uk/cate",
		Description: "Cate Blanchett discusses her career.",
		Involved:    true,
		SourceID:    "bfi",
	},
	{
		Title:       "Talk: Tár",
		URL:         "https://www.barbican.org.uk/tar",
		Description: "Cate Blanchett will present the film.",
		Involved:    true,
		SourceID:    "barbican",
	},
}

func TestCompose(t *testing.T) {
	t.Parallel()

	n, err := Compose("Cate Blanchett", sampleEvents[:1], "alerts@example.com", "", []string{"a@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "New Cate Blanchett Event(s) Found", n.Subject)
	assert.Equal(t, "alerts@example.com", n.Sender)
	assert.Equal(t, []string{"a@example.com"}, n.Recipients)
	want := "The following new Cate Blanchett events were found:\n\n" +
		"[\n" +
		"    {\n" +
		"        \"title\": \"Cate Blanchett In Conversation\",\n" +
		"        \"url\": \"https://whatson.bfi.org.uk/cate\",\n" +
		"        \"is_involved\": true,\n" +
		"        \"description\": \"Cate Blanchett discusses her career.\"\n" +
		"    }\n" +
		"]"
	assert.Equal(t, want, n.Body)
}

func TestComposeCustomSubject(t *testing.T) {
	t.Parallel()

	n, err := Compose("Tilda Swinton", nil, "alerts@example.com", "Swinton watch", nil)
	require.NoError(t, err)
	assert.Equal(t, "Swinton watch", n.Subject)
	assert.True(t, strings.HasPrefix(n.Body, "The following new Tilda Swinton events were found:"))
	assert.True(t, strings.HasSuffix(n.Body, "[]"))
}

type capturedMail struct {
	addr string
	auth sasl.Client
	from string
	to   []string
	body string
}

func fakeSender(out *capturedMail, err error) sendFunc {
	return func(_ context.Context, addr string, auth sasl.Client, from string, to []string, r io.Reader) error {
		data, readErr := io.ReadAll(r)
		if readErr != nil {
			return readErr
		}
		*out = capturedMail{addr: addr, auth: auth, from: from, to: to, body: string(data)}
		return err
	}
}

func TestEmailNotifierSendsBcc(t *testing.T) {
	t.Parallel()

	var got capturedMail
	e := NewEmail(EmailConfig{Host: "smtp.example.com", Port: 2525, Username: "bot", Password: "secret"}, nil)
	e.send = fakeSender(&got, nil)
	e.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

	n, err := Compose("Cate Blanchett", sampleEvents, "alerts@example.com", "", []string{"a@example.com", "b@example.com"})
	require.NoError(t, err)
	e.Notify(context.Background(), n)

	assert.Equal(t, "smtp.example.com:2525", got.addr)
	assert.NotNil(t, got.auth)
	assert.Equal(t, "alerts@example.com", got.from)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got.to)
	assert.Contains(t, got.body, "Subject: New Cate Blanchett Event(s) Found")
	assert.Contains(t, got.body, "To: <alerts@example.com>")
	assert.NotContains(t, got.body, "a@example.com")
	assert.NotContains(t, got.body, "Bcc")
	assert.Contains(t, got.body, "https://whatson.bfi.org.uk/cate")
}

func TestEmailNotifierNoRecipients(t *testing.T) {
	t.Parallel()

	called := false
	e := NewEmail(EmailConfig{Host: "smtp.example.com"}, nil)
	e.send = func(context.Context, string, sasl.Client, string, []string, io.Reader) error {
		called = true
		return nil
	}

	e.Notify(context.Background(), harvest.Notification{Sender: "alerts@example.com", Events: sampleEvents})
	assert.False(t, called)
}

func TestEmailNotifierSwallowsSendErrors(t *testing.T) {
	t.Parallel()

	var got capturedMail
	e := NewEmail(EmailConfig{Host: "smtp.example.com"}, nil)
	e.send = fakeSender(&got, errors.New("535 authentication failed"))

	e.Notify(context.Background(), harvest.Notification{
		Subject:    "s",
		Sender:     "alerts@example.com",
		Recipients: []string{"a@example.com"},
	})
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Nil(t, got.auth)
}

func TestEmailNotifierStalledRelayHonorsContext(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		var held []net.Conn
		defer func() {
			for _, c := range held {
				_ = c.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			// Never send a greeting.
			held = append(held, conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	e := NewEmail(EmailConfig{Host: addr.IP.String(), Port: addr.Port}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		e.Notify(ctx, harvest.Notification{
			Subject:    "s",
			Sender:     "alerts@example.com",
			Recipients: []string{"a@example.com"},
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Notify did not return after the context expired")
	}
}

func TestSendMailCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sendMail(false)(ctx, "127.0.0.1:1", nil, "a@example.com", []string{"b@example.com"}, strings.NewReader("x"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "dial smtp")
}

func TestPubSubNotifierPublishesPerEvent(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer func() { _ = srv.Close() }()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	topic, err := client.CreateTopic(ctx, "events")
	require.NoError(t, err)

	n, err := Compose("Cate Blanchett", sampleEvents, "alerts@example.com", "", nil)
	require.NoError(t, err)
	NewPubSub(topic, nil).Notify(ctx, n)
	topic.Stop()

	msgs := srv.Messages()
	require.Len(t, msgs, 2)
	sources := map[string]string{}
	for _, m := range msgs {
		sources[m.Attributes["url"]] = m.Attributes["source"]
		assert.Contains(t, string(m.Data), `"subject":"New Cate Blanchett Event(s) Found"`)
	}
	assert.Equal(t, "bfi", sources["https://whatson.bfi.org.uk/cate"])
	assert.Equal(t, "barbican", sources["https://www.barbican.org.uk/tar"])
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []harvest.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n harvest.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, n)
}

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a, b := &recordingNotifier{}, &recordingNotifier{}
	Multi{a, NewLog(nil), b}.Notify(context.Background(), harvest.Notification{Subject: "s", Events: sampleEvents})

	require.Len(t, a.calls, 1)
	require.Len(t, b.calls, 1)
	assert.Equal(t, "s", b.calls[0].Subject)
}
