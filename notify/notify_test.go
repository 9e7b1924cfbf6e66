package notify

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailNotify(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte

	email := NewEmail(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "bot@example.com",
		Password: "secret",
	}).WithSendFunc(func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	})

	msg, err := CompletionMessage([]string{"ml-team@example.com"}, "done", Summary{
		DAGID:           "ad_click_training",
		RunID:           "run-1",
		Accuracy:        0.96666,
		FirstPrediction: 1,
		HasEvaluation:   true,
	})
	require.NoError(t, err)
	require.NoError(t, email.Notify(context.Background(), msg))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"ml-team@example.com"}, gotTo)
	body := string(gotBody)
	assert.Contains(t, body, "Subject: done\r\n")
	assert.Contains(t, body, "Content-Type: text/html")
	assert.Contains(t, body, "Test accuracy: 0.9667")
	assert.Contains(t, body, "First prediction: 1")
}

func TestEmailNotifyErrors(t *testing.T) {
	email := NewEmail(SMTPConfig{Host: "localhost", Port: 25}).
		WithSendFunc(func(context.Context, string, smtp.Auth, string, []string, []byte) error {
			return fmt.Errorf("connection refused")
		})

	err := email.Notify(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorContains(t, err, "connection refused")

	err = email.Notify(context.Background(), Message{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, email.Notify(ctx, Message{To: []string{"a@example.com"}}), context.Canceled)
}

// listen starts a local relay and returns an SMTPConfig pointing at it.
func listen(t *testing.T, serve func(net.Conn)) SMTPConfig {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				serve(conn)
			}()
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return SMTPConfig{Host: host, Port: p, From: "adpipe@example.com"}
}

// silent accepts the connection and never greets.
func silent(done <-chan struct{}) func(net.Conn) {
	return func(net.Conn) { <-done }
}

func TestEmailNotifyStopsAtContextDeadline(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	email := NewEmail(listen(t, silent(done)))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := email.Notify(ctx, Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEmailNotifyStopsAtConfiguredTimeout(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	cfg := listen(t, silent(done))
	cfg.Timeout = 150 * time.Millisecond

	start := time.Now()
	err := NewEmail(cfg).Notify(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEmailNotifyStopsOnCancel(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	email := NewEmail(listen(t, silent(done)))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err := email.Notify(ctx, Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmailNotifyDeliversOverSMTP(t *testing.T) {
	received := make(chan string, 1)
	cfg := listen(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		reply := func(line string) { _, _ = fmt.Fprintf(conn, "%s\r\n", line) }
		reply("220 relay ready")

		var rcpts []string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				reply("250-relay")
				reply("250 8BITMIME")
			case strings.HasPrefix(cmd, "MAIL FROM"):
				reply("250 OK")
			case strings.HasPrefix(cmd, "RCPT TO"):
				rcpts = append(rcpts, strings.TrimSpace(line))
				reply("250 OK")
			case cmd == "DATA":
				reply("354 go ahead")
				var body strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					body.WriteString(l)
				}
				received <- strings.Join(rcpts, ";") + "\n" + body.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 unsupported")
			}
		}
	})

	email := NewEmail(cfg)
	msg := Message{To: []string{"a@example.com", "b@example.com"}, Subject: "done", HTML: "<p>ok</p>"}
	require.NoError(t, email.Notify(context.Background(), msg))

	select {
	case got := <-received:
		assert.Contains(t, got, "RCPT TO:<a@example.com>")
		assert.Contains(t, got, "RCPT TO:<b@example.com>")
		assert.Contains(t, got, "Subject: done\r\n")
		assert.Contains(t, got, "<p>ok</p>")
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not receive the message")
	}
}

func TestNewSelectsLogWithoutHost(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	n := New(SMTPConfig{}, logger)
	require.IsType(t, &Log{}, n)

	require.NoError(t, n.Notify(context.Background(), Message{To: []string{"ml-team@example.com"}, Subject: "hi"}))
	assert.True(t, logger.ContainsField("subject", "hi"))

	assert.IsType(t, &Email{}, New(SMTPConfig{Host: "smtp"}, logger))
}

func TestCompletionMessageListsFailures(t *testing.T) {
	msg, err := CompletionMessage(nil, "s", Summary{DAGID: "d", RunID: "r", FailedTasks: []string{"train", "evaluate"}})
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "train, evaluate")
	assert.NotContains(t, msg.HTML, "Test accuracy")
}
