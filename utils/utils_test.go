package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2030-02-28 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 2, 28, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "2030-02-28", FormatDate(d))
	assert.Equal(t, "28/02/2030", FormatDateFR(d))

	for _, bad := range []string{"", "2030-02-30", "28/02/2030", "2030-2-8"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateOnly(t *testing.T) {
	paris := time.FixedZone("CEST", 2*3600)
	got := DateOnly(time.Date(2030, 7, 1, 0, 30, 0, 0, paris))
	assert.Equal(t, time.Date(2030, 7, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestTokens(t *testing.T) {
	a, err := GenerateURLToken(32)
	require.NoError(t, err)
	b, err := GenerateURLToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
	assert.NotContains(t, a, "/")
	assert.NotContains(t, a, "+")

	_, err = GenerateURLToken(0)
	assert.Error(t, err)
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	boom := errors.New("boom")
	err = RetryWithBackoff(context.Background(), 2, time.Millisecond, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = RetryWithBackoff(ctx, 3, time.Hour, func() error { return boom })
	assert.ErrorIs(t, err, context.Canceled)

	calls = 0
	err = RetryWithBackoff(context.Background(), 3, time.Hour, func() error {
		calls++
		return Permanent(boom)
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, Permanent(nil))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(20 * time.Millisecond)
	ctx := context.Background()
	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	require.NoError(t, rl.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, rl.Wait(cctx), context.Canceled)
}

func TestBuildMIME(t *testing.T) {
	from := (&mail.Address{Name: "Chez Mémé", Address: "host@example.com"}).String()
	forged := "------=_CHEZ_MEME_BOUNDARY\r\nContent-Type: text/html\r\n\r\n<script>"
	raw := BuildMIME(from, Mail{
		To:        []string{"a@example.com", "b@example.com"},
		Subject:   "Nouvelle réservation\r\nBcc: evil@example.com",
		PlainBody: "Arrivée tardive\r\n" + forged,
		HTMLBody:  "<p>Arrivée</p>",
	})

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com, b@example.com", msg.Header.Get("To"))
	assert.Empty(t, msg.Header.Get("Bcc"))

	headers := string(raw[:bytes.Index(raw, []byte("\r\n\r\n"))])
	for _, r := range headers {
		require.Less(t, r, rune(128), "headers are plain ASCII")
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Nouvelle réservation  Bcc: evil@example.com", subject)
	sender, err := mail.ParseAddress(msg.Header.Get("From"))
	require.NoError(t, err)
	assert.Equal(t, "Chez Mémé", sender.Name)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)
	assert.NotEqual(t, "----=_CHEZ_MEME_BOUNDARY", params["boundary"])

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var types, bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		types = append(types, p.Header.Get("Content-Type"))
		bodies = append(bodies, string(b))
	}
	assert.Equal(t, []string{"text/plain; charset=utf-8", "text/html; charset=utf-8"}, types)
	assert.Equal(t, []string{"Arrivée tardive\r\n" + forged, "<p>Arrivée</p>"}, bodies)
}

func TestSendMailWithoutCredentialsOnlyLogs(t *testing.T) {
	assert.NoError(t, SendMail(SMTPConfig{}, Mail{Subject: "x"}))
}
