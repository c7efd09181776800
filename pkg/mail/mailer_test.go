package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/middenhq/midden/pkg/observability"
)

func TestLogMailer_LogsCodeWithoutDelivery(t *testing.T) {
	var buf bytes.Buffer
	mailer := NewLogMailer(observability.NewLogger(observability.InfoLevel, &buf))

	require.NoError(t, mailer.Send(context.Background(), "alice@example.com", "123456"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "alice@example.com", entry["to"])
	assert.Equal(t, "123456", entry["code"])
}

func TestSMTPMailer_CancelledContext(t *testing.T) {
	// Point at a non-routable address so SendMail blocks long enough for
	// the context to win the select.
	mailer := NewSMTPMailer("192.0.2.1", "587", "midden@example.com", "pw")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mailer.Send(ctx, "alice@example.com", "123456")
	assert.ErrorIs(t, err, context.Canceled)
}
