package notify

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSignedPayloadRoundTrip(t *testing.T) {
	notification := Notification{
		SagaID:         "01J5XB0000000000000000000A",
		Sender:         "alice",
		PreviousOwners: []string{"alice"},
		TokenIDs:       []string{"1"},
		Amounts:        []string{"100"},
		Message:        "invoice 7",
	}

	payload, signature, timestamp, err := GenerateSignedPayload("s3cret", notification)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signature, "sha256="))

	var decoded Notification
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, notification, decoded)

	assert.True(t, VerifySignature("s3cret", signature, timestamp, notification.SagaID, payload))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	notification := Notification{SagaID: "saga-1", Sender: "alice"}
	payload, signature, timestamp, err := GenerateSignedPayload("s3cret", notification)
	require.NoError(t, err)

	assert.False(t, VerifySignature("wrong", signature, timestamp, notification.SagaID, payload))
	assert.False(t, VerifySignature("s3cret", signature, timestamp+1, notification.SagaID, payload))
	assert.False(t, VerifySignature("s3cret", signature, timestamp, "saga-2", payload))
	assert.False(t, VerifySignature("s3cret", signature, timestamp, notification.SagaID, append(payload, ' ')))
}

func TestClassifyReply(t *testing.T) {
	parse := json.Unmarshal

	ok := ClassifyReply([]byte(`{"unused":["0","25"]}`), parse)
	assert.Equal(t, "ok", string(ok.Status))
	assert.Equal(t, []string{"0", "25"}, ok.Unused)

	garbage := ClassifyReply([]byte(`not json`), parse)
	assert.Equal(t, "malformed", string(garbage.Status))

	negative := ClassifyReply([]byte(`{"unused":["-5"]}`), parse)
	assert.Equal(t, "malformed", string(negative.Status))
}
