package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "628123456789", NormalizePhone("08123456789"))
	assert.Equal(t, "628123456789", NormalizePhone("+62 812-3456-789"))
	assert.Equal(t, "14155550100", NormalizePhone("+1 (415) 555-0100"))
}

func TestSendTextMessage(t *testing.T) {
	var got SendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/device-1/send/message", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"message_id":"m1","status":"sent"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "bot", "secret", "/device-1/")
	require.NoError(t, client.SendTextMessage(context.Background(), "0812 3456 789", "hello"))

	assert.Equal(t, "628123456789@s.whatsapp.net", got.Phone)
	assert.Equal(t, "hello", got.Message)
}

func TestSendTextMessageGatewayErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"message":"number not registered"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "u", "p", "dev")
	err := client.SendTextMessage(context.Background(), "0812", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "number not registered")

	client.Path = "dev?fail=1"
	err = client.SendTextMessage(context.Background(), "0812", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
