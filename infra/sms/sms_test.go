package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindcare/guardian/core/dispatch"
)

func TestSendPostsGatewayMessage(t *testing.T) {
	var got gatewayMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, APIKey: "tok", From: "guardian"})
	err := s.Send(context.Background(), "cg-1", dispatch.Payload{
		AlertID: "a1", Body: "pat needs help.", Address: "12 Main St",
	})
	require.NoError(t, err)
	require.Equal(t, "cg-1", got.RecipientID)
	require.Equal(t, "a1", got.Reference)
	require.Contains(t, got.Text, "12 Main St")
}

func TestSendReportsGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL})
	err := s.Send(context.Background(), "cg-1", dispatch.Payload{AlertID: "a1"})
	require.Error(t, err)
}
