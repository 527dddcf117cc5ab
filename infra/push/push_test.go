package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindcare/guardian/core/dispatch"
	"github.com/mindcare/guardian/core/model"
)

func TestSendPostsProviderMessage(t *testing.T) {
	var got message
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, APIKey: "secret"})
	err := s.Send(context.Background(), "cg-1", dispatch.Payload{
		AlertID:   "a1",
		PatientID: "pat",
		Title:     "Emergency alert",
		Body:      "pat needs help",
		Origin:    model.Position{Latitude: 37.7749, Longitude: -122.4194},
		Address:   "Market St",
	})
	require.NoError(t, err)
	require.Equal(t, "key=secret", auth)
	require.Equal(t, "/topics/subject-cg-1", got.To)
	require.Equal(t, "a1", got.Data["alert_id"])
	require.Equal(t, "high", got.Priority)
}

func TestSendReportsProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL})
	err := s.Send(context.Background(), "cg-1", dispatch.Payload{AlertID: "a1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestTopicSubscribeRoundTrip(t *testing.T) {
	var paths []string
	var got topicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL})
	require.NoError(t, s.SubscribeTopic(context.Background(), "alert-a1", []string{"tok1", "tok2"}))
	require.NoError(t, s.UnsubscribeTopic(context.Background(), "alert-a1", []string{"tok1"}))
	require.Equal(t, []string{"/topics/subscribe", "/topics/unsubscribe"}, paths)
	require.Equal(t, "alert-a1", got.Topic)
}
