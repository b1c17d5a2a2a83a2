// internal/realtime/hub_test.go

package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numbay/numbay-backend/internal/numbers"
)

// testClient registers a bare client without pumps so the hub's channel
// plumbing can be observed directly
func testClient(t *testing.T, hub *Hub) *Client {
	t.Helper()

	client := &Client{hub: hub, send: make(chan []byte, 16)}
	hub.register <- client
	return client
}

func receiveEvent(t *testing.T, client *Client) Event {
	t.Helper()

	select {
	case data := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubDeliversOTPUpdateToSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := testClient(t, hub)
	hub.subscribe <- subscription{client: client, phoneNumber: "+15005550001"}

	hub.OTPUpdate("+15005550001", []numbers.OTP{{ID: "otp-1", Code: "482913"}})

	event := receiveEvent(t, client)
	assert.Equal(t, EventOTPUpdate, event.Type)
	assert.Equal(t, "+15005550001", event.PhoneNumber)

	var otps []numbers.OTP
	require.NoError(t, json.Unmarshal(event.Data, &otps))
	require.Len(t, otps, 1)
	assert.Equal(t, "482913", otps[0].Code)
}

func TestHubSkipsUnsubscribedNumbers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := testClient(t, hub)
	hub.subscribe <- subscription{client: client, phoneNumber: "+15005550001"}

	hub.NumberExpired("+15005550999")
	hub.NumberExpired("+15005550001")

	// Only the subscribed number's event arrives
	event := receiveEvent(t, client)
	assert.Equal(t, EventNumberExpired, event.Type)
	assert.Equal(t, "+15005550001", event.PhoneNumber)

	select {
	case data := <-client.send:
		t.Fatalf("unexpected extra event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := testClient(t, hub)
	hub.subscribe <- subscription{client: client, phoneNumber: "+15005550001"}
	hub.unsubscribe <- subscription{client: client, phoneNumber: "+15005550001"}

	hub.NumberExpired("+15005550001")

	select {
	case data := <-client.send:
		t.Fatalf("unexpected event after unsubscribe: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterDropsSubscriptions(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := testClient(t, hub)
	hub.subscribe <- subscription{client: client, phoneNumber: "+15005550001"}
	assert.Equal(t, 1, hub.GetActiveConnections())

	hub.unregister <- client

	assert.Eventually(t, func() bool {
		return hub.GetActiveConnections() == 0
	}, time.Second, 10*time.Millisecond)
}
