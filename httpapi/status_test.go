package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/mlinvill/distributedlock/bus/mockbus"
	"github.com/mlinvill/distributedlock/protocol"
)

func TestStatusEndpoints(t *testing.T) {
	engine, err := protocol.NewEngine(protocol.Config{
		Broker:      "broker.test:5555",
		ReadTopic:   "ops",
		Dialer:      mockbus.NewBroker(),
		Identity:    "10.0.0.1",
		WarmupDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(NewStatusServer(engine, log.NewNopLogger()))
	defer server.Close()

	t.Run("whoami", func(t *testing.T) {
		resp, err := server.Client().Get(server.URL + "/whoami")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var id string
		if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
			t.Fatal(err)
		}
		if want, have := "10.0.0.1", id; want != have {
			t.Errorf("want %q, have %q", want, have)
		}
	})

	t.Run("peers", func(t *testing.T) {
		resp, err := server.Client().Get(server.URL + "/peers")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var peers []string
		if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
			t.Fatal(err)
		}
		if want, have := 0, len(peers); want != have {
			t.Errorf("want %d peers, have %d", want, have)
		}
	})

	t.Run("state", func(t *testing.T) {
		resp, err := server.Client().Get(server.URL + "/state")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var state map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			t.Fatal(err)
		}
		if want, have := "10.0.0.1", state["self"]; want != have {
			t.Errorf("self: want %v, have %v", want, have)
		}
	})
}
