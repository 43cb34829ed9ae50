package bus

import "testing"

func TestParseAddr(t *testing.T) {
	for addr, want := range map[string]Addr{
		"zmq://broker.example.org:5555/snews.operations": {"zmq", "broker.example.org", 5555, "snews.operations"},
		"broker.example.org:5555/snews.operations":       {"zmq", "broker.example.org", 5555, "snews.operations"},
		"broker.example.org/snews.operations":            {"zmq", "broker.example.org", 5555, "snews.operations"},
		"tcp://10.0.0.1:9000/ops":                        {"tcp", "10.0.0.1", 9000, "ops"},
	} {
		have, err := ParseAddr(addr, 5555)
		if err != nil {
			t.Errorf("%s: %v", addr, err)
			continue
		}
		if want != have {
			t.Errorf("%s: want %v, have %v", addr, want, have)
		}
	}
}

func TestParseAddrErrors(t *testing.T) {
	if _, err := ParseAddr("zmq:///topic-without-broker", 5555); err != ErrNoBroker {
		t.Errorf("missing broker: want %v, have %v", ErrNoBroker, err)
	}
	if _, err := ParseAddr("zmq://broker.example.org:5555", 5555); err != ErrNoTopic {
		t.Errorf("missing topic: want %v, have %v", ErrNoTopic, err)
	}
}

func TestAddrString(t *testing.T) {
	a := Addr{Scheme: "zmq", Host: "broker", Port: 5555, Topic: "ops"}
	if want, have := "zmq://broker:5555/ops", a.String(); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
}
