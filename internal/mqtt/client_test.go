package mqtt

import "testing"

func TestDeviceTopic(t *testing.T) {
	c, err := NewClient(Options{Broker: "localhost", Port: 1883, ClientID: "t", TopicPrefix: "/beacons/", DeviceID: "wb/01"}, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if got := c.deviceTopic("status"); got != "beacons/wb_01/status" {
		t.Errorf("deviceTopic(status) = %q", got)
	}
}

func TestTopicSafe(t *testing.T) {
	if got := topicSafe("AA:BB:CC:DD:EE:FF"); got != "AABBCCDDEEFF" {
		t.Errorf("topicSafe(address) = %q", got)
	}
	if got := topicSafe("a+b#c"); got != "a_b_c" {
		t.Errorf("topicSafe(wildcards) = %q", got)
	}
}

func TestParseButton(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{in: "press", want: true},
		{in: " TRUE ", want: true},
		{in: "1", want: true},
		{in: "release", want: false},
		{in: "0", want: false},
		{in: "hold", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseButton(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseButton(%q) = %t, %v", tt.in, got, err)
		}
	}
}

func TestPublish_NotConnected(t *testing.T) {
	c, err := NewClient(Options{Broker: "localhost", Port: 1883, ClientID: "t", TopicPrefix: "b", DeviceID: "d"}, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if err := c.PublishStatus(Status{}); err == nil {
		t.Error("PublishStatus() error = nil while disconnected")
	}
	if err := c.PublishDisplay(0, "x"); err == nil {
		t.Error("PublishDisplay() error = nil while disconnected")
	}
	c.Disconnect()
	c.Disconnect()
}

func TestNewClient_RequiresBroker(t *testing.T) {
	if _, err := NewClient(Options{}, nil); err == nil {
		t.Fatal("NewClient() error = nil without broker")
	}
}
