package systemd

import (
	"context"
	"testing"
)

func TestNoSocketIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	if sent, err := Ready(); sent || err != nil {
		t.Fatalf("Ready = %v, %v; want false, nil", sent, err)
	}
	if sent, err := Stopping(); sent || err != nil {
		t.Fatalf("Stopping = %v, %v; want false, nil", sent, err)
	}
	if err := RunWatchdog(context.Background(), nil); err != nil {
		t.Fatalf("RunWatchdog = %v, want nil", err)
	}
}
