package dbtest

import (
	"flag"
	"os"
	"os/signal"
	"testing"
)

// Inspect keeps the containers of a failed test running until interrupted, so
// their state can be examined. Ryuk still reaps them eventually.
var Inspect = flag.Bool("dbtest.inspect", false, "keep test containers running for inspection after a failed test completes")

// waitForInspection blocks until SIGINT (Ctrl+C).
func waitForInspection() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)
	<-c
}

// inspectOnFailure registers a cleanup that holds a failed test until the
// developer is done inspecting its container.
func inspectOnFailure(t testing.TB, containerID string, details ...string) {
	t.Cleanup(func() {
		if !t.Failed() || !*Inspect {
			return
		}
		t.Logf("Container %v is still running for inspection (Ctrl+C to terminate)...", containerID)
		for _, d := range details {
			t.Logf("%s", d)
		}
		waitForInspection()
	})
}
