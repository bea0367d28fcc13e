package dbtest

import (
	"context"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// MosquittoImage is the image of the MQTT broker container.
const MosquittoImage = "docker.io/eclipse-mosquitto:2"

const mqttPort = nat.Port("1883/tcp")

// SetupMosquitto runs an MQTT broker accepting anonymous clients and returns its
// URL (e.g. tcp://localhost:32768). The broker is torn down when the test
// completes.
func SetupMosquitto(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping container-based test in short mode...")
	}
	t.Parallel()

	ctx := context.Background()

	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        MosquittoImage,
			ExposedPorts: []string{string(mqttPort)},
			// The image ships this configuration for anonymous, non-local clients.
			Cmd: []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		},
		Started: true,
	}
	for _, opt := range containerOptions(t, WithWaitForExposedPort()) {
		if err := opt.Customize(&req); err != nil {
			t.Fatal("Failed to customise mosquitto container:", err)
		}
	}

	container, err := testcontainers.GenericContainer(ctx, req)
	if err != nil {
		t.Fatal("Failed to run mosquitto container:", err)
	}
	t.Cleanup(func() {
		t.Logf("Terminating mosquitto container %q...", container.GetContainerID())
		if err := container.Terminate(ctx); err != nil {
			t.Error("Encountered an error during cleanup; terminate container:", err)
		}
	})

	brokerURL, err := container.PortEndpoint(ctx, mqttPort, "tcp")
	if err != nil {
		t.Fatal("Failed to get broker endpoint:", err)
	}
	inspectOnFailure(t, container.GetContainerID(), "Broker URL = "+brokerURL)
	return brokerURL
}
