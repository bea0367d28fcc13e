package neo4jstore

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-avatar/neo4jstore")
var meter = otel.Meter("github.com/go-digitaltwin/go-avatar/neo4jstore")

var (
	// savedBones records the size of every skeleton saved, so sudden changes in
	// the shape of a deployed avatar are visible.
	savedBones metric.Int64Histogram
)

func init() {
	// Failing to create an instrument is a programming error (e.g. an invalid
	// name), so we panic.
	var err error
	savedBones, err = meter.Int64Histogram(
		"neo4jstore.saved_bones",
		metric.WithDescription("number of bones in every skeleton saved to neo4j"),
		metric.WithUnit("{bone}"),
	)
	if err != nil {
		s := fmt.Sprintf("neo4jstore: failed to init 'neo4jstore.saved_bones' instrument: %v", err)
		panic(s)
	}
}
