/*
Package dbtest spins up the infrastructure an avatar talks to, a Neo4j database
and an MQTT broker, inside Docker containers for tests. It wraps the
testcontainers-go library with the defaults every test in this module needs.

Tests using this package are skipped under -short, and run in parallel with
each other.

Developing locally with Docker, you may want to manually inspect a container
after a test failure. To do this, set the Inspect flag to true:

	go test -dbtest.inspect

This package is intended to be used in tests only.
*/
package dbtest
