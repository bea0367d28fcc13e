package neo4jstore

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/go-digitaltwin/go-avatar"
	"github.com/go-digitaltwin/go-avatar/internal/dbtest"
	"github.com/go-digitaltwin/go-avatar/storetest"
)

var _ avatar.Store = (*Store)(nil)

func TestStore(t *testing.T) {
	driver := dbtest.SetupNeo4j(t)
	ctx := context.Background()
	if err := BootstrapDatabase(ctx, driver, "avatar"); err != nil {
		t.Fatal(err)
	}
	storetest.Run(t, NewStore(driver, "avatar"))
}

func TestStoreGraph(t *testing.T) {
	driver := dbtest.SetupNeo4j(t)
	ctx := context.Background()
	if err := BootstrapDatabase(ctx, driver, "graph"); err != nil {
		t.Fatal(err)
	}
	store := NewStore(driver, "graph")

	s, err := avatar.Parse([]byte(`[
		{"id": "torso", "sensorId": "imu-0"},
		{"id": "leftarm", "sensorId": "imu-1", "parentId": "torso"},
		{"id": "rightarm", "sensorId": "imu-2", "parentId": "torso"}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveDescriptors(ctx, s.Descriptors()); err != nil {
		t.Fatal(err)
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "graph"})
	defer func() {
		if err := session.Close(ctx); err != nil {
			t.Fatal("Failed to close session:", err)
		}
	}()
	result, err := session.Run(ctx, `
		MATCH (p:Bone)-[:PARENT_OF]->(c:Bone)
		RETURN p.id AS parent, c.id AS child
		ORDER BY c.position
	`, nil)
	if err != nil {
		t.Fatal("Failed to list edges:", err)
	}
	var edges []string
	for result.Next(ctx) {
		t.Log(formatRecord(result.Record()))
		parent, _ := result.Record().Get("parent")
		child, _ := result.Record().Get("child")
		edges = append(edges, fmt.Sprintf("%v->%v", parent, child))
	}
	if err := result.Err(); err != nil {
		t.Fatal("Failed to list edges:", err)
	}
	if got, want := strings.Join(edges, " "), "torso->leftarm torso->rightarm"; got != want {
		t.Errorf("edges = %q, want %q", got, want)
	}

	loaded, err := avatar.LoadSkeleton(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Equal(s) {
		t.Errorf("loaded skeleton differs from the saved one:\n%v\n%v", loaded, s)
	}
}

func TestStoreRejectsDuplicateIDs(t *testing.T) {
	driver := dbtest.SetupNeo4j(t)
	ctx := context.Background()
	if err := BootstrapDatabase(ctx, driver, "duplicates"); err != nil {
		t.Fatal(err)
	}
	store := NewStore(driver, "duplicates")

	saved := []avatar.BoneDescriptor{{ID: "root", SensorID: "root"}}
	if err := store.SaveDescriptors(ctx, saved); err != nil {
		t.Fatal(err)
	}
	err := store.SaveDescriptors(ctx, []avatar.BoneDescriptor{
		{ID: "twin", SensorID: "a"},
		{ID: "twin", SensorID: "b", ParentID: "twin"},
	})
	if err == nil {
		t.Fatal("SaveDescriptors(duplicate ids) succeeded, want the node key constraint to fail it")
	}
	// The failed transaction must leave the previous skeleton in place.
	ds, err := store.LoadDescriptors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 1 || ds[0] != saved[0] {
		t.Errorf("LoadDescriptors() = %v, want %v", ds, saved)
	}
}
