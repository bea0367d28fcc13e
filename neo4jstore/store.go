/*
Package neo4jstore persists the skeleton of an avatar in a Neo4j database.

Every bone is stored as a node labelled Bone, holding its id, its sensor id and
its position in the saved descriptor list. Every parent is connected to each of
its children by a PARENT_OF relationship:

	(:Bone {id, sensorId, position})-[:PARENT_OF]->(:Bone {id, sensorId, position})

A bone whose sensor is bound to a driver also holds the driver, device and
instance properties of the driver handle; the others have none of them.

A database holds a single skeleton. Call BootstrapDatabase once before using a
database with a Store.
*/
package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/danielorbach/go-component"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-digitaltwin/go-avatar"
)

// Store is an avatar.Store backed by a Neo4j database.
//
// Saving an empty descriptor list leaves the database empty, which later loads
// report as avatar.ErrNoSkeleton.
type Store struct {
	driver   neo4j.DriverWithContext // Connection to the neo4j server/cluster.
	database string                  // Target database holding the skeleton.
}

// NewStore returns a Store keeping its skeleton in the given database.
func NewStore(driver neo4j.DriverWithContext, database string) *Store {
	return &Store{driver: driver, database: database}
}

// SaveDescriptors replaces the stored skeleton with the given descriptor list,
// in a single write transaction. On failure, the previous skeleton is kept.
func (s *Store) SaveDescriptors(ctx context.Context, ds []avatar.BoneDescriptor) (err error) {
	ctx, span := tracer.Start(ctx, "SaveDescriptors", trace.WithAttributes(
		attribute.String("neo4j.database", s.database),
		attribute.Int("bones", len(ds)),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	logger := component.Logger(ctx).With("neo4j.database", s.database)

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() {
		if err := session.Close(ctx); err != nil {
			logger.Error("Failed to close session", "error", err, "mode", "write")
		}
	}()

	bones := make([]map[string]any, len(ds))
	for i, d := range ds {
		bone := map[string]any{
			"id":       d.ID,
			"sensorId": d.SensorID,
			"parentId": d.ParentID,
			"position": int64(i),
			// A null property is not stored at all.
			"driver":   nil,
			"device":   nil,
			"instance": nil,
		}
		if d.Driver != nil {
			bone["driver"] = d.Driver.Driver
			bone["device"] = d.Driver.Device
			bone["instance"] = d.Driver.Instance
		}
		bones[i] = bone
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (b:Bone) DETACH DELETE b`, nil); err != nil {
			return nil, fmt.Errorf("delete bones: %w", err)
		}
		_, err := tx.Run(ctx, `
			UNWIND $bones AS bone
			CREATE (:Bone {
				id: bone.id,
				sensorId: bone.sensorId,
				position: bone.position,
				driver: bone.driver,
				device: bone.device,
				instance: bone.instance
			})
		`, map[string]any{"bones": bones})
		if err != nil {
			return nil, fmt.Errorf("create bones: %w", err)
		}
		_, err = tx.Run(ctx, `
			UNWIND $bones AS bone
			WITH bone WHERE bone.parentId <> ''
			MATCH (p:Bone {id: bone.parentId}), (c:Bone {id: bone.id})
			CREATE (p)-[:PARENT_OF]->(c)
		`, map[string]any{"bones": bones})
		if err != nil {
			return nil, fmt.Errorf("connect bones: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j execute: %w", err)
	}
	savedBones.Record(ctx, int64(len(ds)), metric.WithAttributes(
		attribute.String("neo4j.database", s.database),
	))
	logger.Debug("Skeleton saved", "bones", len(ds))
	return nil
}

// LoadDescriptors returns the stored descriptor list, in the order it was
// saved, or avatar.ErrNoSkeleton if the database holds no bones.
func (s *Store) LoadDescriptors(ctx context.Context) (ds []avatar.BoneDescriptor, err error) {
	ctx, span := tracer.Start(ctx, "LoadDescriptors", trace.WithAttributes(
		attribute.String("neo4j.database", s.database),
	))
	defer span.End()
	defer func() {
		if err != nil && !errors.Is(err, avatar.ErrNoSkeleton) {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer func() {
		if err := session.Close(ctx); err != nil {
			component.Logger(ctx).Error("Failed to close session", "error", err, "mode", "read")
		}
	}()

	_, err = session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Retried transactions start over.
		ds = nil
		result, err := tx.Run(ctx, `
			MATCH (b:Bone)
			OPTIONAL MATCH (p:Bone)-[:PARENT_OF]->(b)
			RETURN b.id AS id, b.sensorId AS sensorId, coalesce(p.id, '') AS parentId,
				b.driver IS NOT NULL AS bound,
				coalesce(b.driver, '') AS driver,
				coalesce(b.device, '') AS device,
				coalesce(b.instance, '') AS instance
			ORDER BY b.position
		`, nil)
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			d, err := parseDescriptor(result.Record())
			if err != nil {
				return nil, err
			}
			ds = append(ds, d)
		}
		// The result cursor is exhausted by now; Err reports what stopped it.
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("iterate bones: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, errPropertyNotFound) || errors.As(err, &unexpectedPropertyTypeError{}) {
		component.Logger(ctx).Error("A Cypher query was modified without care", "error", err)
		panic(fmt.Errorf("seek developer attention: neo4j cypher query: %w", err))
	} else if err != nil {
		return nil, fmt.Errorf("neo4j execute: %w", err)
	}
	if len(ds) == 0 {
		return nil, avatar.ErrNoSkeleton
	}
	return ds, nil
}

func parseDescriptor(record *neo4j.Record) (d avatar.BoneDescriptor, err error) {
	if d.ID, err = getRecordProperty[string](record, "id"); err != nil {
		return d, fmt.Errorf("id: %w", err)
	}
	if d.SensorID, err = getRecordProperty[string](record, "sensorId"); err != nil {
		return d, fmt.Errorf("sensorId: %w", err)
	}
	if d.ParentID, err = getRecordProperty[string](record, "parentId"); err != nil {
		return d, fmt.Errorf("parentId: %w", err)
	}
	bound, err := getRecordProperty[bool](record, "bound")
	if err != nil {
		return d, fmt.Errorf("bound: %w", err)
	}
	if !bound {
		return d, nil
	}
	var h avatar.DriverHandle
	if h.Driver, err = getRecordProperty[string](record, "driver"); err != nil {
		return d, fmt.Errorf("driver: %w", err)
	}
	if h.Device, err = getRecordProperty[string](record, "device"); err != nil {
		return d, fmt.Errorf("device: %w", err)
	}
	if h.Instance, err = getRecordProperty[string](record, "instance"); err != nil {
		return d, fmt.Errorf("instance: %w", err)
	}
	d.Driver = &h
	return d, nil
}

// A errPropertyNotFound occurs when a column is missing from a record.
//
// It most likely means a Cypher query was changed without modifying the
// surrounding code properly.
var errPropertyNotFound = errors.New("property not found")

// An unexpectedPropertyTypeError occurs when a column has a runtime type that is
// different from the expected type.
type unexpectedPropertyTypeError struct {
	Type reflect.Type // Effective type encountered at runtime.
}

func (e unexpectedPropertyTypeError) Error() string {
	return fmt.Sprintf("unexpected property type: %v", e.Type)
}

// The recordProperty interface lists the column types read by this package.
type recordProperty interface {
	int64 | string | bool
}

func getRecordProperty[T recordProperty](record *neo4j.Record, key string) (value T, err error) {
	prop, exists := record.Get(key)
	if !exists {
		return value, errPropertyNotFound
	}
	v, ok := prop.(T)
	if !ok {
		return value, unexpectedPropertyTypeError{Type: reflect.TypeOf(prop)}
	}
	return v, nil
}
