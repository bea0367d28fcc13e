// Package avatar models a hierarchical avatar: a tree of rigid segments
// (bones), each driven by an external rotation sensor, whose orientations are
// kept relative to their parents as sensor readings stream in.
//
// A Skeleton is built once, from a flat list of BoneDescriptor records (see
// Build and Parse). The builder turns the unordered list into a single rooted
// tree with unique, lower-cased bone ids and sensor ids, or fails with an
// *Error whose Kind pinpoints the defect.
//
// An Avatar wraps a Skeleton and coordinates the two flows that modify it:
//
//   - SetSensor binds a bone to a sensor id reported by an upstream driver
//     instance (see Upstream and DriverHandle). Driver instances are subscribed
//     to while at least one bound sensor belongs to them, and unsubscribed once
//     the last one is released. A failed binding leaves no trace.
//   - ApplyRotation records the absolute orientation reported by a sensor on
//     the bone it drives, relative to the bone's parent. Updates from unbound
//     sensors are ignored.
//
// Sensor updates usually arrive through a pubsub subscription consumed by
// TrackSensors, which republishes the resulting BoneChanged notifications to
// downstream observers through a Broadcaster. Package mqttdriver implements
// Upstream over MQTT, and package neo4jstore implements Store, which persists
// the bindings of a skeleton across restarts.
package avatar
