package mqttdriver

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-digitaltwin/go-avatar"
)

// changePayload is the JSON body of a change message.
type changePayload struct {
	ID         string             `json:"id"`
	Quaternion avatar.Orientation `json:"quaternion"`
	// Milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// DecodeChange decodes the payload of a change message into a sensor update.
// A payload without a timestamp yields a zero Timestamp.
func DecodeChange(p []byte) (avatar.SensorUpdated, error) {
	var c changePayload
	if err := json.Unmarshal(p, &c); err != nil {
		return avatar.SensorUpdated{}, fmt.Errorf("decode change: %w", err)
	}
	if c.ID == "" {
		return avatar.SensorUpdated{}, errors.New("decode change: missing sensor id")
	}
	u := avatar.SensorUpdated{SensorID: c.ID, Orientation: c.Quaternion}
	if c.Timestamp != 0 {
		u.Timestamp = time.UnixMilli(c.Timestamp).UTC()
	}
	return u, nil
}

// EncodeChange is the inverse of DecodeChange.
func EncodeChange(u avatar.SensorUpdated) ([]byte, error) {
	c := changePayload{ID: u.SensorID, Quaternion: u.Orientation}
	if !u.Timestamp.IsZero() {
		c.Timestamp = u.Timestamp.UnixMilli()
	}
	return json.Marshal(c)
}

// DecodeIDs decodes the payload of an ids message. Devices publish the list
// either as a JSON array of strings or as a JSON string holding such an array.
// A JSON null decodes to a nil list.
func DecodeIDs(p []byte) ([]string, error) {
	var ids []string
	err := json.Unmarshal(p, &ids)
	if err == nil {
		return ids, nil
	}
	var s string
	if json.Unmarshal(p, &s) != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("decode ids: embedded list: %w", err)
	}
	return ids, nil
}

func jsonIDs(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}
