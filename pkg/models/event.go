package models

import "encoding/json"

// Event names exchanged over the state channel. The names are part of the
// wire protocol shared with the browser dashboard and must not change.
const (
	EventAuthenticate       = "authenticate"
	EventAuthenticated      = "authenticated"
	EventAuthError          = "auth_error"
	EventGetState           = "getState"
	EventUpdateDeviceState  = "updateDeviceState"
	EventDeviceStateUpdated = "deviceStateUpdated"
	EventError              = "error"
)

// Messages carried in error payloads.
const (
	MsgAuthFailed       = "Authentication failed"
	MsgNotAuthenticated = "Not authenticated"
	MsgInvalidUpdate    = "Invalid update path or data"
	MsgMalformed        = "Malformed message"
)

// Frame is a single message on the state channel, in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame builds a frame, encoding data when it is non-nil.
func NewFrame(event string, data interface{}) (Frame, error) {
	f := Frame{Event: event}
	if data == nil {
		return f, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	f.Data = raw
	return f, nil
}

// ErrorPayload is the data of error and auth_error frames.
type ErrorPayload struct {
	Message string `json:"message"`
}

// UpdateRequest is the data of an updateDeviceState frame.
type UpdateRequest struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}
