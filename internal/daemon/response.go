package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Message statuses
const (
	StatusInfo  = "INFO"
	StatusWarn  = "WARN"
	StatusError = "ERROR"
)

// Response is the JSON document written back for every socket command
type Response struct {
	Messages []ResponseMessage `json:"messages"`
	Data     any               `json:"data,omitempty"`
}

type ResponseMessage struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// VersionInfo is the payload of the VERSION command
type VersionInfo struct {
	Version string `json:"version"`
	PID     int    `json:"pid"`
}

func (r *Response) AddMessage(message string, status string) {
	r.Messages = append(r.Messages, ResponseMessage{
		Message: message,
		Status:  status,
	})
}

func (r *Response) AddData(data any) {
	r.Data = data
}

func (r *Response) ToJSON() string {
	bytes, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}
	return string(bytes)
}

// DecodeData converts the generic Data of a received response into v
func (r *Response) DecodeData(v any) error {
	if r.Data == nil {
		return fmt.Errorf("response has no data")
	}
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// HasErrors reports whether any message has ERROR status
func (r *Response) HasErrors() bool {
	for _, m := range r.Messages {
		if m.Status == StatusError {
			return true
		}
	}
	return false
}

func (r *Response) LogMessages() {
	for _, message := range r.Messages {
		switch message.Status {
		case StatusWarn:
			slog.Warn(message.Message)
		case StatusError:
			slog.Error(message.Message)
		default:
			slog.Info(message.Message)
		}
	}
}
