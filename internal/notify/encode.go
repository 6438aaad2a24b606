package notify

import (
	"encoding/json"
	"fmt"

	"sensor-dashboard/internal/alerting"
)

// Message конверт, который получают клиенты
type Message struct {
	Type   string          `json:"type"`
	Notice alerting.Notice `json:"notice"`
}

const messageTypeAlert = "alert"

func encode(n alerting.Notice) ([]byte, error) {
	data, err := json.Marshal(Message{Type: messageTypeAlert, Notice: n})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notice: %w", err)
	}
	return data, nil
}
