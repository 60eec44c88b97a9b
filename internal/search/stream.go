package search

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/docsanswer/pkg/logger"
)

// dataMarker prefixes the payload line of a server-sent event.
const dataMarker = "data:"

// DecodeStream extracts the JSON payload of the first "data:" line of an
// event-stream body. Later data lines are ignored. It reports false when no
// such line exists or when that line does not hold valid JSON.
func DecodeStream(body string) (json.RawMessage, bool) {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, dataMarker) {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, dataMarker))
		if !json.Valid([]byte(payload)) {
			logger.Named("search").Warn("malformed JSON in event-stream data line",
				zap.String("data", truncate(payload, 200)),
			)
			return nil, false
		}
		return json.RawMessage(payload), true
	}
	return nil, false
}

// truncate shortens s for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
