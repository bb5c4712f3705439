package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.replybot/internal/model"
)

const FieldComments = "comments"

type envelope struct {
	Object string            `json:"object"`
	Entry  []json.RawMessage `json:"entry"`
}

type entry struct {
	ID      string            `json:"id"`
	Time    json.RawMessage   `json:"time"`
	Changes []json.RawMessage `json:"changes"`
}

type change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

type commentValue struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	From struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
	Media struct {
		ID string `json:"id"`
	} `json:"media"`
	ParentID  string          `json:"parent_id"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Parse extracts comment events from a webhook body. Only a body that is not
// a JSON envelope is an error; malformed entries and changes are skipped.
func Parse(body []byte) ([]model.CommentEvent, error) {
	env := envelope{}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding webhook body: %v", model.ErrorInvalidInput, err)
	}
	if env.Entry == nil {
		return nil, fmt.Errorf("%w: webhook body has no entries", model.ErrorInvalidInput)
	}

	events := []model.CommentEvent{}
	for i, rawEntry := range env.Entry {
		e := entry{}
		if err := json.Unmarshal(rawEntry, &e); err != nil {
			log.Warnf("webhook: skipping entry %d: %v", i, err)
			continue
		}
		for j, rawChange := range e.Changes {
			event, err := parseChange(rawChange, e.ID, e.Time)
			if err != nil {
				log.Warnf("webhook: skipping entry %d change %d: %v", i, j, err)
				continue
			}
			if event != nil {
				events = append(events, *event)
			}
		}
	}
	return events, nil
}

func parseChange(raw json.RawMessage, recipientID string, entryTime json.RawMessage) (*model.CommentEvent, error) {
	c := change{}
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c.Field != FieldComments {
		return nil, nil
	}

	v := commentValue{}
	if err := json.Unmarshal(c.Value, &v); err != nil {
		return nil, err
	}
	if v.ID == "" || v.Media.ID == "" {
		return nil, fmt.Errorf("comment is missing id or media id")
	}
	if strings.TrimSpace(v.Text) == "" {
		return nil, fmt.Errorf("comment %s has no text", v.ID)
	}

	receivedAt, ok := parseTime(v.Timestamp)
	if !ok {
		if receivedAt, ok = parseTime(entryTime); !ok {
			receivedAt = time.Now().UTC()
		}
	}

	return &model.CommentEvent{
		ID:             v.ID,
		RecipientID:    recipientID,
		Text:           v.Text,
		AuthorID:       v.From.ID,
		AuthorUsername: v.From.Username,
		MediaID:        v.Media.ID,
		ParentID:       v.ParentID,
		ReceivedAt:     receivedAt,
	}, nil
}

// parseTime accepts unix seconds, unix milliseconds or RFC 3339.
func parseTime(raw json.RawMessage) (time.Time, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC(), true
		}
		return time.Unix(secs, 0).UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
