package reply

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Fallback is returned when a reply carries none of the recognised fields.
const Fallback = "Thanks for your message! Our team will get back to you shortly."

// ErrInvalidJSON marks a reply body that is not JSON at all.
var ErrInvalidJSON = errors.New("reply is not valid json")

// text is a string field that silently ignores values of any other JSON type.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = ""
		return nil
	}
	*t = text(s)
	return nil
}

// ParsedResponse is the nested object some automation flows return.
type ParsedResponse struct {
	Response text `json:"response"`
	Message  text `json:"message"`
}

// parsedResponseField tolerates a parsedResponse that is not an object.
type parsedResponseField struct {
	value *ParsedResponse
}

func (f *parsedResponseField) UnmarshalJSON(data []byte) error {
	var pr ParsedResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		f.value = nil
		return nil
	}
	f.value = &pr
	return nil
}

// Reply is the lenient view of one backend reply object.
type Reply struct {
	Output         text                `json:"output"`
	ParsedResponse parsedResponseField `json:"parsedResponse"`
	Message        text                `json:"message"`
	Response       text                `json:"response"`
}

// Text picks the display string. The order of the checks is part of the
// backend contract: output, parsedResponse.response, parsedResponse.message,
// message, response, then Fallback.
func (r Reply) Text() string {
	candidates := []text{r.Output}
	if pr := r.ParsedResponse.value; pr != nil {
		candidates = append(candidates, pr.Response, pr.Message)
	}
	candidates = append(candidates, r.Message, r.Response)

	for _, c := range candidates {
		if c != "" {
			return string(c)
		}
	}
	return Fallback
}

// Parse decodes a raw backend body. Arrays yield their first element, objects
// themselves; any other JSON value yields an empty Reply. Only bodies that
// are not JSON produce an error.
func Parse(body []byte) (Reply, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return Reply{}, ErrInvalidJSON
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Reply{}, fmt.Errorf("decode reply array: %w", err)
		}
		if len(items) == 0 {
			return Reply{}, nil
		}
		return parseObject(items[0]), nil
	case '{':
		return parseObject(trimmed), nil
	default:
		return Reply{}, nil
	}
}

func parseObject(raw json.RawMessage) Reply {
	var r Reply
	if err := json.Unmarshal(raw, &r); err != nil {
		// not an object (e.g. an array of strings); treat as a shape miss
		return Reply{}
	}
	return r
}

// Normalize maps any backend body to the single string shown in the widget.
func Normalize(body []byte) string {
	r, err := Parse(body)
	if err != nil {
		return Fallback
	}
	return r.Text()
}
