package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when a line cannot be classified or its
// payload does not follow the expected schema. Wrap or test with
// errors.Is.
var ErrMalformed = errors.New("malformed response line")

// Message is one classified device line.
type Message struct {
	Kind MsgKind
	// Name is the command-name token, i.e. everything between the sigil
	// and the first '=' or ','.
	Name string
	// Fields holds the comma-separated payload after '='. A field quoted
	// in braces may itself contain commas; the braces are stripped.
	Fields []string
}

// Classify identifies the kind of a device line from its sigil.
func Classify(line string) MsgKind {
	if line == "" {
		return MsgUnknown
	}
	switch line[0] {
	case SigilQuery:
		return MsgQueryReply
	case SigilControl:
		return MsgControlAck
	case SigilError:
		return MsgError
	case SigilUnsolicited:
		return MsgUnsolicited
	}
	return MsgUnknown
}

// Parse classifies a device line and extracts its command name and
// payload fields. Lines with no recognized sigil fail with ErrMalformed;
// the correlation layer decides whether to retry.
func Parse(line string) (Message, error) {
	kind := Classify(line)
	if kind == MsgUnknown {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}

	body := line[1:]
	name := body
	var payload string
	if i := strings.IndexAny(body, "=,"); i >= 0 {
		name = body[:i]
		if body[i] == '=' || kind == MsgError {
			// Error frames use "#Error,<code>" with no '='.
			payload = body[i+1:]
		}
	}
	if name == "" {
		return Message{}, fmt.Errorf("%w: missing command name in %q", ErrMalformed, line)
	}

	msg := Message{Kind: kind, Name: name}
	if payload != "" || strings.ContainsRune(body, '=') {
		msg.Fields = splitFields(payload)
	}
	return msg, nil
}

// splitFields splits a payload on commas, treating a leading '{' as a
// quote: "{Office AV},{Rack, left}" yields two fields with braces
// stripped. Outlet names are the only brace-quoted payload in practice.
func splitFields(payload string) []string {
	if payload == "" {
		return []string{}
	}
	var fields []string
	for len(payload) > 0 {
		if payload[0] == '{' {
			if end := strings.IndexByte(payload, '}'); end >= 0 {
				fields = append(fields, payload[1:end])
				payload = payload[end+1:]
				payload = strings.TrimPrefix(payload, ",")
				continue
			}
		}
		if i := strings.IndexByte(payload, ','); i >= 0 {
			fields = append(fields, payload[:i])
			payload = payload[i+1:]
			// A trailing comma yields a final empty field.
			if payload == "" {
				fields = append(fields, "")
			}
			continue
		}
		fields = append(fields, payload)
		break
	}
	return fields
}
