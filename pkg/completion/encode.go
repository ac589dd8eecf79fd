package completion

import (
	"bytes"
	"encoding/xml"
	"strings"
	"unicode/utf8"

	"github.com/beam-cloud/runwatch/pkg/types"
)

// Encode renders a status the way an instrument writes it. An absent message
// is written as the literal None. Values that would not parse back to the
// same status are rejected with ErrCompletionUnencodable.
func Encode(status types.CompletionStatus) ([]byte, error) {
	code, err := encodableCode(status)
	if err != nil {
		return nil, err
	}
	if status.RunID == "" {
		return nil, &types.ErrCompletionUnencodable{Field: elementRunID, Reason: "is empty"}
	}
	if status.Message == noMessage {
		return nil, &types.ErrCompletionUnencodable{Field: elementMessage, Reason: "is the reserved value " + noMessage}
	}

	msg := status.Message
	if msg == "" {
		msg = noMessage
	}

	for _, f := range [][2]string{{elementStatus, code}, {elementRunID, status.RunID}, {elementMessage, msg}} {
		if err := checkText(f[0], f[1]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<RunCompletionStatus>\n")
	writeElement(&buf, elementStatus, code)
	writeElement(&buf, elementRunID, status.RunID)
	writeElement(&buf, elementMessage, msg)
	buf.WriteString("</RunCompletionStatus>\n")
	return buf.Bytes(), nil
}

// encodableCode returns the text written for the status code. An unrecognized
// code must be non-empty, untrimmed and must not spell a known code.
func encodableCode(status types.CompletionStatus) (string, error) {
	if status.Status != types.CompletionUnrecognized {
		if _, err := status.Status.MarshalText(); err != nil {
			return "", &types.ErrCompletionUnencodable{Field: elementStatus, Reason: err.Error()}
		}
		return status.Status.String(), nil
	}

	raw := status.RawStatus
	if raw == "" {
		return "", &types.ErrCompletionUnencodable{Field: elementStatus, Reason: "is unrecognized without a raw value"}
	}
	if raw != strings.TrimSpace(raw) {
		return "", &types.ErrCompletionUnencodable{Field: elementStatus, Reason: "has surrounding whitespace"}
	}
	var known types.CompletionCode
	if err := known.UnmarshalText([]byte(raw)); err == nil && known != types.CompletionUnrecognized {
		return "", &types.ErrCompletionUnencodable{Field: elementStatus, Reason: "raw value " + raw + " is a known code"}
	}
	return raw, nil
}

// checkText rejects text that is not valid UTF-8 or holds characters XML 1.0
// cannot carry, which xml.EscapeText would otherwise replace.
func checkText(field, value string) error {
	if !utf8.ValidString(value) {
		return &types.ErrCompletionUnencodable{Field: field, Reason: "is not valid utf-8"}
	}
	for _, r := range value {
		if !isXMLChar(r) {
			return &types.ErrCompletionUnencodable{Field: field, Reason: "contains a character xml cannot carry"}
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

func writeElement(buf *bytes.Buffer, name, value string) {
	buf.WriteString("  <" + name + ">")
	_ = xml.EscapeText(buf, []byte(value))
	buf.WriteString("</" + name + ">\n")
}
