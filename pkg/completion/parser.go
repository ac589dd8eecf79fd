// Package completion reads and writes the completion status file an instrument
// drops into a run directory once sequencing has ended.
package completion

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/beam-cloud/runwatch/pkg/types"
)

const (
	// MaxFileBytes caps how much of a completion file is read
	MaxFileBytes = 1 << 20

	elementStatus  = "CompletionStatus"
	elementRunID   = "RunId"
	elementMessage = "ErrorDescription"

	// Instruments write this literal when there is no error description
	noMessage = "None"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes completion status file content. The tags may appear at any
// depth; the first occurrence of each wins.
func Parse(data []byte) (types.CompletionStatus, error) {
	data = bytes.TrimPrefix(data, byteOrderMark)
	if !utf8.Valid(data) {
		return types.CompletionStatus{}, &types.ErrCompletionEncoding{Offset: firstInvalid(data)}
	}

	fields, err := scan(data)
	if err != nil {
		return types.CompletionStatus{}, err
	}

	code, ok := fields[elementStatus]
	if !ok || code == "" {
		return types.CompletionStatus{}, &types.ErrCompletionMalformed{Reason: "missing " + elementStatus}
	}
	runID, ok := fields[elementRunID]
	if !ok || runID == "" {
		return types.CompletionStatus{}, &types.ErrCompletionMalformed{Reason: "missing " + elementRunID}
	}

	status := types.CompletionStatus{RunID: runID}
	if err := status.Status.UnmarshalText([]byte(code)); err != nil || status.Status == types.CompletionUnrecognized {
		status.Status = types.CompletionUnrecognized
		status.RawStatus = code
	}
	if msg := fields[elementMessage]; msg != noMessage {
		status.Message = msg
	}
	return status, nil
}

// ParseFile reads and parses a completion status file.
func ParseFile(path string) (types.CompletionStatus, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.CompletionStatus{}, fmt.Errorf("open completion status: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileBytes+1))
	if err != nil {
		return types.CompletionStatus{}, fmt.Errorf("read completion status: %w", err)
	}
	if len(data) > MaxFileBytes {
		return types.CompletionStatus{}, &types.ErrCompletionMalformed{Reason: fmt.Sprintf("file exceeds %d bytes", MaxFileBytes)}
	}
	return Parse(data)
}

// scan walks the whole document and returns the text of the first occurrence
// of each element of interest. Only the status code is trimmed; the run id and
// message are kept verbatim.
func scan(data []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var unsupportedCharset bool
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		// Content has already been validated as UTF-8
		switch strings.ToLower(label) {
		case "utf-8", "utf8", "us-ascii", "ascii":
			return input, nil
		}
		unsupportedCharset = true
		return nil, fmt.Errorf("unsupported charset %q", label)
	}

	fields := make(map[string]string, 3)
	var (
		roots    int
		depth    int
		capture  string
		captured int
		text     strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if unsupportedCharset {
				return nil, &types.ErrCompletionEncoding{}
			}
			return nil, &types.ErrCompletionMalformed{Reason: "invalid xml", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return nil, &types.ErrCompletionMalformed{Reason: "multiple root elements"}
				}
			}
			depth++
			if capture == "" && isField(t.Name.Local) {
				if _, seen := fields[t.Name.Local]; !seen {
					capture = t.Name.Local
					captured = depth
					text.Reset()
				}
			}
		case xml.EndElement:
			if capture != "" && depth == captured {
				value := text.String()
				if capture == elementStatus {
					value = strings.TrimSpace(value)
				}
				fields[capture] = value
				capture = ""
			}
			depth--
		case xml.CharData:
			if depth == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, &types.ErrCompletionMalformed{Reason: "text outside root element"}
				}
				continue
			}
			if capture != "" {
				text.Write(t)
			}
		}
	}

	if roots == 0 {
		return nil, &types.ErrCompletionMalformed{Reason: "no root element"}
	}
	return fields, nil
}

func isField(name string) bool {
	return name == elementStatus || name == elementRunID || name == elementMessage
}

func firstInvalid(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(data)
}
