package cli

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/beam-cloud/runwatch/pkg/types"
)

// FormatError converts an error to a human-readable message
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var malformed *types.ErrCompletionMalformed
	var encoding *types.ErrCompletionEncoding
	var apiErr *APIError
	switch {
	case errors.As(err, &malformed):
		return "Completion file is malformed: " + malformed.Reason
	case errors.As(err, &encoding):
		return fmt.Sprintf("Completion file is not valid UTF-8 (byte %d)", encoding.Offset)
	case errors.As(err, &apiErr):
		return apiErr.Message
	}

	return cleanErrorMessage(err.Error())
}

// GetErrorSuggestions returns helpful suggestions for an error
func GetErrorSuggestions(err error) []string {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	var netErr *net.OpError
	switch {
	case errors.Is(err, os.ErrNotExist):
		return []string{
			"Check the path points at a run directory or completion file",
		}
	case (&types.ErrRunIncomplete{}).From(err):
		return []string{
			"The run may still be sequencing or copying; try again once the copy marker is written",
		}
	case (&types.ErrRunUnsuccessful{}).From(err):
		return []string{
			"Inspect the outcome: " + CodeStyle.Render("runwatch outcome <run-dir>"),
		}
	case errors.As(err, &apiErr) && apiErr.StatusCode == 401:
		return []string{
			"Pass the daemon's token: " + CodeStyle.Render("--token <token>"),
		}
	case errors.As(err, &netErr):
		return []string{
			"Check that the daemon is running: " + CodeStyle.Render("runwatch watch"),
			"Verify the daemon address: " + CodeStyle.Render("--addr <url>"),
		}
	}
	return nil
}

// cleanErrorMessage cleans up common error message patterns
func cleanErrorMessage(msg string) string {
	msg = strings.TrimPrefix(msg, "error: ")
	msg = strings.TrimPrefix(msg, "Error: ")

	// For deeply nested errors keep the first and last parts
	parts := strings.Split(msg, ": ")
	if len(parts) > 3 {
		msg = parts[0] + ": " + parts[len(parts)-1]
	}

	return msg
}

// PrintFormattedError prints an error with styling and optional suggestions
func PrintFormattedError(title string, err error) {
	fmt.Fprintln(stdout)
	PrintErrorMsg(title)

	if err != nil {
		fmt.Fprintf(stdout, "  %s\n", DimStyle.Render(FormatError(err)))

		if suggestions := GetErrorSuggestions(err); len(suggestions) > 0 {
			PrintSuggestions("Suggestions:", suggestions)
		}
	}
	fmt.Fprintln(stdout)
}
