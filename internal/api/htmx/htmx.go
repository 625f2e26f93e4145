package htmx

import (
	"net/http"
	"strings"
)

// TriggerHeader names the client-side event htmx dispatches after a swap.
const TriggerHeader = "HX-Trigger"

func IsRequest(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("HX-Request"), "true")
}

// Trigger builds the header set that fires event on the client.
func Trigger(event string) map[string]string {
	return map[string]string{TriggerHeader: event}
}
