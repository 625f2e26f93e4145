package roster

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"

	"github.com/codr1/rinkside/internal/reorder"
	"github.com/codr1/rinkside/internal/rosters"
)

func rosterGridComponent(eventID int64, slots []reorder.GridSlot, unassigned []reorder.Entrant) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, buildRosterGridHTML(eventID, slots, unassigned))
		return err
	})
}

func waitlistComponent(eventID int64, slots []reorder.LinearSlot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, buildWaitlistHTML(eventID, slots))
		return err
	})
}

func renderHTMLComponent(ctx context.Context, w http.ResponseWriter, component templ.Component, headers map[string]string, logMsg string, errMsg string) bool {
	logger := log.Ctx(ctx)
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		logger.Error().Err(err).Msg(logMsg)
		http.Error(w, errMsg, http.StatusInternalServerError)
		return false
	}
	w.Header().Set("Content-Type", "text/html")
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Error().Err(err).Msg("Failed to write response")
	}
	return true
}

func buildRosterGridHTML(eventID int64, slots []reorder.GridSlot, unassigned []reorder.Entrant) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, `<div id="roster-grid" class="grid grid-cols-2 gap-2" data-event-id="%d" hx-get="/api/v1/events/%d/roster" hx-trigger="%s from:body" hx-swap="outerHTML">`, eventID, eventID, rosterChangedEvent)
	builder.WriteString(`<div class="text-center text-sm font-semibold text-gray-700">Team A</div>`)
	builder.WriteString(`<div class="text-center text-sm font-semibold text-gray-700">Team B</div>`)
	for _, slot := range slots {
		for column, cell := range slot.Cells {
			fmt.Fprintf(&builder, `<div class="rounded border p-2 min-h-12" data-row="%d" data-column="%d" data-kind="%s">`, slot.Row, column, slot.Kind)
			if cell == nil {
				if slot.Kind == reorder.SlotGoalie {
					builder.WriteString(`<span class="text-xs text-gray-400">No goalie</span>`)
				}
			} else {
				builder.WriteString(entrantCardHTML(*cell))
			}
			builder.WriteString(`</div>`)
		}
	}
	builder.WriteString(`</div>`)

	if len(unassigned) > 0 {
		builder.WriteString(`<div id="roster-unassigned" class="mt-4"><h3 class="text-sm font-semibold text-gray-700">Unassigned</h3><ul class="space-y-1">`)
		for _, entrant := range unassigned {
			builder.WriteString(`<li>`)
			builder.WriteString(entrantCardHTML(entrant))
			builder.WriteString(`</li>`)
		}
		builder.WriteString(`</ul></div>`)
	}
	return builder.String()
}

func buildWaitlistHTML(eventID int64, slots []reorder.LinearSlot) string {
	if len(slots) == 0 {
		return fmt.Sprintf(`<div id="waitlist" data-event-id="%d" class="rounded border border-dashed p-6 text-center text-sm text-gray-500">Nobody is waiting.</div>`, eventID)
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, `<ol id="waitlist" class="space-y-1" data-event-id="%d" hx-get="/api/v1/events/%d/waitlist" hx-trigger="%s from:body" hx-swap="outerHTML">`, eventID, eventID, waitlistChangedEvent)
	for _, slot := range slots {
		fmt.Fprintf(&builder, `<li class="flex items-center gap-2 rounded border p-2" data-index="%d"><span class="w-6 text-right text-xs text-gray-500">%d</span>`, slot.Index, slot.Index+1)
		builder.WriteString(entrantCardHTML(slot.Entrant))
		builder.WriteString(`</li>`)
	}
	builder.WriteString(`</ol>`)
	return builder.String()
}

func entrantCardHTML(entrant reorder.Entrant) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, `<div class="flex items-center justify-between" data-entrant-id="%d">`, entrant.ID)
	fmt.Fprintf(&builder, `<span class="font-medium text-gray-900">%s</span>`, html.EscapeString(entrant.Name))
	if entrant.IsGoalie() {
		builder.WriteString(`<span class="ml-1 rounded bg-blue-100 px-1 text-xs text-blue-800">G</span>`)
	}
	if status := entrant.Meta[rosters.MetaPaymentStatus]; status != "" {
		fmt.Fprintf(&builder, `<span class="ml-auto text-xs text-gray-500">%s</span>`, html.EscapeString(status))
	}
	builder.WriteString(`</div>`)
	return builder.String()
}
