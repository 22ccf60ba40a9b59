// Package sse decodes server-sent-event framing from a completion stream.
//
// Parsing is push based. The caller hands over byte fragments in whatever
// sizes the transport delivers them, and the parser calls back once per
// completed record. Only the unterminated tail of the current line and the
// record under construction are retained between fragments.
//
// Framing follows https://html.spec.whatwg.org/multipage/server-sent-events.html.
// Writing events is out of scope.
package sse

// Event is one blank-line terminated record.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data joins the record's "data:" lines with "\n".
	Data string

	// ID is the "id:" field.
	ID string
}
