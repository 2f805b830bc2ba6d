package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	out    io.Writer
	errOut io.Writer
}

// NewOutput creates a new Output formatter. Results go to out; notices
// and errors go to errOut.
func NewOutput(format string, out, errOut io.Writer) *Output {
	return &Output{format: format, out: out, errOut: errOut}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		_, _ = fmt.Fprintln(o.errOut, string(data))
	} else {
		_, _ = fmt.Fprintf(o.errOut, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.out, string(data))
	} else {
		_, _ = fmt.Fprintln(o.out, msg)
	}
}

// PrintNotice outputs a status line for humans. Suppressed in json mode so
// stdout stays one object per chat message.
func (o *Output) PrintNotice(format string, args ...any) {
	if o.format == "json" {
		return
	}
	_, _ = fmt.Fprintf(o.errOut, format+"\n", args...)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case SessionList:
		o.printSessionList(v)
	case Account:
		o.printAccount(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// Session response type
type Session struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Login       string    `json:"login"`
	PeerAddr    string    `json:"peer_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// SessionList response type
type SessionList struct {
	Count    int       `json:"count"`
	Sessions []Session `json:"sessions"`
}

// Account response type
type Account struct {
	Login       string    `json:"login"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.out, "Status: %s\n", h.Status)
}

func (o *Output) printSessionList(l SessionList) {
	_, _ = fmt.Fprintf(o.out, "Sessions (%d):\n", l.Count)
	for _, s := range l.Sessions {
		_, _ = fmt.Fprintf(o.out, "  - %s (%s) from %s since %s [%s]\n",
			s.DisplayName, s.Login, s.PeerAddr, s.ConnectedAt.Format(time.DateTime), s.ID)
	}
}

func (o *Output) printAccount(a Account) {
	_, _ = fmt.Fprintf(o.out, "Account: %s\n", a.Login)
	_, _ = fmt.Fprintf(o.out, "Display Name: %s\n", a.DisplayName)
	_, _ = fmt.Fprintf(o.out, "Created: %s\n", a.CreatedAt.Format(time.DateTime))
	_, _ = fmt.Fprintf(o.out, "Updated: %s\n", a.UpdatedAt.Format(time.DateTime))
}
