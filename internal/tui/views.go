package tui

import (
	"fmt"
	"time"

	"github.com/matheus3301/wabot/internal/api"
	"github.com/matheus3301/wabot/internal/store"
	"github.com/rivo/tview"
)

// Inbox is the conversation list (K9s-inspired table).
type Inbox struct {
	*tview.Table
	convs []api.Conversation
}

func NewInbox() *Inbox {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Inbox ")
	return &Inbox{Table: table}
}

// Update refreshes the table with new data, preserving the selection.
func (in *Inbox) Update(convs []api.Conversation) {
	selected := in.SelectedContact()
	in.convs = convs
	in.Clear()

	in.SetCell(0, 0, tview.NewTableCell(" Contact").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	in.SetCell(0, 1, tview.NewTableCell(" Unread").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	in.SetCell(0, 2, tview.NewTableCell(" Last Activity").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	selRow := 1
	for i, conv := range convs {
		row := i + 1
		name := conv.DisplayName
		if name == "" {
			name = conv.ContactID
		}
		unread := ""
		if conv.UnreadCount > 0 {
			unread = fmt.Sprintf("%d", conv.UnreadCount)
			name = "* " + name
		}
		in.SetCell(row, 0, tview.NewTableCell(" "+name))
		in.SetCell(row, 1, tview.NewTableCell(" "+unread))
		in.SetCell(row, 2, tview.NewTableCell(" "+relativeTime(conv.LastActivityAt)))
		if conv.ContactID == selected {
			selRow = row
		}
	}
	if len(convs) > 0 {
		in.Select(selRow, 0)
	}
}

// SelectedContact returns the contact id of the highlighted row, or "".
func (in *Inbox) SelectedContact() string {
	row, _ := in.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(in.convs) {
		return ""
	}
	return in.convs[idx].ContactID
}

// Thread renders one conversation's history.
type Thread struct {
	*tview.TextView
}

func NewThread() *Thread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Conversation ")
	return &Thread{TextView: tv}
}

// Update rewrites the pane. msgs arrive newest first from the API; render
// oldest first so the thread reads top to bottom.
func (th *Thread) Update(contactID string, msgs []api.Message) {
	th.Clear()
	th.SetTitle(fmt.Sprintf(" %s ", contactID))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		label := "[green]them[-]"
		if m.Direction == store.DirectionOut {
			label = "[blue]us[-]"
		}
		suffix := ""
		if m.Status == store.StatusFailed {
			suffix = " [red](failed)[-]"
		} else if m.Status == store.StatusSending {
			suffix = " [yellow](sending)[-]"
		}
		body := m.Body
		if body == "" {
			body = fmt.Sprintf("<%s>", m.MessageType)
		}
		fmt.Fprintf(th, "[gray]%s[-] %s: %s%s\n", clockTime(m.Timestamp), label, tview.Escape(body), suffix)
	}
	th.ScrollToEnd()
}

func relativeTime(unixMs int64) string {
	if unixMs == 0 {
		return "-"
	}
	d := time.Since(time.UnixMilli(unixMs))
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func clockTime(unixMs int64) string {
	return time.UnixMilli(unixMs).Format("15:04")
}
