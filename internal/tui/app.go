// Package tui is a small operator console: the inbox on the left, the
// selected conversation on the right, a composer underneath.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wabot/internal/api"
	"github.com/matheus3301/wabot/internal/client"
	"github.com/rivo/tview"
)

const refreshInterval = 2 * time.Second

// App is the TUI application shell.
type App struct {
	app      *tview.Application
	c        *client.Client
	inbox    *Inbox
	thread   *Thread
	composer *tview.InputField
	status   *tview.TextView
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewApp creates the application wired to an admin API client.
func NewApp(c *client.Client) *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		app:    tview.NewApplication(),
		c:      c,
		inbox:  NewInbox(),
		thread: NewThread(),
		status: tview.NewTextView().SetDynamicColors(true),
		ctx:    ctx,
		cancel: cancel,
	}

	a.composer = tview.NewInputField().SetLabel(" > ")
	a.composer.SetBorder(true).SetTitle(" Reply ")
	a.composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		a.sendReply()
	})

	a.setupBindings()
	a.setupLayout()
	return a
}

func (a *App) setupLayout() {
	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 3, 0, false)
	main := tview.NewFlex().
		AddItem(a.inbox, 0, 1, true).
		AddItem(right, 0, 2, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(main, 0, 1, true).
		AddItem(a.status, 1, 0, false)
	a.app.SetRoot(root, true)
	a.setStatus("q:quit  tab:reply  r:mark read  d:delete")
}

func (a *App) setupBindings() {
	a.inbox.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyTAB:
			a.app.SetFocus(a.composer)
			return nil
		case event.Rune() == 'q':
			a.app.Stop()
			return nil
		case event.Rune() == 'r':
			a.markRead()
			return nil
		case event.Rune() == 'd':
			a.deleteConversation()
			return nil
		}
		return event
	})
	a.composer.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyTAB || event.Key() == tcell.KeyEscape {
			a.app.SetFocus(a.inbox)
			return nil
		}
		return event
	})
	a.inbox.SetSelectionChangedFunc(func(int, int) {
		go a.refresh()
	})
}

// Run starts the refresh loop and blocks until the user quits.
func (a *App) Run() error {
	defer a.cancel()
	go a.refreshLoop()
	return a.app.Run()
}

func (a *App) refreshLoop() {
	a.refresh()
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.refresh()
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) refresh() {
	convs, err := a.c.Conversations(a.ctx, 100, 0)
	if err != nil {
		a.queueStatus(fmt.Sprintf("[red]daemon unreachable: %v[-]", err))
		return
	}
	contactID := a.inbox.SelectedContact()
	if contactID == "" && len(convs) > 0 {
		contactID = convs[0].ContactID
	}
	var msgs []api.Message
	if contactID != "" {
		m, err := a.c.Messages(a.ctx, contactID, 0, 200)
		if err == nil {
			msgs = m
		}
	}
	a.app.QueueUpdateDraw(func() {
		a.inbox.Update(convs)
		if contactID != "" {
			a.thread.Update(contactID, msgs)
		}
	})
}

func (a *App) sendReply() {
	contactID := a.inbox.SelectedContact()
	text := a.composer.GetText()
	if contactID == "" || text == "" {
		return
	}
	a.composer.SetText("")
	go func() {
		if err := a.c.Send(a.ctx, contactID, text); err != nil {
			a.queueStatus(fmt.Sprintf("[red]send failed: %v[-]", err))
			return
		}
		a.refresh()
	}()
}

func (a *App) markRead() {
	contactID := a.inbox.SelectedContact()
	if contactID == "" {
		return
	}
	go func() {
		if err := a.c.MarkRead(a.ctx, contactID); err != nil {
			a.queueStatus(fmt.Sprintf("[red]mark read failed: %v[-]", err))
			return
		}
		a.refresh()
	}()
}

func (a *App) deleteConversation() {
	contactID := a.inbox.SelectedContact()
	if contactID == "" {
		return
	}
	go func() {
		if err := a.c.Delete(a.ctx, contactID); err != nil {
			a.queueStatus(fmt.Sprintf("[red]delete failed: %v[-]", err))
			return
		}
		a.refresh()
	}()
}

func (a *App) setStatus(text string) {
	a.status.SetText(" " + text)
}

func (a *App) queueStatus(text string) {
	a.app.QueueUpdateDraw(func() { a.setStatus(text) })
}
