// Package ui renders the signal board as a terminal table and drives the
// enrollment flow from a keypress.
package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"signalboard/client/board"
	"signalboard/client/enroll"
	"signalboard/client/stream"
	"signalboard/models"
	"signalboard/pkg/logger"
)

var columns = []string{
	"Time", "Symbol", "Action", "Entry", "Qty", "Pos %",
	"Take Profit", "Stop Loss", "Conf", "Votes",
}

// Dashboard owns the terminal application and projects board state into it.
type Dashboard struct {
	app    *tview.Application
	table  *tview.Table
	status *tview.TextView
	footer *tview.TextView

	board *board.Board
	flow  *enroll.Flow

	enrolling   bool
	unsupported bool
}

// New creates the dashboard around a board and an enrollment flow.
func New(b *board.Board, flow *enroll.Flow) *Dashboard {
	d := &Dashboard{
		app:    tview.NewApplication(),
		table:  tview.NewTable(),
		status: tview.NewTextView().SetDynamicColors(true),
		footer: tview.NewTextView().SetDynamicColors(true),
		board:  b,
		flow:   flow,
	}

	d.table.SetBorders(false)
	d.table.SetFixed(1, 0)
	d.table.SetSelectable(false, false)

	d.status.SetText("[yellow]connecting[-]")
	d.footer.SetText(enrollHint)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.status, 1, 0, false).
		AddItem(d.table, 0, 1, true).
		AddItem(d.footer, 1, 0, false)

	d.app.SetRoot(layout, true)
	d.app.SetInputCapture(d.handleKey)

	d.renderHeader()
	return d
}

const (
	enrollHint    = "[gray]press 'n' to enable notifications, 'q' to quit[-]"
	enrolledHint  = "[green]notifications enabled[-]  [gray]'q' to quit[-]"
	enrollingHint = "[yellow]enabling notifications...[-]"
	enrollFailed  = "[red]enabling notifications failed, press 'n' to retry[-]"
	noRelayHint   = "[red]notifications are not available on this machine[-]"
)

// Run starts the terminal event loop and blocks until the user quits.
func (d *Dashboard) Run() error {
	return d.app.Run()
}

// Stop terminates the terminal application.
func (d *Dashboard) Stop() {
	d.app.Stop()
}

// HandleMessage feeds one stream message into the board. Safe to call from
// the stream goroutine.
func (d *Dashboard) HandleMessage(msg models.StreamMessage) {
	d.app.QueueUpdateDraw(func() {
		if err := d.board.Apply(msg); err != nil {
			logger.Warn("Dropping unusable stream message", zap.Error(err))
			return
		}
		d.renderRows()
	})
}

// SetStatus updates the connection status line. Safe to call from the
// stream goroutine.
func (d *Dashboard) SetStatus(s stream.Status) {
	d.app.QueueUpdateDraw(func() {
		switch s {
		case stream.StatusConnected:
			d.status.SetText("[green]connected[-]")
		case stream.StatusDisconnected:
			d.status.SetText("[red]disconnected, retrying[-]")
		default:
			d.status.SetText("[yellow]connecting[-]")
		}
	})
}

func (d *Dashboard) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q':
		d.app.Stop()
		return nil
	case 'n':
		d.startEnrollment()
		return nil
	}
	if event.Key() == tcell.KeyCtrlC {
		d.app.Stop()
		return nil
	}
	return event
}

// startEnrollment kicks off the flow in the background so the event loop
// keeps drawing. Repeat presses while a run is in flight are ignored, as
// are presses after success or after the relay was found missing.
func (d *Dashboard) startEnrollment() {
	if d.enrolling || d.unsupported || d.flow.Enrolled() {
		return
	}
	d.enrolling = true
	d.footer.SetText(enrollingHint)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := d.flow.Enroll(ctx)

		d.app.QueueUpdateDraw(func() {
			d.enrolling = false
			switch {
			case err == nil:
				d.footer.SetText(enrolledHint)
			case errors.Is(err, enroll.ErrUnsupported):
				d.unsupported = true
				d.footer.SetText(noRelayHint)
			default:
				// The cause is already in the log; the footer stays generic.
				d.footer.SetText(enrollFailed)
			}
		})
	}()
}

func (d *Dashboard) renderHeader() {
	for col, name := range columns {
		cell := tview.NewTableCell(name).
			SetTextColor(tcell.ColorAqua).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false)
		d.table.SetCell(0, col, cell)
	}
}

func (d *Dashboard) renderRows() {
	rows := d.board.Rows()

	for i, row := range rows {
		color := actionColor(row.ActionClass)
		values := []string{
			row.Time, row.Symbol, row.Action, row.EntryPrice, row.Quantity,
			row.PositionPct, row.TakeProfit, row.StopLoss, row.Confidence, row.Votes,
		}
		for col, value := range values {
			cell := tview.NewTableCell(value).SetTextColor(tcell.ColorWhite)
			if col == 2 {
				cell.SetTextColor(color)
			}
			d.table.SetCell(i+1, col, cell)
		}
	}

	d.status.SetTitle(fmt.Sprintf(" %d signals ", len(rows)))
}

func actionColor(class string) tcell.Color {
	switch class {
	case board.ClassBuy:
		return tcell.ColorGreen
	case board.ClassSell:
		return tcell.ColorRed
	default:
		return tcell.ColorYellow
	}
}
