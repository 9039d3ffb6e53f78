// Package tui is the read-only terminal viewer: tracked items, their latest
// snapshot text and the latest recorded diff. All state changes go through
// the scheduler's manual trigger; nothing is edited here.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/servaltullius/aion2-hub-sub001/internal/config"
	"github.com/servaltullius/aion2-hub-sub001/internal/difftext"
	"github.com/servaltullius/aion2-hub-sub001/internal/scheduler"
	"github.com/servaltullius/aion2-hub-sub001/internal/storage"
)

type View int

const (
	ViewItems View = iota
	ViewReader
	ViewDiff
)

type App struct {
	config  *config.Config
	store   *storage.Store
	sched   *scheduler.Scheduler
	itemLst list.Model
	vp      viewport.Model
	spin    spinner.Model
	view    View
	current *storage.NoticeItem
	syncing bool
	width   int
	height  int
	status  string
	err     error

	titleStyle   lipgloss.Style
	mutedStyle   lipgloss.Style
	addedStyle   lipgloss.Style
	removedStyle lipgloss.Style
	errStyle     lipgloss.Style
}

func NewApp(store *storage.Store, sched *scheduler.Scheduler, cfg *config.Config) *App {
	itemLst := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	itemLst.Title = "› notices"
	itemLst.SetShowStatusBar(false)
	itemLst.SetFilteringEnabled(true)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	colors := cfg.UI.Colors
	return &App{
		config:       cfg,
		store:        store,
		sched:        sched,
		itemLst:      itemLst,
		vp:           viewport.New(0, 0),
		spin:         sp,
		view:         ViewItems,
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colors.Primary)),
		mutedStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color(colors.Muted)),
		addedStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color(colors.Added)),
		removedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color(colors.Removed)),
		errStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color(colors.Error)),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadItemsCmd(), a.spin.Tick)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.itemLst.SetSize(msg.Width, msg.Height-2)
		a.vp.Width = msg.Width
		a.vp.Height = msg.Height - 3
		return a, nil

	case itemsLoadedMsg:
		a.err = msg.err
		a.setItems(msg.items)
		return a, nil

	case contentLoadedMsg:
		a.err = msg.err
		a.vp.SetContent(msg.content)
		a.vp.GotoTop()
		a.view = msg.view
		return a, nil

	case syncDoneMsg:
		a.syncing = false
		if msg.status.LastError != "" {
			a.status = "sync failed: " + msg.status.LastError
		} else {
			a.status = fmt.Sprintf("synced: %+v", summarizeTotals(msg.status))
		}
		return a, a.loadItemsCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a.updateFocused(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Never steal keys while the list filter input is active.
	if a.view == ViewItems && a.itemLst.FilterState() == list.Filtering {
		return a.updateFocused(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		if a.view == ViewItems {
			return a, tea.Quit
		}
		a.view = ViewItems
		return a, nil

	case "esc":
		if a.view != ViewItems {
			a.view = ViewItems
			return a, nil
		}

	case "enter":
		if a.view == ViewItems {
			if item, ok := a.itemLst.SelectedItem().(noticeListItem); ok {
				a.current = item.item
				return a, a.loadSnapshotCmd(item.item)
			}
		}

	case "d":
		if a.view != ViewItems && a.current != nil {
			return a, a.loadDiffCmd(a.current)
		}
		if a.view == ViewItems {
			if item, ok := a.itemLst.SelectedItem().(noticeListItem); ok {
				a.current = item.item
				return a, a.loadDiffCmd(item.item)
			}
		}

	case "r":
		if !a.syncing {
			a.syncing = true
			a.status = ""
			return a, tea.Batch(a.triggerSyncCmd(), a.spin.Tick)
		}
	}

	return a.updateFocused(msg)
}

func (a *App) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.view {
	case ViewItems:
		a.itemLst, cmd = a.itemLst.Update(msg)
	default:
		a.vp, cmd = a.vp.Update(msg)
	}
	return a, cmd
}

func (a *App) View() string {
	var b strings.Builder

	switch a.view {
	case ViewItems:
		b.WriteString(a.itemLst.View())
	case ViewReader, ViewDiff:
		title := "snapshot"
		if a.view == ViewDiff {
			title = "latest diff"
		}
		if a.current != nil {
			title = fmt.Sprintf("%s — %s", a.current.Title, title)
		}
		b.WriteString(a.titleStyle.Render(title))
		b.WriteString("\n")
		b.WriteString(a.vp.View())
	}

	b.WriteString("\n")
	switch {
	case a.err != nil:
		b.WriteString(a.errStyle.Render(a.err.Error()))
	case a.syncing:
		b.WriteString(a.spin.View() + a.mutedStyle.Render(" syncing..."))
	case a.status != "":
		b.WriteString(a.mutedStyle.Render(a.status))
	default:
		b.WriteString(a.mutedStyle.Render("enter: read · d: diff · r: sync · q: quit"))
	}

	return b.String()
}

func (a *App) setItems(items []*storage.NoticeItem) {
	listItems := make([]list.Item, 0, len(items))
	for _, item := range items {
		listItems = append(listItems, noticeListItem{item: item})
	}
	a.itemLst.SetItems(listItems)
}

// renderDiff colors added/removed lines and leaves context untouched.
func (a *App) renderDiff(blocks []difftext.Block) string {
	var b strings.Builder
	for _, block := range blocks {
		for _, line := range block.Lines {
			switch block.Type {
			case difftext.Added:
				b.WriteString(a.addedStyle.Render("+ " + line))
			case difftext.Removed:
				b.WriteString(a.removedStyle.Render("- " + line))
			default:
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func summarizeTotals(status scheduler.Status) string {
	if status.LastTotals == nil {
		return "no totals"
	}
	t := status.LastTotals
	return fmt.Sprintf("%d fetched, %d new snapshots, %d diffs, %d skipped",
		t.MetasFetched, t.SnapshotsInserted, t.DiffsInserted, t.Skipped)
}

type noticeListItem struct {
	item *storage.NoticeItem
}

func (i noticeListItem) Title() string { return i.item.Title }

func (i noticeListItem) Description() string {
	desc := i.item.Source
	if i.item.PublishedAt != nil {
		desc += " · " + i.item.PublishedAt.Format("2006-01-02")
	}
	return desc
}

func (i noticeListItem) FilterValue() string { return i.item.Title }

type itemsLoadedMsg struct {
	items []*storage.NoticeItem
	err   error
}

type contentLoadedMsg struct {
	view    View
	content string
	err     error
}

type syncDoneMsg struct {
	status scheduler.Status
}

func (a *App) loadItemsCmd() tea.Cmd {
	return func() tea.Msg {
		items, _, err := a.store.ListItems("", "", 1, 500)
		return itemsLoadedMsg{items: items, err: err}
	}
}

func (a *App) loadSnapshotCmd(item *storage.NoticeItem) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.store.LatestSnapshot(item.ID)
		if err != nil {
			return contentLoadedMsg{view: ViewReader, err: err}
		}
		if snap == nil {
			return contentLoadedMsg{view: ViewReader, content: "(no snapshot captured yet)"}
		}
		return contentLoadedMsg{view: ViewReader, content: snap.NormalizedText}
	}
}

func (a *App) loadDiffCmd(item *storage.NoticeItem) tea.Cmd {
	return func() tea.Msg {
		diff, err := a.store.LatestDiff(item.ID)
		if err != nil {
			return contentLoadedMsg{view: ViewDiff, err: err}
		}
		if diff == nil {
			return contentLoadedMsg{view: ViewDiff, content: "(no recorded changes)"}
		}
		var blocks []difftext.Block
		if err := json.Unmarshal([]byte(diff.DiffJSON), &blocks); err != nil {
			return contentLoadedMsg{view: ViewDiff, err: fmt.Errorf("decoding diff: %w", err)}
		}
		return contentLoadedMsg{view: ViewDiff, content: a.renderDiff(blocks)}
	}
}

func (a *App) triggerSyncCmd() tea.Cmd {
	return func() tea.Msg {
		status, _ := a.sched.TriggerManual(context.Background())
		return syncDoneMsg{status: status}
	}
}
