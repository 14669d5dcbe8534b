package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sobot/armdoctor/pkg/diag"
	"github.com/sobot/armdoctor/pkg/robot"
	"github.com/sobot/armdoctor/pkg/scs"
)

type MonitorCommand struct {
	Port     string `long:"port" short:"p" required:"true" description:"Serial port"`
	BaudRate int    `long:"baud" short:"b" default:"1000000" description:"Baud rate"`
	FirstID  int    `long:"first-id" default:"1" description:"First servo ID"`
	LastID   int    `long:"last-id" default:"6" description:"Last servo ID"`
}

func (c *MonitorCommand) Execute(args []string) error {
	// Short timeout and no retries so a dead servo cannot stall the
	// refresh tick.
	bus, err := scs.NewBus(scs.BusConfig{
		Port:     c.Port,
		BaudRate: c.BaudRate,
		Timeout:  30 * time.Millisecond,
		Retries:  -1,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", c.Port, err)
	}
	defer bus.Close()

	ids := make([]int, 0, c.LastID-c.FirstID+1)
	for id := c.FirstID; id <= c.LastID; id++ {
		ids = append(ids, id)
	}

	p := tea.NewProgram(newMonitorModel(bus, ids))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	return nil
}

type monitorModel struct {
	bus      *scs.Bus
	ids      []int
	rows     []diag.MotorHealth
	quitting bool
}

type monitorTickMsg time.Time

func newMonitorModel(bus *scs.Bus, ids []int) monitorModel {
	return monitorModel{bus: bus, ids: ids}
}

func monitorTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTick()
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case monitorTickMsg:
		report, err := diag.CheckHealth(context.Background(), m.bus, m.ids)
		if err == nil {
			m.rows = report.Motors
		}
		return m, monitorTick()
	}
	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableMotorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableBadStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.rows))
	dead := make([]bool, 0, len(m.rows))
	for _, h := range m.rows {
		name := string(robot.MotorByID(h.ID))
		if name == "" {
			name = fmt.Sprintf("id %d", h.ID)
		}
		if !h.Responds {
			rows = append(rows, []string{name, "-", "-", "-", "-", "no response"})
			dead = append(dead, true)
			continue
		}
		moving := ""
		if h.Moving {
			moving = "moving"
		}
		torque := "off"
		if h.Torque {
			torque = "on"
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%d", h.Position),
			torque,
			fmt.Sprintf("%.1fV", h.Voltage),
			fmt.Sprintf("%d°C", h.Temperature),
			moving,
		})
		dead = append(dead, false)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Position", "Torque", "Voltage", "Temp", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if row >= 0 && row < len(dead) && dead[row] {
				return tableBadStyle
			}
			if col == 0 {
				return tableMotorStyle
			}
			return tableCellStyle
		})

	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press q to quit"))
	return sb.String()
}
