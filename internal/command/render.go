package command

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"ocpp_station_sim/internal/component"
	"ocpp_station_sim/internal/evse/states"
)

const maxValueWidth = 150

func RenderEvses(w io.Writer, views []states.EvseView) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"EVSE", "State", "Connectors", "Transaction", "Charging State", "Token"})
	for _, v := range views {
		connectors := make([]string, 0, len(v.Connectors))
		for _, c := range v.Connectors {
			connectors = append(connectors, fmt.Sprintf("%d:%s", c.ID, c.CableStatus))
		}
		t.AppendRow(table.Row{v.ID, v.State, strings.Join(connectors, " "), v.TransactionID, v.ChargingState, v.Token})
	}
	t.Render()
}

func RenderVariables(w io.Writer, results []component.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Component", "Variable", "Attribute", "Value", "Status"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Component, r.Variable, r.AttributeType, r.Value, r.Status})
	}
	t.Render()
}

// RenderStore dumps every stored key. Long values are truncated.
func RenderStore(w io.Writer, each func(fn func(key, value string, expiresAt uint64)) error) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Key", "Value", "LTT"})
	err := each(func(key, value string, expiresAt uint64) {
		if len(value) > maxValueWidth {
			value = fmt.Sprintf("%s...", value[:maxValueWidth])
		}
		t.AppendRow(table.Row{key, value, expiresAt})
	})
	if err != nil {
		return err
	}
	t.Render()
	return nil
}
