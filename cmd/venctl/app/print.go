package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gosuri/uitable"

	rhttp "github.com/autopeer-io/vensim/internal/recorder/server/http"
	"github.com/autopeer-io/vensim/internal/ven/command"
	vhttp "github.com/autopeer-io/vensim/internal/ven/server/http"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() *uitable.Table {
	t := uitable.New()
	t.MaxColWidth = 40
	t.Separator = "  "
	return t
}

func kw(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func unix(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printState(w io.Writer, st *vhttp.StateView) {
	t := newTable()
	t.AddRow("VEN:", st.VenID)
	broker := "disconnected"
	if st.Connected {
		broker = "connected"
	}
	t.AddRow("Broker:", broker)
	t.AddRow("Power (kW):", kw(st.PowerKW))
	t.AddRow("Base (kW):", kw(st.BasePowerKW))
	t.AddRow("Baseline (kW):", kw(st.BaselinePowerKW))
	t.AddRow("Shed (kW):", kw(st.ShedKW))
	t.AddRow("Messages:", st.MessageNum)
	t.AddRow("Last telemetry:", unix(st.LastTelemetry))
	if ev := st.ActiveEvent; ev != nil {
		t.AddRow("Event:", ev.EventID)
		t.AddRow("  requested/actual (kW):", kw(ev.RequestedShedKW)+" / "+kw(ev.ActualShedKW))
		t.AddRow("  window:", unix(ev.StartTS)+" .. "+unix(ev.EndTS))
		t.AddRow("  delivered (kWh):", kw(ev.DeliveredKWh))
	} else {
		t.AddRow("Event:", "none")
	}
	fmt.Fprintln(w, t)
	fmt.Fprintln(w)
	printCircuits(w, st.Circuits)
}

func printCircuits(w io.Writer, circuits []vhttp.CircuitView) {
	t := newTable()
	t.AddRow("ID", "NAME", "CLASS", "SWITCH", "ACTIVE", "RATED", "BASELINE", "CURRENT", "SHEDDABLE")
	for _, c := range circuits {
		class := c.PriorityClass
		if c.Critical {
			class += "*"
		}
		t.AddRow(c.ID, c.Name, class, onOff(c.Enabled), onOff(c.Active),
			kw(c.RatedKW), kw(c.BaselineKW), kw(c.CurrentKW), kw(c.ShedCapabilityKW))
	}
	fmt.Fprintln(w, t)
}

func printAck(w io.Writer, output string, ack *command.Ack) error {
	if output == outputJSON {
		return printJSON(w, ack)
	}

	t := newTable()
	t.AddRow("Status:", ack.Status)
	if ack.Error != "" {
		t.AddRow("Error:", ack.Error)
	}
	if ack.EventID != "" {
		t.AddRow("Event:", ack.EventID)
	}
	if ack.RequestedShedKW != nil {
		t.AddRow("Requested (kW):", kw(*ack.RequestedShedKW))
	}
	if ack.ActualShedKW != nil {
		t.AddRow("Actual (kW):", kw(*ack.ActualShedKW))
	}
	if ack.Partial {
		t.AddRow("Partial:", "yes")
	}
	if ack.EndTS != 0 {
		t.AddRow("Ends:", unix(ack.EndTS))
	}
	fmt.Fprintln(w, t)

	if len(ack.Circuits) > 0 {
		ct := newTable()
		ct.AddRow("CIRCUIT", "CLASS", "BEFORE", "AFTER", "SHED")
		for _, c := range ack.Circuits {
			ct.AddRow(c.ID, c.PriorityClass, kw(c.BeforeKW), kw(c.AfterKW), kw(c.ShedKW))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, ct)
	}
	return nil
}

func printHistory(w io.Writer, events []rhttp.EventView) {
	t := newTable()
	t.AddRow("EVENT", "REASON", "START", "END", "REQUESTED", "ACTUAL", "DELIVERED (kWh)")
	for _, e := range events {
		t.AddRow(e.EventID, e.Reason, unix(e.StartTS), unix(e.EndTS),
			kw(e.RequestedShedKW), kw(e.ActualShedKW), kw(e.DeliveredKWh))
	}
	fmt.Fprintln(w, t)
}
