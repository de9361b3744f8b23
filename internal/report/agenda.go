package report

import (
	"fmt"
	"io"
	"time"

	"agendei/internal/clock"
	"agendei/internal/model"
	"agendei/internal/slots"
)

// ResourceAgenda is one resource's day: its bookings and its free start times.
type ResourceAgenda struct {
	Resource model.Resource
	Bookings []model.Booking
	Free     []time.Time
}

// Agenda is a business's day across resources.
type Agenda struct {
	Business  model.Business
	Date      time.Time
	Services  map[int64]model.Service
	Resources []ResourceAgenda
}

var agendaColumns = []string{"Início", "Fim", "Cliente", "Telefone", "Serviço", "Duração", "Referência"}

// WriteAgenda renders a one-sheet-per-resource workbook to w.
func WriteAgenda(w io.Writer, a Agenda, loc *time.Location) error {
	wb := NewWorkbook()
	defer wb.Close()

	if len(a.Resources) == 0 {
		if _, err := wb.AddSheet(a.Business.Name); err != nil {
			return err
		}
		if err := wb.WriteRow([]any{"Nenhum profissional ativo em " + a.Date.Format("02/01/2006")}); err != nil {
			return err
		}
		return wb.Save(w)
	}

	used := make(map[string]bool)
	for _, ra := range a.Resources {
		name := SheetName(ra.Resource.Name)
		if used[name] {
			name = SheetName(fmt.Sprintf("%s %d", ra.Resource.Name, ra.Resource.ID))
		}
		used[name] = true

		if _, err := wb.AddSheet(name); err != nil {
			return err
		}
		if err := writeResource(wb, a, ra, loc); err != nil {
			return fmt.Errorf("write sheet %s: %w", name, err)
		}
	}
	return wb.Save(w)
}

func writeResource(wb *Workbook, a Agenda, ra ResourceAgenda, loc *time.Location) error {
	title := fmt.Sprintf("%s · %s · %s", a.Business.Name, ra.Resource.Name, a.Date.Format("02/01/2006"))
	if err := wb.WriteRow([]any{title}); err != nil {
		return err
	}
	if err := wb.WriteHeader(agendaColumns); err != nil {
		return err
	}

	for _, b := range ra.Bookings {
		start := clock.Localize(b.Start, loc)
		svc := a.Services[b.ServiceID]
		duration := b.ServiceDuration
		serviceName := svc.Name
		if serviceName == "" {
			serviceName = "-"
		}
		end := "-"
		if duration > 0 {
			end = start.Add(time.Duration(duration) * time.Minute).Format("15:04")
		}
		row := []any{start.Format("15:04"), end, b.ClientName, b.ClientPhone, serviceName, durationLabel(duration), b.Reference}
		if err := wb.WriteRow(row); err != nil {
			return err
		}
	}

	if err := wb.WriteRow(nil); err != nil {
		return err
	}
	if err := wb.WriteHeader([]string{"Horários livres"}); err != nil {
		return err
	}
	for _, t := range ra.Free {
		if err := wb.WriteRow([]any{t.In(loc).Format("15:04")}); err != nil {
			return err
		}
	}
	return nil
}

func durationLabel(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	return slots.FormatDuration(minutes)
}
