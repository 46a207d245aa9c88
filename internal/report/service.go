package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/signintech/gopdf"

	"agendabot/internal/chatbot"
)

// AppointmentSource is the slice of the appointment store this package needs.
type AppointmentSource interface {
	ListAll(ctx context.Context) ([]chatbot.Appointment, error)
}

type Service struct {
	appointments AppointmentSource
}

func NewService(appointments AppointmentSource) *Service {
	return &Service{appointments: appointments}
}

// DejaVuSans covers the accented Portuguese characters in names and periods.
// Probe the common distro paths.
var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// RenderAppointments renders the full appointment book as a PDF document,
// newest first.
func (s *Service) RenderAppointments(ctx context.Context) ([]byte, error) {
	appointments, err := s.appointments.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, ensure ttf-dejavu is installed: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Relatório de Consultas")
	pdf.Br(30)

	if err := pdf.SetFont("DejaVu", "", 12); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Gerado em: %s", time.Now().Format("02/01/2006 15:04")))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Total de consultas: %d", len(appointments)))
	pdf.Br(25)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}
	if len(appointments) == 0 {
		pdf.Cell(nil, "- Nenhuma consulta registrada.")
		pdf.Br(15)
	}
	for _, a := range appointments {
		line := fmt.Sprintf("- %s | Data: %s | Período: %s | Usuário: %s | Registrada em %s",
			a.Name, a.Date, a.Period, a.UserID, a.CreatedAt.Format("02/01/2006 15:04"))
		lines, _ := pdf.SplitText(line, 500)
		for _, l := range lines {
			pdf.Cell(nil, l)
			pdf.Br(12)
		}
		pdf.Br(5)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) HandleAppointmentsReport(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.RenderAppointments(r.Context())
	if err != nil {
		h.log.Error("render appointments report", slog.Any("error", err))
		http.Error(w, "Failed to generate report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=consultas_%s.pdf", time.Now().Format("2006-01-02")))
	_, _ = w.Write(data)
}
