package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/eddielth/signal-monitor/decoder"
	"github.com/eddielth/signal-monitor/monitor"
	"github.com/eddielth/signal-monitor/power"
	"github.com/eddielth/signal-monitor/schema"
	"github.com/eddielth/signal-monitor/storage"
	"github.com/eddielth/signal-monitor/telemetry"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNoSource):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrInvalidEquipmentID):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func equipmentID(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(mux.Vars(r)["id"]))
}

// at reads the optional "at" query parameter, defaulting to now.
func (s *Server) at(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("at")
	if v == "" {
		return s.monitor.Now(), nil
	}
	t, ok := decoder.ParseTimestamp(v, s.monitor.Location())
	if !ok {
		return time.Time{}, errors.Errorf("invalid at %q", v)
	}
	return t, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type schemaResponse struct {
	Type   telemetry.EquipmentType  `json:"type"`
	Opaque bool                     `json:"opaque"`
	Fields []schema.FieldDescriptor `json:"fields"`
}

func describe(t telemetry.EquipmentType) schemaResponse {
	fields := schema.Descriptors(t)
	return schemaResponse{Type: t, Opaque: len(fields) == 0, Fields: fields}
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	types := telemetry.EquipmentTypes()
	out := make([]schemaResponse, 0, len(types))
	for _, t := range types {
		out = append(out, describe(t))
	}
	respondWithMeta(w, out, &meta{Total: len(out)})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	t, err := telemetry.ParseEquipmentType(mux.Vars(r)["type"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, describe(t))
}

// displayCell is one grid cell of a decoded row as the dashboard shows it.
type displayCell struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

type displayRow struct {
	ID          int64         `json:"id"`
	State       string        `json:"state"`
	Abnormal    bool          `json:"abnormal"`
	ReceiveDate time.Time     `json:"receive_date"`
	Cells       []displayCell `json:"cells"`
}

func display(row telemetry.DecodedStatusRow) displayRow {
	fields := row.Fields()
	cells := make([]displayCell, len(fields))
	for i, f := range fields {
		cells[i] = displayCell{
			Name:  f.Name,
			Label: schema.Descriptor(f.Name).Label,
			Text:  schema.Format(f.Name, f.Value),
		}
	}
	return displayRow{
		ID:          row.ID(),
		State:       string(row.State()),
		Abnormal:    row.Abnormal(),
		ReceiveDate: row.ReceivedAt(),
		Cells:       cells,
	}
}

type decodeResponse struct {
	Rows     interface{}       `json:"rows"`
	Failures []decoder.Failure `json:"failures"`
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	t, err := telemetry.ParseEquipmentType(mux.Vars(r)["type"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	var records []telemetry.RawTelemetryRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON array")
		return
	}

	res, err := s.decoder.DecodeBatchContext(r.Context(), t, records)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	resp := decodeResponse{Rows: res.Rows, Failures: res.Failures}
	if resp.Failures == nil {
		resp.Failures = []decoder.Failure{}
	}
	if r.URL.Query().Get("display") == "true" {
		rows := make([]displayRow, len(res.Rows))
		for i, row := range res.Rows {
			rows[i] = display(row)
		}
		resp.Rows = rows
	} else if res.Rows == nil {
		resp.Rows = []telemetry.DecodedStatusRow{}
	}

	respondWithMeta(w, resp, &meta{
		Total:   len(records),
		Skipped: res.Skipped(),
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleEquipmentHealth(w http.ResponseWriter, r *http.Request) {
	now, err := s.at(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.monitor.Health(r.Context(), equipmentID(r), now)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondWithMeta(w, report, &meta{Total: len(report.Devices)})
}

type powerResponse struct {
	EquipmentID string              `json:"equipment_id"`
	Window      power.Window        `json:"window"`
	Source      monitor.PowerSource `json:"source"`
	Statistics  power.Statistics    `json:"statistics"`
}

// window reads window=today|monthly|day, with date=YYYY-MM-DD for day.
func (s *Server) window(r *http.Request, now time.Time) (power.Window, error) {
	q := r.URL.Query()
	switch q.Get("window") {
	case "", "today":
		return power.Today(now), nil
	case "monthly":
		return power.LastDays(now, monitor.MonthlyDays), nil
	case "day":
		d, err := time.ParseInLocation("2006-01-02", q.Get("date"), s.monitor.Location())
		if err != nil {
			return power.Window{}, errors.Errorf("invalid date %q, want YYYY-MM-DD", q.Get("date"))
		}
		return power.Day(d), nil
	default:
		return power.Window{}, errors.Errorf("unknown window %q", q.Get("window"))
	}
}

func (s *Server) handleEquipmentPower(w http.ResponseWriter, r *http.Request) {
	id := equipmentID(r)
	now, err := s.at(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	win, err := s.window(r, now)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	src, err := monitor.ParsePowerSource(r.URL.Query().Get("source"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if src == monitor.FromStatus {
		// status records are decoded with the schema named by the id prefix
		if _, _, err := telemetry.ParseEquipmentID(id); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	units := s.defaultUnits(id)
	if v := r.URL.Query().Get("units"); v != "" {
		units, err = strconv.Atoi(v)
		if err != nil || units < 1 {
			respondError(w, http.StatusBadRequest, "units must be a positive integer")
			return
		}
	}

	stats, err := s.monitor.Power(r.Context(), monitor.PowerQuery{
		EquipmentID: id,
		Window:      win,
		Units:       units,
		Source:      src,
	})
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, powerResponse{
		EquipmentID: id,
		Window:      win,
		Source:      src,
		Statistics:  stats,
	})
}

func (s *Server) handleEquipmentDevices(w http.ResponseWriter, r *http.Request) {
	now, err := s.at(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	slots, err := s.monitor.Devices(r.Context(), equipmentID(r), now)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondWithMeta(w, slots, &meta{Total: len(slots)})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps := s.monitor.Snapshots()
	respondWithMeta(w, snaps, &meta{Total: len(snaps)})
}

func (s *Server) handleEquipmentSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.monitor.Snapshot(equipmentID(r))
	if !ok {
		respondError(w, http.StatusNotFound, "no evaluation for this equipment yet")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}
