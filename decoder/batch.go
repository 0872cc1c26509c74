package decoder

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/eddielth/signal-monitor/telemetry"
)

// Failure reports one record that could not be decoded.
type Failure struct {
	Index    int    `json:"index"`
	RecordID int64  `json:"record_id"`
	Err      error  `json:"-"`
	Message  string `json:"error"`
}

// BatchResult holds the rows that decoded, in input order, and the records
// that did not.
type BatchResult struct {
	Rows     []telemetry.DecodedStatusRow `json:"rows"`
	Failures []Failure                    `json:"failures"`
}

// Skipped is the number of records left out of Rows.
func (r BatchResult) Skipped() int {
	return len(r.Failures)
}

// DecodeBatch decodes every record independently. A bad record is reported
// in Failures and never stops the rest of the batch.
func (d *Decoder) DecodeBatch(t telemetry.EquipmentType, recs []telemetry.RawTelemetryRecord) BatchResult {
	res, _ := d.DecodeBatchContext(context.Background(), t, recs)
	return res
}

// DecodeBatchContext is DecodeBatch with cancellation. On cancellation the
// partial result is discarded and ctx.Err() returned.
func (d *Decoder) DecodeBatchContext(ctx context.Context, t telemetry.EquipmentType, recs []telemetry.RawTelemetryRecord) (BatchResult, error) {
	if len(recs) == 0 {
		return BatchResult{Rows: []telemetry.DecodedStatusRow{}, Failures: []Failure{}}, nil
	}

	type slot struct {
		row telemetry.DecodedStatusRow
		err error
	}
	slots := make([]slot, len(recs))

	workers := d.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range recs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := d.Decode(t, recs[i])
			slots[i] = slot{row: row, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{
		Rows:     make([]telemetry.DecodedStatusRow, 0, len(recs)),
		Failures: []Failure{},
	}
	for i, s := range slots {
		if s.err != nil {
			res.Failures = append(res.Failures, Failure{
				Index:    i,
				RecordID: recs[i].ID,
				Err:      s.err,
				Message:  s.err.Error(),
			})
			continue
		}
		res.Rows = append(res.Rows, s.row)
	}
	return res, nil
}

// IsDecodeError reports whether err came from Decode.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
