package app

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corey/doclink/internal/domain/linker"
	"github.com/corey/doclink/internal/logger"
	"github.com/corey/doclink/internal/ports"
)

// BatchHandler runs delivered records through the linker engine. Every record
// is attempted in order; a failing record never stops the rest of the batch.
//
// BatchHandler does no locking. The App serializes calls.
type BatchHandler struct {
	engine *linker.Engine
	log    *zap.SugaredLogger
}

// NewBatchHandler returns a handler bound to engine.
func NewBatchHandler(engine *linker.Engine) *BatchHandler {
	return &BatchHandler{
		engine: engine,
		log:    logger.ComponentLogger("handler"),
	}
}

// Handle processes records and returns one outcome per record, in input
// order. Records without an id are given a generated one so failures stay
// addressable.
func (h *BatchHandler) Handle(records []ports.BatchRecord) ports.BatchResult {
	start := time.Now()
	res := ports.BatchResult{
		BatchID: uuid.NewString(),
		Total:   len(records),
		Records: make([]ports.RecordOutcome, 0, len(records)),
	}

	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		out := h.processRecord(rec)
		if out.Status == ports.StatusOK {
			res.Succeeded++
		} else {
			res.Failed++
			h.log.Warnw("record failed",
				logger.FieldBatchID, res.BatchID,
				logger.FieldRecordID, out.ID,
				logger.FieldStatus, string(out.Status),
				logger.FieldError, out.Error)
		}
		res.Records = append(res.Records, out)
	}

	h.log.Infow("batch processed",
		logger.FieldBatchID, res.BatchID,
		logger.FieldCount, res.Total,
		logger.FieldFailed, res.Failed,
		logger.FieldDuration, time.Since(start).Milliseconds())
	return res
}

// processRecord parses and links one record. A panic anywhere below is
// turned into a failed outcome for this record only.
func (h *BatchHandler) processRecord(rec ports.BatchRecord) (out ports.RecordOutcome) {
	out.ID = rec.ID
	defer func() {
		if r := recover(); r != nil {
			out = ports.RecordOutcome{
				ID:     rec.ID,
				Status: ports.StatusFailed,
				Error:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	doc, err := linker.ParseDocument([]byte(rec.Body))
	if err != nil {
		return failure(out, err)
	}
	added, err := h.engine.AddDocument(doc)
	if err != nil {
		return failure(out, err)
	}

	out.Status = ports.StatusOK
	out.Direct = added.Direct
	for _, m := range added.Inserted {
		out.Inserted = append(out.Inserted, ports.Link{SampleID: m.SampleID, Via: string(m.Via)})
	}
	return out
}

func failure(out ports.RecordOutcome, err error) ports.RecordOutcome {
	out.Status = classify(err)
	out.Error = err.Error()
	return out
}

// classify maps an engine error to a record status.
func classify(err error) ports.RecordStatus {
	switch {
	case errors.Is(err, linker.ErrParse):
		return ports.StatusParseError
	case errors.Is(err, linker.ErrPersistence):
		return ports.StatusPersistenceError
	default:
		return ports.StatusFailed
	}
}
