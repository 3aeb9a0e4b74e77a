package engine

import (
	"time"

	"translatord/pkg/types"
)

// Status builds a detailed status response for /status.
func (e *Engine) Status() types.StatusResponse {
	e.mu.RLock()
	defer e.mu.RUnlock()
	now := time.Now()
	return types.StatusResponse{
		State:        string(e.state),
		Device:       e.cfg.Device.Device,
		DeviceReason: e.cfg.Device.Reason,
		Backend:      e.adapter.Name(),
		Model: types.ModelInfo{
			BaseModel:   e.cfg.BaseModel,
			Adapter:     e.arts.AdapterDir,
			AdapterRank: e.arts.Adapter.Rank,
			Tokenizer:   e.arts.TokenizerDir,
			SourceLang:  e.cfg.SourceLang,
			TargetLang:  e.cfg.TargetLang,
		},
		QueueLen:          len(e.queueCh),
		Inflight:          len(e.genCh),
		MaxQueueDepth:     cap(e.queueCh),
		TranslationsTotal: e.translations.Load(),
		FailuresTotal:     e.failures.Load(),
		MemoryHitsTotal:   e.memoryHits.Load(),
		LastError:         e.err,
		LoadMillis:        e.loadDur.Milliseconds(),
		UptimeSeconds:     int64(now.Sub(e.startTime).Seconds()),
		ServerTimeUnix:    now.Unix(),
	}
}
