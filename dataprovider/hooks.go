package dataprovider

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// QueryHook logs every query bun runs.
type QueryHook struct {
	Logger *zap.Logger
	// SlowThreshold promotes successful queries slower than this to warn. Zero disables it.
	SlowThreshold time.Duration
}

// NewQueryHook returns a hook logging through l.
func NewQueryHook(l *zap.Logger) *QueryHook {
	if l == nil {
		l = zap.NewNop()
	}
	return &QueryHook{Logger: l}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	event.StartTime = time.Now()
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)

	log := h.Logger.With(
		zap.String("event", event.Operation()),
		zap.String("query", strings.ReplaceAll(event.Query, "\"", "")),
		zap.Duration("duration", duration),
	)

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		log.Error("DB/QUERY", zap.Error(event.Err))
	case h.SlowThreshold > 0 && duration > h.SlowThreshold:
		log.Warn("DB/QUERY SLOW")
	default:
		log.Debug("DB/QUERY")
	}
}
