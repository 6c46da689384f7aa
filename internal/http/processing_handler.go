package http

import (
	"log/slog"

	"github.com/karloscodes/cartridge"

	"rankrent/internal/conversions"
	"rankrent/internal/timeframe"
)

type ProcessingHandler struct {
	processor *conversions.Processor
	parser    *timeframe.Parser
}

func NewProcessingHandler(processor *conversions.Processor, parser *timeframe.Parser) *ProcessingHandler {
	if parser == nil {
		parser = timeframe.NewParser()
	}
	return &ProcessingHandler{processor: processor, parser: parser}
}

// ReprocessAction re-matches a window with the current goals. Conversions
// already stored are kept; only events without one can gain a conversion.
func (h *ProcessingHandler) ReprocessAction(ctx *cartridge.Context) error {
	rng, err := parseRange(ctx, h.parser, "")
	if err != nil {
		return badRequest(ctx, codeInvalidQuery, err.Error())
	}
	res, err := h.processor.Reprocess(ctx.UserContext(), siteID(ctx), rng)
	if err != nil {
		return respondError(ctx, engineUnavailable(err))
	}
	ctx.Logger.Info("Reprocessed window",
		slog.Uint64("site_id", uint64(siteID(ctx))),
		slog.String("range", rng.String()),
		slog.Int64("recorded", res.Recorded))
	return ctx.JSON(res)
}
