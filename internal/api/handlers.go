package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) onSourcesList(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"sources": a.Registry.ClockNames()})
}

func (a *API) onSourceState(ctx *gin.Context) {
	clk, ok := a.clockByParam(ctx)
	if !ok {
		return
	}

	streamStart, systemStart, streamDuration, systemDuration, err := clk.GetState()
	if err != nil {
		a.writeError(ctx, http.StatusConflict, err.Error())
		return
	}

	systemOrigin, ptsDelay, err := clk.GetSystemOrigin()
	if err != nil {
		a.writeError(ctx, http.StatusConflict, err.Error())
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"rate":           clk.GetRate(),
		"streamStart":    streamStart,
		"systemStart":    systemStart,
		"streamDuration": streamDuration,
		"systemDuration": systemDuration,
		"tsMax":          clk.TSMax(),
		"systemOrigin":   systemOrigin,
		"ptsDelay":       ptsDelay,
		"debug":          clk.DebugString(),
	})
}

func (a *API) onSourceJitter(ctx *gin.Context) {
	clk, ok := a.clockByParam(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"jitter":            clk.GetJitter(),
		"networkJitter":     clk.NetworkJitter(),
		"decoderLatency":    clk.DecoderLatency(),
		"bufferingDuration": clk.BufferingDuration(),
	})
}

type setRateRequest struct {
	Rate int64 `json:"rate" binding:"required"`
}

func (a *API) onSourceSetRate(ctx *gin.Context) {
	clk, ok := a.clockByParam(ctx)
	if !ok {
		return
	}

	var req setRateRequest
	if err := ctx.BindJSON(&req); err != nil {
		a.writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}

	clk.ChangeRate(req.Rate)
	a.writeOK(ctx)
}

type setPauseRequest struct {
	Pausing bool  `json:"pausing"`
	Date    int64 `json:"date" binding:"required"`
}

func (a *API) onSourceSetPause(ctx *gin.Context) {
	clk, ok := a.clockByParam(ctx)
	if !ok {
		return
	}

	var req setPauseRequest
	if err := ctx.BindJSON(&req); err != nil {
		a.writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}

	clk.ChangePause(req.Pausing, req.Date)
	a.writeOK(ctx)
}

func (a *API) onSourceReset(ctx *gin.Context) {
	clk, ok := a.clockByParam(ctx)
	if !ok {
		return
	}

	clk.Reset()
	a.writeOK(ctx)
}
