// Package handlers maps the AquaPlan HTTP surface onto planner.Service.
// Each handler decodes and validates its request, calls one service method
// and renders the result with the run metadata (id, seed, duration and
// warnings) in the response meta.
package handlers

import (
	"net/http"

	"aquaplan/internal/core"
	"aquaplan/internal/planner"
	"aquaplan/internal/types"
)

// decodeAndValidate reads the JSON body into dst and runs struct
// validation. It writes the error response itself and reports whether the
// handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *core.Validator, dst any) bool {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := v.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}

// runMeta converts planner bookkeeping into response meta.
func runMeta(info planner.RunInfo) *types.ResponseMeta {
	return &types.ResponseMeta{
		RunID:      info.ID,
		Seed:       info.Seed,
		DurationMS: info.Duration.Milliseconds(),
		Warnings:   info.Warnings,
	}
}
