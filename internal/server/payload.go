package server

import (
	"github.com/franckalain/mealscan/internal/capture"
	"github.com/franckalain/mealscan/internal/diary"
	apperrors "github.com/franckalain/mealscan/internal/errors"
	"github.com/franckalain/mealscan/internal/models"
	"github.com/franckalain/mealscan/internal/session"
)

type errorPayload struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

func newErrorPayload(err error) errorPayload {
	return errorPayload{Code: apperrors.CodeOf(err), Message: apperrors.UserMessage(err)}
}

type statePayload struct {
	session.Snapshot
	Facing   capture.Facing `json:"facing"`
	ImageURL string         `json:"imageUrl,omitempty"`
	Ratios   *diary.Ratios  `json:"ratios,omitempty"`
}

func newStatePayload(snap session.Snapshot, facing capture.Facing) statePayload {
	p := statePayload{Snapshot: snap, Facing: facing}
	if snap.Result != nil {
		p.ImageURL = snap.Result.Image.DataURL()
		r := diary.MacroRatios(snap.Result.Draft.Macros)
		p.Ratios = &r
	}
	return p
}

type entryPayload struct {
	models.FoodEntry
	ImageURL string       `json:"imageUrl"`
	Ratios   diary.Ratios `json:"ratios"`
}

func newEntryPayload(e models.FoodEntry) entryPayload {
	return entryPayload{
		FoodEntry: e,
		ImageURL:  e.Image.DataURL(),
		Ratios:    diary.MacroRatios(e.Macros),
	}
}

type diaryPayload struct {
	Entries []entryPayload `json:"entries"`
	Totals  diary.Totals   `json:"totals"`
	Ratios  diary.Ratios   `json:"ratios"`
}

type progressPayload struct {
	Profile  models.UserProfile  `json:"profile"`
	Calories diary.Progress      `json:"calories"`
	Macros   diary.MacroProgress `json:"macros"`
	Ratios   diary.Ratios        `json:"ratios"`
}

// diaryPayload derives every figure from one copy of the entries so the
// totals always match the list.
func (s *Server) diaryPayload() diaryPayload {
	entries := s.diary.Entries()
	totals := diary.Sum(entries)
	out := diaryPayload{
		Entries: make([]entryPayload, len(entries)),
		Totals:  totals,
		Ratios:  diary.MacroRatios(totals.Macros()),
	}
	for i, e := range entries {
		out.Entries[i] = newEntryPayload(e)
	}
	return out
}

func (s *Server) progressPayload() progressPayload {
	totals := diary.Sum(s.diary.Entries())
	profile := s.cfg.Profile
	return progressPayload{
		Profile:  profile,
		Calories: diary.ComputeProgress(profile.DailyGoal, totals.Calories),
		Macros:   diary.ComputeMacroProgress(totals, s.cfg.Targets),
		Ratios:   diary.MacroRatios(totals.Macros()),
	}
}
