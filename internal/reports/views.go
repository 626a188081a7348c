package reports

import (
	"slices"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
)

// DispatchReport is the flattened view of a mission report shown in lists
// and operative histories.
type DispatchReport struct {
	ID            string
	Code          string
	Dispatch      *missions.Dispatch
	GameMaster    string
	Date          time.Time
	ObjectivesMet torg.SuccessState
	Achievements  string
	Notes         string
}

// Name is "<dispatch> (<gm>, <date>)".
func (r DispatchReport) Name() string {
	if r.Dispatch == nil {
		return "Mission Dispatch #" + r.ID
	}
	return r.Dispatch.ShortName() + " (" + r.GameMaster + ", " + r.Date.Format(time.DateOnly) + ")"
}

// DispatchReport flattens the mission report.
func (r *MissionReport) DispatchReport() DispatchReport {
	view := DispatchReport{
		ID:            r.ID,
		Dispatch:      r.Dispatch,
		GameMaster:    r.GameMasterName(),
		Date:          r.PlayedOn(),
		ObjectivesMet: r.ObjectivesMet,
		Achievements:  r.Achievements,
		Notes:         r.Notes,
	}
	if r.Dispatch != nil {
		view.Code = r.Dispatch.Code
	}
	return view
}

// OperativeMissionReport pairs an operative with the mission report it took
// part in.
type OperativeMissionReport struct {
	ID        string
	Mission   *MissionReport
	Operative *operatives.Operative
	Notes     string
}

// OperativeDispatchReport is one entry of an operative's mission history.
type OperativeDispatchReport struct {
	ID           string
	Report       DispatchReport
	Operative    *operatives.Operative
	Achievements string
	Notes        string
}

// MissionView returns the operative's participation with its mission report.
func (r *OperativeReport) MissionView() OperativeMissionReport {
	return OperativeMissionReport{
		ID:        r.ID,
		Mission:   r.MissionReport,
		Operative: r.Operative,
		Notes:     r.Notes,
	}
}

// DispatchView returns the participation as a history entry.
func (r *OperativeReport) DispatchView() OperativeDispatchReport {
	view := OperativeDispatchReport{
		ID:           r.ID,
		Operative:    r.Operative,
		Achievements: r.Achievements,
		Notes:        r.Notes,
	}
	if r.MissionReport != nil {
		view.Report = r.MissionReport.DispatchReport()
	}
	return view
}

func sortHistory(history []OperativeDispatchReport) {
	slices.SortStableFunc(history, func(a, b OperativeDispatchReport) int {
		return b.Report.Date.Compare(a.Report.Date)
	})
}
