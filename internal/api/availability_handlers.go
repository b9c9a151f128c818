package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/availability"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
	"github.com/hackgods/practitioner-scheduling/internal/recurrence"
	"github.com/hackgods/practitioner-scheduling/internal/scheduling"
	"github.com/hackgods/practitioner-scheduling/internal/slots"
)

// Parsing helpers shared by every handler.

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperror.Validationf("%s must be a valid UUID", name)
	}
	return id, nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validationf("%s must be a valid UUID", field)
	}
	return id, nil
}

// optionalID parses raw when present and returns uuid.Nil otherwise.
func optionalID(raw, field string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return parseID(raw, field)
}

func parseDate(raw, field string) (calendar.Date, error) {
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return calendar.Date{}, apperror.Validationf("%s must be a date in YYYY-MM-DD format", field)
	}
	return d, nil
}

func parseClock(raw, field string) (calendar.Clock, error) {
	c, err := calendar.ParseClock(raw)
	if err != nil {
		return 0, apperror.Validationf("%s must be a time in HH:MM format", field)
	}
	return c, nil
}

func parseHours(h WorkingHours) (calendar.Window, error) {
	start, err := parseClock(h.Start, "working_hours.start")
	if err != nil {
		return calendar.Window{}, err
	}
	end, err := parseClock(h.End, "working_hours.end")
	if err != nil {
		return calendar.Window{}, err
	}
	return calendar.Window{Start: start, End: end}, nil
}

func createAvailabilityHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAvailabilityRequest
		if err := decode(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}

		in := availability.CreateInput{Kind: availability.Kind(req.Kind), Reason: req.Reason}
		var err error
		if in.PractitionerID, err = parseID(req.PractitionerID, "practitioner_id"); err != nil {
			writeAppError(w, r, err)
			return
		}
		if in.Date, err = parseDate(req.Date, "date"); err != nil {
			writeAppError(w, r, err)
			return
		}
		if in.Start, err = parseClock(req.Start, "start"); err != nil {
			writeAppError(w, r, err)
			return
		}
		if in.End, err = parseClock(req.End, "end"); err != nil {
			writeAppError(w, r, err)
			return
		}

		b, err := core.CreateAvailability(r.Context(), in)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResponse(*b))
	}
}

func updateAvailabilityHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		var req UpdateAvailabilityRequest
		if err := decode(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}

		var changes availability.Changes
		if req.Date != nil {
			d, err := parseDate(*req.Date, "date")
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			changes.Date = &d
		}
		if req.Start != nil {
			c, err := parseClock(*req.Start, "start")
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			changes.Start = &c
		}
		if req.End != nil {
			c, err := parseClock(*req.End, "end")
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			changes.End = &c
		}
		if req.Kind != nil {
			k := availability.Kind(*req.Kind)
			changes.Kind = &k
		}
		changes.Reason = req.Reason

		b, err := core.UpdateAvailability(r.Context(), id, changes)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockResponse(*b))
	}
}

func deleteAvailabilityHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if err := core.DeleteAvailability(r.Context(), id); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getAvailabilityHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		b, err := core.GetAvailability(r.Context(), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockResponse(*b))
	}
}

// listAvailabilityHandler serves ?date= (one day) and ?from=&to= (a range),
// optionally narrowed by practitioner_id.
func listAvailabilityHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		practitionerID, err := optionalID(q.Get("practitioner_id"), "practitioner_id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		var blocks []availability.Block
		switch {
		case q.Get("date") != "":
			d, err := parseDate(q.Get("date"), "date")
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			blocks, err = core.ListAvailabilityByDate(r.Context(), d, practitionerID)
			if err != nil {
				writeAppError(w, r, err)
				return
			}
		case q.Get("from") != "" && q.Get("to") != "":
			from, err := parseDate(q.Get("from"), "from")
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			to, err := parseDate(q.Get("to"), "to")
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			blocks, err = core.ListAvailabilityByRange(r.Context(), from, to, practitionerID)
			if err != nil {
				writeAppError(w, r, err)
				return
			}
		default:
			writeAppError(w, r, apperror.Validation("either date or from and to are required"))
			return
		}

		writeJSON(w, http.StatusOK, toBlockResponses(blocks))
	}
}

func practitionerAvailabilityHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		blocks, err := core.ListAvailabilityByPractitioner(r.Context(), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockResponses(blocks))
	}
}

func validateAvailabilityHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		practitionerID, err := parseID(q.Get("practitioner_id"), "practitioner_id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		d, err := parseDate(q.Get("date"), "date")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		start, err := parseClock(q.Get("start"), "start")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		end, err := parseClock(q.Get("end"), "end")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		var exclude *uuid.UUID
		if raw := q.Get("exclude_block_id"); raw != "" {
			id, err := parseID(raw, "exclude_block_id")
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			exclude = &id
		}

		ok, err := core.ValidateAvailability(r.Context(), d, start, end, practitionerID, exclude)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: ok})
	}
}

func generateAutomaticHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateAutomaticRequest
		if err := decode(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}
		practitionerID, from, to, hours, err := parseGenerateCommon(req.PractitionerID, req.DateFrom, req.DateTo, req.WorkingHours)
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		blocks, err := core.GenerateAutomaticAvailability(r.Context(), practitionerID, from, to, hours)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, GenerateResponse{Created: len(blocks), Blocks: toBlockResponses(blocks)})
	}
}

func generateRecurringHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRecurringRequest
		if err := decode(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}
		practitionerID, from, to, hours, err := parseGenerateCommon(req.PractitionerID, req.DateFrom, req.DateTo, req.WorkingHours)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		rule := recurrence.Rule{
			Pattern:    recurrence.Pattern(req.Pattern),
			DaysOfWeek: req.Config.DaysOfWeek,
			Weekday:    req.Config.Weekday,
			Position:   recurrence.Position(req.Config.Position),
			Reason:     req.Config.Reason,
		}

		res, err := core.GenerateRecurringAvailability(r.Context(), practitionerID, rule, from, to, hours)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, GenerateResponse{Created: res.Created, Blocks: toBlockResponses(res.Blocks)})
	}
}

func parseGenerateCommon(rawID, rawFrom, rawTo string, wh WorkingHours) (uuid.UUID, calendar.Date, calendar.Date, calendar.Window, error) {
	var (
		from, to calendar.Date
		hours    calendar.Window
	)
	id, err := parseID(rawID, "practitioner_id")
	if err != nil {
		return uuid.Nil, from, to, hours, err
	}
	if from, err = parseDate(rawFrom, "date_from"); err != nil {
		return uuid.Nil, from, to, hours, err
	}
	if to, err = parseDate(rawTo, "date_to"); err != nil {
		return uuid.Nil, from, to, hours, err
	}
	if hours, err = parseHours(wh); err != nil {
		return uuid.Nil, from, to, hours, err
	}
	return id, from, to, hours, nil
}

func slotsHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		practitionerID, err := parseID(q.Get("practitioner_id"), "practitioner_id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		d, err := parseDate(q.Get("date"), "date")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		// Unparseable durations fall back to the default like any other
		// unsupported value.
		duration, _ := strconv.Atoi(q.Get("duration"))

		free, err := core.GenerateSlots(r.Context(), d, practitionerID, duration)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotsResponse{
			Date:           d,
			PractitionerID: practitionerID,
			Duration:       slots.NormalizeDuration(duration),
			Slots:          free,
		})
	}
}
