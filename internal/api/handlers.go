package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/appointment"
	"github.com/hackgods/practitioner-scheduling/internal/scheduling"
)

var errActorRequired = apperror.Validation(ActorHeader + " header is required")

// requireActor returns the acting staff member or writes a 400.
func requireActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeAppError(w, r, errActorRequired)
		return uuid.Nil, false
	}
	return actor, true
}

func createAppointmentHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creator, ok := requireActor(w, r)
		if !ok {
			return
		}
		var req CreateAppointmentRequest
		if err := decode(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}

		practitionerID, err := parseID(req.PractitionerID, "practitioner_id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		patientID, err := parseID(req.PatientID, "patient_id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		detail, err := core.CreateAppointment(r.Context(), appointment.CreateInput{
			PractitionerID:  practitionerID,
			PatientID:       patientID,
			Start:           *req.Start,
			DurationMinutes: req.DurationMinutes,
			Motive:          req.Motive,
		}, creator)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDetailResponse(*detail))
	}
}

func getAppointmentHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		detail, err := core.GetAppointment(r.Context(), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDetailResponse(*detail))
	}
}

func updateAppointmentHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		var req UpdateAppointmentRequest
		if err := decode(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}

		changes := appointment.Changes{
			Start:           req.Start,
			DurationMinutes: req.DurationMinutes,
			Motive:          req.Motive,
		}
		if req.PractitionerID != nil {
			pid, err := parseID(*req.PractitionerID, "practitioner_id")
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			changes.PractitionerID = &pid
		}
		if req.PatientID != nil {
			pid, err := parseID(*req.PatientID, "patient_id")
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			changes.PatientID = &pid
		}

		a, err := core.UpdateAppointment(r.Context(), id, changes)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*a))
	}
}

func deleteAppointmentHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if err := core.DeleteAppointment(r.Context(), id); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// transitionHandler decodes req and hands it with the path id and actor to
// apply. It backs cancel, attended, absent and reschedule.
func transitionHandler[T any](apply func(r *http.Request, id, actor uuid.UUID, req T) (*appointment.Detail, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		var req T
		if r.ContentLength != 0 {
			if err := decode(r, &req); err != nil {
				writeAppError(w, r, err)
				return
			}
		} else if err := validate.Struct(&req); err != nil {
			writeAppError(w, r, apperror.Validation(formatValidationErrors(err)))
			return
		}

		detail, err := apply(r, id, actor, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDetailResponse(*detail))
	}
}

func cancelAppointmentHandler(core *scheduling.Core) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, id, actor uuid.UUID, req CancelRequest) (*appointment.Detail, error) {
		return core.CancelAppointment(r.Context(), id, req.Reason, actor)
	})
}

func markAttendedHandler(core *scheduling.Core) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, id, actor uuid.UUID, req AttendedRequest) (*appointment.Detail, error) {
		return core.MarkAttended(r.Context(), id, req.Note, actor)
	})
}

func markAbsentHandler(core *scheduling.Core) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, id, actor uuid.UUID, req AbsentRequest) (*appointment.Detail, error) {
		return core.MarkAbsent(r.Context(), id, req.Reason, actor)
	})
}

func rescheduleAppointmentHandler(core *scheduling.Core) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, id, actor uuid.UUID, req RescheduleRequest) (*appointment.Detail, error) {
		return core.RescheduleAppointment(r.Context(), id, *req.Start, actor)
	})
}

func parseFilter(r *http.Request) (appointment.Filter, error) {
	q := r.URL.Query()
	var f appointment.Filter

	if raw := q.Get("practitioner_id"); raw != "" {
		id, err := parseID(raw, "practitioner_id")
		if err != nil {
			return f, err
		}
		f.PractitionerID = &id
	}
	if raw := q.Get("patient_id"); raw != "" {
		id, err := parseID(raw, "patient_id")
		if err != nil {
			return f, err
		}
		f.PatientID = &id
	}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, appointment.AppointmentStatus(strings.ToLower(strings.TrimSpace(s))))
		}
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, apperror.Validationf("%s must be an RFC3339 timestamp", p.name)
		}
		*p.dst = &t
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &f.Page}, {"per_page", &f.PerPage}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, apperror.Validationf("%s must be an integer", p.name)
		}
		*p.dst = n
	}
	return f, nil
}

func listAppointmentsHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilter(r)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		page, err := core.ListAppointments(r.Context(), f)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, PageResponse{
			Items:   toAppointmentResponses(page.Items),
			Total:   page.Total,
			Page:    page.Page,
			PerPage: page.PerPage,
			HasMore: page.HasMore(),
		})
	}
}

func overdueAppointmentsHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overdue, err := core.OverdueToMark(r.Context())
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(overdue))
	}
}

func agendaHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		d, err := parseDate(q.Get("date"), "date")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		practitionerID, err := optionalID(q.Get("practitioner_id"), "practitioner_id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}

		agenda, err := core.GetAgenda(r.Context(), d, practitionerID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(agenda))
	}
}

// Notes

func listNotesHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		ns, err := core.ListNotes(r.Context(), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toNoteResponses(ns))
	}
}

func addNoteHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		var req NoteRequest
		if err := decode(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}
		n, err := core.AddNote(r.Context(), id, actor, req.Body)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toNoteResponse(*n))
	}
}

func editNoteHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		var req NoteRequest
		if err := decode(r, &req); err != nil {
			writeAppError(w, r, err)
			return
		}
		n, err := core.EditNote(r.Context(), id, actor, req.Body)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toNoteResponse(*n))
	}
}

func deleteNoteHandler(core *scheduling.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if err := core.DeleteNote(r.Context(), id, actor); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
