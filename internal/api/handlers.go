package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/dental-practice-booking/internal/apperr"
	"github.com/hackgods/dental-practice-booking/internal/appointment"
	"github.com/hackgods/dental-practice-booking/internal/catalog"
	"github.com/hackgods/dental-practice-booking/internal/practice"
)

func listDentistsHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		insurance := r.URL.Query().Get("insurance")
		if insurance == "" {
			writeError(w, http.StatusBadRequest, "missing_insurance", "insurance query parameter is required")
			return
		}

		dentists, err := svc.EligibleDentists(r.Context(), catalog.InsuranceClass(insurance))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]DentistResponse, 0, len(dentists))
		for i := range dentists {
			resp = append(resp, toDentistResponse(&dentists[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dentist := pathParam(r, "dentist")
		q := r.URL.Query()
		date, treatment := q.Get("date"), q.Get("treatment")

		slots, err := svc.ListAvailableSlots(r.Context(), dentist, date, treatment)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotsResponse{
			Dentist:   dentist,
			Date:      date,
			Treatment: treatment,
			Slots:     slots,
		})
	}
}

func dentistCalendarHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		days, err := svc.DentistCalendar(r.Context(), pathParam(r, "dentist"), q.Get("from"), q.Get("to"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, days)
	}
}

func dentistScheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.DentistSchedule(r.Context(), pathParam(r, "dentist"), r.URL.Query().Get("from"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(entries))
	}
}

func registerDentistHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterDentistRequest
		if !decodeBody(w, r, &req) {
			return
		}
		d, err := svc.RegisterDentist(r.Context(), practice.DentistRegistration{
			Name:     req.Name,
			Password: req.Password,
			Accepts:  req.Accepts,
			Hours:    req.Hours,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDentistResponse(d))
	}
}

func renameDentistHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RenameDentistRequest
		if !decodeBody(w, r, &req) {
			return
		}
		d, err := svc.RenameDentist(r.Context(), pathParam(r, "dentist"), req.Name)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDentistResponse(d))
	}
}

func updateAcceptedInsuranceHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AcceptedInsuranceRequest
		if !decodeBody(w, r, &req) {
			return
		}
		d, err := svc.UpdateAcceptedInsurance(r.Context(), pathParam(r, "dentist"), req.Accepts)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDentistResponse(d))
	}
}

func updateHoursHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HoursRequest
		if !decodeBody(w, r, &req) {
			return
		}
		d, err := svc.UpdateHours(r.Context(), pathParam(r, "dentist"), req.Hours)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDentistResponse(d))
	}
}

func registerPatientHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterPatientRequest
		if !decodeBody(w, r, &req) {
			return
		}
		p, err := svc.RegisterPatient(r.Context(), practice.PatientRegistration{
			Name:      req.Name,
			Password:  req.Password,
			Insurance: catalog.InsuranceClass(req.Insurance),
			Problem:   req.Problem,
			Units:     req.Units,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPatientResponse(p))
	}
}

func addProblemHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddProblemRequest
		if !decodeBody(w, r, &req) {
			return
		}
		p, err := svc.AddProblem(r.Context(), pathParam(r, "patient"), req.Treatment, req.Units)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func updatePatientInsuranceHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateInsuranceRequest
		if !decodeBody(w, r, &req) {
			return
		}
		p, err := svc.UpdateInsurance(r.Context(), pathParam(r, "patient"), catalog.InsuranceClass(req.Insurance))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func patientAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.PatientAppointments(r.Context(), pathParam(r, "patient"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(entries))
	}
}

func overviewCostsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		breakdown, err := svc.OverviewCosts(r.Context(), pathParam(r, "patient"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, breakdown)
	}
}

func preBookingCostsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		units := 1
		if raw := q.Get("units"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_units", "units must be an integer")
				return
			}
			units = n
		}
		material := catalog.MaterialGrade(q.Get("material"))
		if material == "" {
			material = catalog.MaterialStandard
		}

		breakdown, err := svc.PreBookingCosts(r.Context(), q.Get("treatment"), units, material, catalog.InsuranceClass(q.Get("insurance")))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, breakdown)
	}
}

func createBookingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if !decodeBody(w, r, &req) {
			return
		}
		conf, err := svc.BookSlot(r.Context(), appointment.BookRequest{
			Dentist:   req.Dentist,
			Date:      req.Date,
			Time:      req.Time,
			Patient:   req.Patient,
			Treatment: req.Treatment,
			Units:     req.Units,
			Material:  catalog.MaterialGrade(req.Material),
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, conf)
	}
}

func cancelBookingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patient := r.URL.Query().Get("patient")
		if patient == "" {
			writeError(w, http.StatusBadRequest, "missing_patient", "patient query parameter is required")
			return
		}
		key := appointment.SlotKey{
			Dentist: pathParam(r, "dentist"),
			Date:    pathParam(r, "date"),
			Start:   pathParam(r, "time"),
		}
		if err := svc.CancelBooking(r.Context(), key, patient); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case apperr.KindNotFound:
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case apperr.KindSlotTaken:
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case apperr.KindNoAvailableDentist:
		writeError(w, http.StatusUnprocessableEntity, "no_available_dentist", err.Error())
	case apperr.KindStorage:
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

// pathParam returns the decoded URL parameter. Dentist names contain
// spaces and umlauts. chi matches on RawPath when the request has one, so
// only then is the parameter still escaped.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func nonNil(entries []appointment.Entry) []appointment.Entry {
	if entries == nil {
		return []appointment.Entry{}
	}
	return entries
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
