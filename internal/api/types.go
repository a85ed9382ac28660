package api

import (
	"github.com/hackgods/dental-practice-booking/internal/catalog"
	"github.com/hackgods/dental-practice-booking/internal/practice"
	"github.com/hackgods/dental-practice-booking/internal/schedule"
)

type CreateBookingRequest struct {
	Dentist   string `json:"dentist"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Patient   string `json:"patient"`
	Treatment string `json:"treatment"`
	Units     int    `json:"units"`
	Material  string `json:"material,omitempty"`
}

type RegisterPatientRequest struct {
	Name      string `json:"name"`
	Password  string `json:"password"`
	Insurance string `json:"insurance"`
	Problem   string `json:"problem"`
	Units     int    `json:"units,omitempty"`
}

type RegisterDentistRequest struct {
	Name     string                      `json:"name"`
	Password string                      `json:"password"`
	Accepts  []catalog.InsuranceClass    `json:"accepts"`
	Hours    schedule.WeeklyAvailability `json:"hours"`
}

type AddProblemRequest struct {
	Treatment string `json:"treatment"`
	Units     int    `json:"units"`
}

type UpdateInsuranceRequest struct {
	Insurance string `json:"insurance"`
}

type RenameDentistRequest struct {
	Name string `json:"name"`
}

type AcceptedInsuranceRequest struct {
	Accepts []catalog.InsuranceClass `json:"accepts"`
}

type HoursRequest struct {
	Hours schedule.WeeklyAvailability `json:"hours"`
}

type SlotsResponse struct {
	Dentist   string   `json:"dentist"`
	Date      string   `json:"date"`
	Treatment string   `json:"treatment"`
	Slots     []string `json:"slots"`
}

// PatientResponse is a patient record without the password.
type PatientResponse struct {
	Name      string                 `json:"name"`
	Insurance catalog.InsuranceClass `json:"insurance"`
	Problems  []practice.Problem     `json:"problems"`
}

// DentistResponse is a dentist record without the password.
type DentistResponse struct {
	Name    string                      `json:"name"`
	Accepts []catalog.InsuranceClass    `json:"accepts"`
	Hours   schedule.WeeklyAvailability `json:"hours"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toPatientResponse(p *practice.Patient) PatientResponse {
	problems := p.Problems
	if problems == nil {
		problems = []practice.Problem{}
	}
	return PatientResponse{Name: p.Name, Insurance: p.Insurance, Problems: problems}
}

func toDentistResponse(d *practice.Dentist) DentistResponse {
	return DentistResponse{Name: d.Name, Accepts: d.Accepts, Hours: d.Hours}
}
