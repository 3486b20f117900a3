package model

import (
	"time"
)

type Frequency string

const (
	FrequencyOnce   Frequency = "once"
	FrequencyTwice  Frequency = "twice"
	FrequencyThrice Frequency = "thrice"
	FrequencySOS    Frequency = "sos"
)

type Timing string

const (
	TimingBeforeFood   Timing = "before_food"
	TimingAfterFood    Timing = "after_food"
	TimingEmptyStomach Timing = "empty_stomach"
)

// Prescription belongs to exactly one appointment. Its medicine list is
// always replaced as a whole.
type Prescription struct {
	ID               int64      `json:"id" db:"id"`
	AppointmentID    int64      `json:"appointment_id" db:"appointment_id"`
	Diagnosis        string     `json:"diagnosis" db:"diagnosis"`
	AdditionalNotes  string     `json:"additional_notes" db:"additional_notes"`
	DigitalSignature string     `json:"digital_signature" db:"digital_signature"`
	Medicines        []Medicine `json:"medicines" db:"-"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Medicine is one line item; Position keeps the submitted order.
type Medicine struct {
	ID             int64     `json:"id" db:"id"`
	PrescriptionID int64     `json:"-" db:"prescription_id"`
	Position       int       `json:"-" db:"position"`
	MedicineName   string    `json:"medicine_name" db:"medicine_name"`
	Dose           string    `json:"dose" db:"dose"`
	Frequency      Frequency `json:"frequency" db:"frequency"`
	Timing         *Timing   `json:"timing" db:"timing"`
	Duration       string    `json:"duration" db:"duration"`
}

type MedicineInput struct {
	MedicineName string    `json:"medicine_name" binding:"required,max=200"`
	Dose         string    `json:"dose" binding:"required,max=100"`
	Frequency    Frequency `json:"frequency" binding:"required,oneof=once twice thrice sos"`
	Timing       *Timing   `json:"timing" binding:"omitempty,oneof=before_food after_food empty_stomach"`
	Duration     string    `json:"duration" binding:"required,max=100"`
}

// PrescriptionContent is the full replacement body of a prescription.
type PrescriptionContent struct {
	Diagnosis       string          `json:"diagnosis"`
	AdditionalNotes string          `json:"additional_notes"`
	Medicines       []MedicineInput `json:"medicines" binding:"omitempty,dive"`
}

// ToMedicines converts inputs into rows, numbering them in order.
func (c PrescriptionContent) ToMedicines() []Medicine {
	meds := make([]Medicine, 0, len(c.Medicines))
	for i, in := range c.Medicines {
		meds = append(meds, Medicine{
			Position:     i,
			MedicineName: in.MedicineName,
			Dose:         in.Dose,
			Frequency:    in.Frequency,
			Timing:       in.Timing,
			Duration:     in.Duration,
		})
	}
	return meds
}

type DoctorLinkPrescriptionRequest struct {
	DoctorLink string `json:"doctor_link" binding:"required"`
	PrescriptionContent
}

// PrescriptionWrite is what the ledger persists in one transaction.
type PrescriptionWrite struct {
	Diagnosis        string
	AdditionalNotes  string
	DigitalSignature string
	Medicines        []Medicine
}

// UpsertResult reports whether the prescription was created by this write.
type UpsertResult struct {
	Created       bool          `json:"created"`
	AppointmentID int64         `json:"appointment_id"`
	Prescription  *Prescription `json:"prescription"`
}
