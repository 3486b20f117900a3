package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
)

const (
	prescriptionColumns = `id, appointment_id, diagnosis, additional_notes, digital_signature, created_at, updated_at`
	medicineColumns     = `id, prescription_id, position, medicine_name, dose, frequency, timing, duration`
)

type prescriptionRepository struct {
	BaseRepository
}

func NewPrescriptionRepository(base BaseRepository) repository.PrescriptionRepository {
	return &prescriptionRepository{base}
}

// Upsert reports true when the prescription row was created by this call.
func (r *prescriptionRepository) Upsert(ctx context.Context, appointmentID int64, write model.PrescriptionWrite) (*model.Prescription, bool, error) {
	query := `
		INSERT INTO prescriptions (appointment_id, diagnosis, additional_notes, digital_signature)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (appointment_id) DO UPDATE SET
			diagnosis = EXCLUDED.diagnosis,
			additional_notes = EXCLUDED.additional_notes,
			digital_signature = EXCLUDED.digital_signature,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`
	p := &model.Prescription{
		AppointmentID:    appointmentID,
		Diagnosis:        write.Diagnosis,
		AdditionalNotes:  write.AdditionalNotes,
		DigitalSignature: write.DigitalSignature,
	}
	var created bool

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, query,
			appointmentID,
			write.Diagnosis,
			write.AdditionalNotes,
			write.DigitalSignature,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &created)
		if err != nil {
			return mapError("upsert prescription", err)
		}
		meds, err := replaceMedicines(ctx, tx, p.ID, write.Medicines)
		if err != nil {
			return err
		}
		p.Medicines = meds
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return p, created, nil
}

func (r *prescriptionRepository) Replace(ctx context.Context, id int64, write model.PrescriptionWrite) (*model.Prescription, error) {
	query := `
		UPDATE prescriptions
		SET diagnosis = $1, additional_notes = $2, digital_signature = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING appointment_id, created_at, updated_at
	`
	p := &model.Prescription{
		ID:               id,
		Diagnosis:        write.Diagnosis,
		AdditionalNotes:  write.AdditionalNotes,
		DigitalSignature: write.DigitalSignature,
	}

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, query,
			write.Diagnosis,
			write.AdditionalNotes,
			write.DigitalSignature,
			id,
		).Scan(&p.AppointmentID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return mapError("replace prescription", err)
		}
		meds, err := replaceMedicines(ctx, tx, id, write.Medicines)
		if err != nil {
			return err
		}
		p.Medicines = meds
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// replaceMedicines deletes every medicine of the prescription and inserts
// meds in order.
func replaceMedicines(ctx context.Context, tx *sqlx.Tx, prescriptionID int64, meds []model.Medicine) ([]model.Medicine, error) {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM prescription_medicines WHERE prescription_id = $1`, prescriptionID); err != nil {
		return nil, mapError("delete medicines", err)
	}

	out := make([]model.Medicine, 0, len(meds))
	query := `
		INSERT INTO prescription_medicines (prescription_id, position, medicine_name, dose, frequency, timing, duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	for i, m := range meds {
		m.PrescriptionID = prescriptionID
		m.Position = i
		if err := tx.QueryRowxContext(ctx, query,
			m.PrescriptionID,
			m.Position,
			m.MedicineName,
			m.Dose,
			m.Frequency,
			m.Timing,
			m.Duration,
		).Scan(&m.ID); err != nil {
			return nil, mapError("insert medicine", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id int64) (*model.Prescription, error) {
	return r.getOne(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id)
}

func (r *prescriptionRepository) GetByAppointment(ctx context.Context, appointmentID int64) (*model.Prescription, error) {
	return r.getOne(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE appointment_id = $1`, appointmentID)
}

func (r *prescriptionRepository) getOne(ctx context.Context, query string, arg interface{}) (*model.Prescription, error) {
	var p model.Prescription
	if err := r.db.GetContext(ctx, &p, query, arg); err != nil {
		return nil, mapError("get prescription", err)
	}
	if err := r.attachMedicines(ctx, []*model.Prescription{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prescriptionRepository) ListByAppointmentIDs(ctx context.Context, appointmentIDs []int64) (map[int64]*model.Prescription, error) {
	out := make(map[int64]*model.Prescription, len(appointmentIDs))
	if len(appointmentIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+prescriptionColumns+` FROM prescriptions WHERE appointment_id IN (?)`, appointmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build prescription query: %w", err)
	}
	list := []*model.Prescription{}
	if err := r.db.SelectContext(ctx, &list, r.db.Rebind(query), args...); err != nil {
		return nil, mapError("list prescriptions", err)
	}
	if err := r.attachMedicines(ctx, list); err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.AppointmentID] = p
	}
	return out, nil
}

func (r *prescriptionRepository) ListForPair(ctx context.Context, doctorID, patientID int64) ([]*model.Prescription, error) {
	query := `
		SELECT p.id, p.appointment_id, p.diagnosis, p.additional_notes, p.digital_signature,
			p.created_at, p.updated_at
		FROM prescriptions p
		JOIN appointments a ON a.id = p.appointment_id
		WHERE a.doctor_id = $1 AND a.patient_id = $2
		ORDER BY p.created_at DESC
	`
	list := []*model.Prescription{}
	if err := r.db.SelectContext(ctx, &list, query, doctorID, patientID); err != nil {
		return nil, mapError("list prescriptions for pair", err)
	}
	if err := r.attachMedicines(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// attachMedicines loads the medicines of every prescription in one query.
func (r *prescriptionRepository) attachMedicines(ctx context.Context, list []*model.Prescription) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[int64]*model.Prescription, len(list))
	ids := make([]int64, 0, len(list))
	for _, p := range list {
		p.Medicines = []model.Medicine{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	query, args, err := sqlx.In(
		`SELECT `+medicineColumns+` FROM prescription_medicines WHERE prescription_id IN (?) ORDER BY prescription_id, position`, ids)
	if err != nil {
		return fmt.Errorf("failed to build medicine query: %w", err)
	}
	meds := []model.Medicine{}
	if err := r.db.SelectContext(ctx, &meds, r.db.Rebind(query), args...); err != nil {
		return mapError("list medicines", err)
	}
	for _, m := range meds {
		if p, ok := byID[m.PrescriptionID]; ok {
			p.Medicines = append(p.Medicines, m)
		}
	}
	return nil
}
