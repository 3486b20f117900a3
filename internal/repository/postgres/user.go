package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
)

const userColumns = `id, role, status, first_name, last_name, mobile_number, email,
	password_hash, age, gender, license_number, specialization, years_of_experience,
	qualification, current_hospital, consultation_fee, degree_document,
	certificate_document, license_document, address_proof_document, digital_signature,
	hospital_name, registration_number, hospital_type, address, city, state, pincode,
	admin_name, admin_phone, digital_stamp, created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			role, status, first_name, last_name, mobile_number, email, password_hash,
			age, gender, license_number, specialization, years_of_experience,
			qualification, current_hospital, consultation_fee, hospital_name,
			registration_number, hospital_type, address, city, state, pincode,
			admin_name, admin_phone
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		user.Role,
		user.Status,
		user.FirstName,
		user.LastName,
		user.MobileNumber,
		user.Email,
		user.PasswordHash,
		user.Age,
		user.Gender,
		user.LicenseNumber,
		user.Specialization,
		user.YearsOfExperience,
		user.Qualification,
		user.CurrentHospital,
		user.ConsultationFee,
		user.HospitalName,
		user.RegistrationNumber,
		user.HospitalType,
		user.Address,
		user.City,
		user.State,
		user.Pincode,
		user.AdminName,
		user.AdminPhone,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return mapError("create user", err)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, mapError("get user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByMobile(ctx context.Context, mobile string) (*model.User, error) {
	var user model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE mobile_number = $1`
	if err := r.db.GetContext(ctx, &user, query, mobile); err != nil {
		return nil, mapError("get user by mobile", err)
	}
	return &user, nil
}

// UpdateDocuments stores the file paths recorded after registration.
func (r *userRepository) UpdateDocuments(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET
			degree_document = $1,
			certificate_document = $2,
			license_document = $3,
			address_proof_document = $4,
			digital_signature = $5,
			digital_stamp = $6,
			updated_at = NOW()
		WHERE id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		user.DegreeDocument,
		user.CertificateDocument,
		user.LicenseDocument,
		user.AddressProof,
		user.DigitalSignature,
		user.DigitalStamp,
		user.ID,
	)
	if err != nil {
		return mapError("update user documents", err)
	}
	return requireAffected(res)
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError("delete user", err)
	}
	return requireAffected(res)
}

func (r *userRepository) ListDoctors(ctx context.Context, filter model.DoctorFilter) ([]*model.User, int, error) {
	page := filter.Pagination.Normalize()

	where := []string{"role = $1"}
	args := []interface{}{model.RoleDoctor}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR specialization ILIKE $%d)", n, n, n))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE `+cond, args...); err != nil {
		return nil, 0, mapError("count doctors", err)
	}

	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		userColumns, cond, len(args)-1, len(args))

	doctors := []*model.User{}
	if err := r.db.SelectContext(ctx, &doctors, query, args...); err != nil {
		return nil, 0, mapError("list doctors", err)
	}
	return doctors, total, nil
}

// ListByStatus returns accounts subject to approval in the given state,
// oldest first. A nil role means every role that requires approval.
func (r *userRepository) ListByStatus(ctx context.Context, status model.ApprovalStatus, role *model.Role) ([]*model.User, error) {
	roles := []model.Role{model.RoleDoctor, model.RoleHospital, model.RoleHospitalDoctor}
	if role != nil {
		roles = []model.Role{*role}
	}

	query, args, err := sqlx.In(
		`SELECT `+userColumns+` FROM users WHERE status = ? AND role IN (?) ORDER BY created_at ASC`,
		status, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to build approval query: %w", err)
	}

	users := []*model.User{}
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, mapError("list users by status", err)
	}
	return users, nil
}

func (r *userRepository) UpdateStatus(ctx context.Context, id int64, status model.ApprovalStatus, event *model.OutboxEvent) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
		if err != nil {
			return mapError("update user status", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}
