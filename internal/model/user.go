package model

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin          Role = "admin"
	RoleDoctor         Role = "doctor"
	RoleHospital       Role = "hospital"
	RolePatient        Role = "patient"
	RoleHospitalDoctor Role = "hospital-doctor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleHospital, RolePatient, RoleHospitalDoctor:
		return true
	}
	return false
}

// RequiresApproval reports whether accounts of this role are gated by an
// admin decision before they can log in with a password.
func (r Role) RequiresApproval() bool {
	return r == RoleDoctor || r == RoleHospital || r == RoleHospitalDoctor
}

// AllowsPasswordLogin reports whether the role may log in with a password.
func (r Role) AllowsPasswordLogin() bool {
	return r == RoleDoctor || r == RoleHospital
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, other := range roles {
		if r == other {
			return true
		}
	}
	return false
}

// ApprovalStatus is the admin-controlled activation gate.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

var ErrInvalidApprovalTransition = errors.New("invalid approval transition")

var approvalTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalPending:  {ApprovalApproved, ApprovalRejected},
	ApprovalRejected: {ApprovalPending, ApprovalApproved},
	ApprovalApproved: {ApprovalRejected, ApprovalPending},
}

func (s ApprovalStatus) Valid() bool {
	_, ok := approvalTransitions[s]
	return ok
}

// TransitionTo validates moving from s to next. Staying in the same state
// is allowed and is a no-op for callers.
func (s ApprovalStatus) TransitionTo(next ApprovalStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidApprovalTransition, next)
	}
	if s == next {
		return nil
	}
	for _, allowed := range approvalTransitions[s] {
		if allowed == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidApprovalTransition, s, next)
}

// Notifiable reports whether arriving at s warrants telling the user.
func (s ApprovalStatus) Notifiable() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type HospitalType string

const (
	HospitalPrivate     HospitalType = "private"
	HospitalGovernment  HospitalType = "government"
	HospitalSemiPrivate HospitalType = "semi_private"
	HospitalTrust       HospitalType = "trust"
)

// DocumentCategory names the folder a user file is stored under.
type DocumentCategory string

const (
	DocDegree           DocumentCategory = "degree"
	DocCertificates     DocumentCategory = "certificates"
	DocMedicalLicense   DocumentCategory = "medical_license"
	DocAddressProof     DocumentCategory = "address_proof"
	DocDigitalSignature DocumentCategory = "digital_signature"
	DocDigitalStamp     DocumentCategory = "digital_stamp"
	DocTranscriptions   DocumentCategory = "transcriptions"
)

// User is an account in the directory. Doctor and hospital specific
// columns are empty for other roles.
type User struct {
	Base
	Role         Role           `json:"role" db:"role"`
	Status       ApprovalStatus `json:"status" db:"status"`
	FirstName    string         `json:"first_name" db:"first_name"`
	LastName     string         `json:"last_name" db:"last_name"`
	MobileNumber string         `json:"mobile_number" db:"mobile_number"`
	Email        string         `json:"email,omitempty" db:"email"`
	PasswordHash string         `json:"-" db:"password_hash"`
	Age          *int           `json:"age" db:"age"`
	Gender       *Gender        `json:"gender" db:"gender"`

	LicenseNumber       string              `json:"doctor_license_number,omitempty" db:"license_number"`
	Specialization      string              `json:"specialization,omitempty" db:"specialization"`
	YearsOfExperience   *int                `json:"years_of_experience,omitempty" db:"years_of_experience"`
	Qualification       string              `json:"highest_qualification,omitempty" db:"qualification"`
	CurrentHospital     string              `json:"current_hospital,omitempty" db:"current_hospital"`
	ConsultationFee     decimal.NullDecimal `json:"consultation_fee" db:"consultation_fee"`
	DegreeDocument      string              `json:"degree_document,omitempty" db:"degree_document"`
	CertificateDocument string              `json:"other_certificate_document,omitempty" db:"certificate_document"`
	LicenseDocument     string              `json:"medical_license_document,omitempty" db:"license_document"`
	AddressProof        string              `json:"address_proof_document,omitempty" db:"address_proof_document"`
	DigitalSignature    string              `json:"digital_signature_certificate,omitempty" db:"digital_signature"`

	HospitalName       string        `json:"hospital_name,omitempty" db:"hospital_name"`
	RegistrationNumber string        `json:"registration_number,omitempty" db:"registration_number"`
	HospitalType       *HospitalType `json:"hospital_type,omitempty" db:"hospital_type"`
	Address            string        `json:"hospital_address,omitempty" db:"address"`
	City               string        `json:"city,omitempty" db:"city"`
	State              string        `json:"state,omitempty" db:"state"`
	Pincode            string        `json:"pincode,omitempty" db:"pincode"`
	AdminName          string        `json:"admin_name,omitempty" db:"admin_name"`
	AdminPhone         string        `json:"admin_phone_number,omitempty" db:"admin_phone"`
	DigitalStamp       string        `json:"hospital_digital_stamp,omitempty" db:"digital_stamp"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName prefers the person's name, then the hospital name, then the
// mobile number the account logs in with.
func (u *User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	if u.HospitalName != "" {
		return u.HospitalName
	}
	return u.MobileNumber
}

// DefaultPassword is the password assigned at registration. Patients have
// none and log in with an OTP only.
func (u *User) DefaultPassword() string {
	switch u.Role {
	case RoleDoctor:
		return strings.ToLower(u.FirstName) + strings.ToLower(u.LastName) + "@123"
	case RoleHospital:
		return strings.ToLower(strings.ReplaceAll(u.HospitalName, " ", "")) + "@123"
	}
	return ""
}

// UserSummary is the identity block returned after login.
type UserSummary struct {
	ID           int64  `json:"id"`
	Role         Role   `json:"role"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	MobileNumber string `json:"mobile_number"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		Role:         u.Role,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		MobileNumber: u.MobileNumber,
	}
}

// Profile is the view returned by the profile endpoint.
type Profile struct {
	ID           int64   `json:"id"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Role         Role    `json:"role"`
	Age          *int    `json:"age"`
	Gender       *Gender `json:"gender"`
	MobileNumber string  `json:"mobile_number"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         u.Role,
		Age:          u.Age,
		Gender:       u.Gender,
		MobileNumber: u.MobileNumber,
	}
}

// DoctorFilter drives the doctor directory listing.
type DoctorFilter struct {
	Pagination
	Search string `form:"search"`
}

type RegisterPatientRequest struct {
	FirstName    string `json:"first_name" binding:"required,max=150"`
	LastName     string `json:"last_name" binding:"max=150"`
	Age          *int   `json:"age" binding:"omitempty,min=0,max=150"`
	MobileNumber string `json:"mobile_number" binding:"required,mobile"`
	Gender       Gender `json:"gender" binding:"omitempty,oneof=male female other"`
	Email        string `json:"email" binding:"omitempty,email"`
}

// RegisterDoctorRequest is bound from multipart/form-data.
type RegisterDoctorRequest struct {
	FirstName         string          `form:"first_name" binding:"required,max=150"`
	LastName          string          `form:"last_name" binding:"required,max=150"`
	MobileNumber      string          `form:"mobile_number" binding:"required,mobile"`
	Email             string          `form:"email" binding:"required,email"`
	LicenseNumber     string          `form:"doctor_license_number" binding:"required,max=100"`
	Specialization    string          `form:"specialization" binding:"required,max=150"`
	YearsOfExperience *int            `form:"years_of_experience" binding:"omitempty,min=0,max=80"`
	Qualification     string          `form:"highest_qualification" binding:"max=150"`
	CurrentHospital   string          `form:"current_hospital" binding:"max=200"`
	ConsultationFee   decimal.Decimal `form:"-"`
	RawFee            string          `form:"consultation_fee" binding:"omitempty,numeric"`

	Documents map[DocumentCategory]*multipart.FileHeader `form:"-"`
}

// RegisterHospitalRequest is bound from multipart/form-data.
type RegisterHospitalRequest struct {
	HospitalName       string       `form:"hospital_name" binding:"required,max=200"`
	RegistrationNumber string       `form:"registration_number" binding:"required,max=100"`
	HospitalType       HospitalType `form:"hospital_type" binding:"required,oneof=private government semi_private trust"`
	MobileNumber       string       `form:"mobile_number" binding:"required,mobile"`
	Email              string       `form:"email" binding:"required,email"`
	Address            string       `form:"hospital_address" binding:"required"`
	City               string       `form:"city" binding:"required,max=100"`
	State              string       `form:"state" binding:"required,max=100"`
	Pincode            string       `form:"pincode" binding:"required,max=10"`
	AdminName          string       `form:"admin_name" binding:"required,max=150"`
	AdminPhone         string       `form:"admin_phone_number" binding:"required,mobile"`

	Stamp *multipart.FileHeader `form:"-"`
}

type ApprovalRequest struct {
	Status ApprovalStatus `json:"status" binding:"required,oneof=pending approved rejected"`
}

// ApprovalDecision is the outcome of an admin decision. Notify is set when
// the user should be told about the new state.
type ApprovalDecision struct {
	UserID int64          `json:"user_id"`
	Role   Role           `json:"role"`
	From   ApprovalStatus `json:"from"`
	To     ApprovalStatus `json:"to"`
	Notify bool           `json:"notify"`
}
