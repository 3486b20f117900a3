package user

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/repository"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/blobstore"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/logger"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/security"
)

// DirectoryRoles may browse the doctor directory.
var DirectoryRoles = []model.Role{
	model.RoleAdmin,
	model.RoleHospital,
	model.RoleHospitalDoctor,
	model.RolePatient,
	model.RoleDoctor,
}

type Service struct {
	repo   repository.UserRepository
	blobs  blobstore.Store
	hasher security.PasswordHasher
	logger *logger.Logger
}

func NewService(repo repository.UserRepository, blobs blobstore.Store, hasher security.PasswordHasher, logger *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		blobs:  blobs,
		hasher: hasher,
		logger: logger.With("user"),
	}
}

// RegisterPatient creates an approved patient account. Patients have no
// password and log in with an OTP.
func (s *Service) RegisterPatient(ctx context.Context, req model.RegisterPatientRequest) (*model.User, error) {
	user := &model.User{
		Role:         model.RolePatient,
		Status:       model.ApprovalApproved,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		MobileNumber: strings.TrimSpace(req.MobileNumber),
		Email:        strings.TrimSpace(req.Email),
		Age:          req.Age,
	}
	if req.Gender != "" {
		g := req.Gender
		user.Gender = &g
	}

	if err := s.create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("patient registered", "user_id", user.ID)
	return user, nil
}

// RegisterDoctor creates a pending doctor account with the default
// password and stores the uploaded documents. If a document cannot be
// stored the account is removed again.
func (s *Service) RegisterDoctor(ctx context.Context, req model.RegisterDoctorRequest) (*model.User, error) {
	fee := req.ConsultationFee
	if req.RawFee != "" {
		parsed, err := decimal.NewFromString(req.RawFee)
		if err != nil || parsed.IsNegative() {
			return nil, apperrors.Validation("Invalid consultation fee",
				map[string]string{"consultation_fee": "Must be a non-negative amount."})
		}
		fee = parsed
	}
	if err := checkDocuments(req.Documents); err != nil {
		return nil, err
	}

	user := &model.User{
		Role:              model.RoleDoctor,
		Status:            model.ApprovalPending,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		MobileNumber:      strings.TrimSpace(req.MobileNumber),
		Email:             strings.TrimSpace(req.Email),
		LicenseNumber:     req.LicenseNumber,
		Specialization:    req.Specialization,
		YearsOfExperience: req.YearsOfExperience,
		Qualification:     req.Qualification,
		CurrentHospital:   req.CurrentHospital,
		ConsultationFee:   decimal.NullDecimal{Decimal: fee, Valid: req.RawFee != "" || !fee.IsZero()},
	}
	if err := s.setDefaultPassword(user); err != nil {
		return nil, err
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.attachDocuments(ctx, user, req.Documents); err != nil {
		return nil, err
	}
	s.logger.Info("doctor registered", "user_id", user.ID, "documents", len(req.Documents))
	return user, nil
}

// RegisterHospital creates a pending hospital account with the default
// password and stores the digital stamp when one is uploaded.
func (s *Service) RegisterHospital(ctx context.Context, req model.RegisterHospitalRequest) (*model.User, error) {
	docs := map[model.DocumentCategory]*multipart.FileHeader{}
	if req.Stamp != nil {
		docs[model.DocDigitalStamp] = req.Stamp
	}
	if err := checkDocuments(docs); err != nil {
		return nil, err
	}

	hospitalType := req.HospitalType
	user := &model.User{
		Role:               model.RoleHospital,
		Status:             model.ApprovalPending,
		MobileNumber:       strings.TrimSpace(req.MobileNumber),
		Email:              strings.TrimSpace(req.Email),
		HospitalName:       strings.TrimSpace(req.HospitalName),
		RegistrationNumber: req.RegistrationNumber,
		HospitalType:       &hospitalType,
		Address:            req.Address,
		City:               req.City,
		State:              req.State,
		Pincode:            req.Pincode,
		AdminName:          req.AdminName,
		AdminPhone:         req.AdminPhone,
	}
	if err := s.setDefaultPassword(user); err != nil {
		return nil, err
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.attachDocuments(ctx, user, docs); err != nil {
		return nil, err
	}
	s.logger.Info("hospital registered", "user_id", user.ID)
	return user, nil
}

// ListDoctors pages through the doctor directory, newest first.
func (s *Service) ListDoctors(ctx context.Context, caller model.Role, filter model.DoctorFilter) ([]*model.User, int, error) {
	if !caller.In(DirectoryRoles...) {
		return nil, 0, apperrors.Forbidden("You are not allowed to view doctors")
	}
	filter.Pagination = filter.Pagination.Normalize()
	filter.Search = strings.TrimSpace(filter.Search)

	doctors, total, err := s.repo.ListDoctors(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return doctors, total, nil
}

func (s *Service) setDefaultPassword(user *model.User) error {
	hash, err := s.hasher.Hash(user.DefaultPassword())
	if err != nil {
		return apperrors.Internal(err)
	}
	user.PasswordHash = hash
	return nil
}

func (s *Service) create(ctx context.Context, user *model.User) error {
	err := s.repo.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.Conflict("A user with this mobile number already exists", err).
			WithFields(map[string]string{"mobile_number": "user with this mobile number already exists."})
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

func checkDocuments(docs map[model.DocumentCategory]*multipart.FileHeader) error {
	fields := map[string]string{}
	for category, fh := range docs {
		if fh == nil {
			continue
		}
		if fh.Size > blobstore.MaxFileSize {
			fields[string(category)] = "File exceeds the maximum size of 20 MB."
		}
	}
	if len(fields) > 0 {
		return apperrors.Validation("Invalid documents", fields)
	}
	return nil
}

// attachDocuments stores each upload under users/{id}/{category}/ and
// records the paths. On failure stored files and the account are removed.
func (s *Service) attachDocuments(ctx context.Context, user *model.User, docs map[model.DocumentCategory]*multipart.FileHeader) error {
	if len(docs) == 0 {
		return nil
	}

	var stored []string
	fail := func(err error) error {
		for _, key := range stored {
			if derr := s.blobs.Delete(ctx, key); derr != nil {
				s.logger.Warn("failed to remove stored document", "key", key, "error", derr.Error())
			}
		}
		if derr := s.repo.Delete(ctx, user.ID); derr != nil {
			s.logger.Error(derr, "failed to roll back registration", "user_id", user.ID)
		}
		return err
	}

	for category, fh := range docs {
		if fh == nil {
			continue
		}
		key, err := s.storeFile(ctx, user.ID, string(category), fh.Filename, fh)
		if err != nil {
			return fail(err)
		}
		stored = append(stored, key)
		setDocument(user, category, key)
	}

	if err := s.repo.UpdateDocuments(ctx, user); err != nil {
		return fail(apperrors.Internal(err))
	}
	return nil
}

func (s *Service) storeFile(ctx context.Context, userID int64, category, filename string, fh *multipart.FileHeader) (string, error) {
	key, err := blobstore.UserPath(userID, category, filename)
	if err != nil {
		return "", apperrors.Validation("Invalid file name", map[string]string{category: err.Error()})
	}
	f, err := fh.Open()
	if err != nil {
		return "", apperrors.BadRequest("Could not read uploaded file", err)
	}
	defer f.Close()

	key, err = s.blobs.Put(ctx, key, f)
	if errors.Is(err, blobstore.ErrFileTooLarge) {
		return "", apperrors.Validation("Invalid documents", map[string]string{category: err.Error()})
	}
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("failed to store %s: %w", category, err))
	}
	return key, nil
}

func setDocument(user *model.User, category model.DocumentCategory, key string) {
	switch category {
	case model.DocDegree:
		user.DegreeDocument = key
	case model.DocCertificates:
		user.CertificateDocument = key
	case model.DocMedicalLicense:
		user.LicenseDocument = key
	case model.DocAddressProof:
		user.AddressProof = key
	case model.DocDigitalSignature:
		user.DigitalSignature = key
	case model.DocDigitalStamp:
		user.DigitalStamp = key
	}
}
