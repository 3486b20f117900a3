package user

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/handler"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/middleware"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/httputil"
)

const msgAwaitApproval = "You will receive an email once your account is approved by admin"

// doctorDocumentFields maps multipart field names to storage categories.
var doctorDocumentFields = map[string]model.DocumentCategory{
	"degree_document":               model.DocDegree,
	"other_certificate_document":    model.DocCertificates,
	"medical_license_document":      model.DocMedicalLicense,
	"address_proof_document":        model.DocAddressProof,
	"digital_signature_certificate": model.DocDigitalSignature,
}

const hospitalStampField = "hospital_digital_stamp"

type Service interface {
	RegisterPatient(ctx context.Context, req model.RegisterPatientRequest) (*model.User, error)
	RegisterDoctor(ctx context.Context, req model.RegisterDoctorRequest) (*model.User, error)
	RegisterHospital(ctx context.Context, req model.RegisterHospitalRequest) (*model.User, error)
	ListDoctors(ctx context.Context, caller model.Role, filter model.DoctorFilter) ([]*model.User, int, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public registration endpoints and the
// authenticated doctor directory.
func (h *Handler) RegisterRoutes(r gin.IRouter, authn gin.HandlerFunc, directoryRoles ...model.Role) {
	register := r.Group("/auth/register")
	{
		register.POST("/patient", h.RegisterPatient)
		register.POST("/doctor", h.RegisterDoctor)
		register.POST("/hospital", h.RegisterHospital)
	}

	r.GET("/doctors", authn, middleware.RequireRoles(directoryRoles...), h.ListDoctors)
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	var req model.RegisterPatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.RegisterPatient(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, "Patient created successfully", user)
}

func (h *Handler) RegisterDoctor(c *gin.Context) {
	var req model.RegisterDoctorRequest
	if !handler.BindForm(c, &req) {
		return
	}

	docs, err := formFiles(c, doctorDocumentFields)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	req.Documents = docs

	user, err := h.svc.RegisterDoctor(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, msgAwaitApproval, user)
}

func (h *Handler) RegisterHospital(c *gin.Context) {
	var req model.RegisterHospitalRequest
	if !handler.BindForm(c, &req) {
		return
	}

	stamp, err := c.FormFile(hospitalStampField)
	switch {
	case err == nil:
		req.Stamp = stamp
	case !errors.Is(err, http.ErrMissingFile):
		httputil.RespondWithError(c, apperrors.BadRequest("Could not read uploaded file", err))
		return
	}

	user, err := h.svc.RegisterHospital(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, msgAwaitApproval, user)
}

// ListDoctors supports ?search=, ?page= and ?per_page=.
func (h *Handler) ListDoctors(c *gin.Context) {
	principal, ok := handler.Principal(c)
	if !ok {
		return
	}

	var filter model.DoctorFilter
	if !handler.BindQuery(c, &filter) {
		return
	}

	doctors, total, err := h.svc.ListDoctors(c.Request.Context(), principal.Role, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	page := filter.Pagination.Normalize()
	httputil.RespondWithPagination(c, doctors, page.Page, page.PerPage, total, len(doctors))
}

// formFiles collects the optional uploads named in fields.
func formFiles(c *gin.Context, fields map[string]model.DocumentCategory) (map[model.DocumentCategory]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.BadRequest("Expected a multipart form", err)
	}

	docs := make(map[model.DocumentCategory]*multipart.FileHeader)
	for field, category := range fields {
		if files := form.File[field]; len(files) > 0 {
			docs[category] = files[0]
		}
	}
	return docs, nil
}
