package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/procurehub/marketplace-api/internal/auth"
	"github.com/procurehub/marketplace-api/internal/middleware"
	"github.com/procurehub/marketplace-api/internal/model"
	"github.com/procurehub/marketplace-api/internal/repository"
)

// VendorHandler exposes vendor account, password-reset and self-service
// profile endpoints.
type VendorHandler struct {
	Auth     *auth.Service
	Vendors  *repository.VendorRepo
	Products *repository.ProductRepo
}

type vendorRegisterRequest struct {
	Company     string   `json:"company"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	Services    []string `json:"services"`
	Description string   `json:"description"`
	Regions     []string `json:"regions"`
	Postcodes   []string `json:"postcodes"`
	Nationwide  bool     `json:"nationwide"`
	City        string   `json:"city"`
	County      string   `json:"county"`
	Postcode    string   `json:"postcode"`
}

type vendorProfileRequest struct {
	Company     string   `json:"company"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	Services    []string `json:"services"`
	Description string   `json:"description"`
	Regions     []string `json:"regions"`
	Postcodes   []string `json:"postcodes"`
	Nationwide  bool     `json:"nationwide"`
	City        string   `json:"city"`
	County      string   `json:"county"`
	Postcode    string   `json:"postcode"`
	ShowPricing bool     `json:"showPricing"`
}

// vendorView is a Vendor stripped for the vendor's own responses.
type vendorView struct {
	ID          uint64             `json:"id"`
	Email       string             `json:"email"`
	Slug        string             `json:"slug"`
	Company     string             `json:"company"`
	Phone       string             `json:"phone,omitempty"`
	Website     string             `json:"website,omitempty"`
	Services    []model.ServiceTag `json:"services"`
	Description string             `json:"description,omitempty"`
	Regions     []string           `json:"regions"`
	Postcodes   []string           `json:"postcodes"`
	Nationwide  bool               `json:"nationwide"`
	City        string             `json:"city,omitempty"`
	County      string             `json:"county,omitempty"`
	Postcode    string             `json:"postcode,omitempty"`
	Tier        model.Tier         `json:"tier"`
	Status      model.VendorStatus `json:"status"`
	ShowPricing bool               `json:"showPricing"`
	Rating      model.Rating       `json:"rating"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func viewVendor(v model.Vendor) vendorView {
	return vendorView{
		ID: v.ID, Email: v.Email, Slug: v.Slug, Company: v.Company,
		Phone: v.Phone, Website: v.Website, Services: v.Services,
		Description: v.Description, Regions: v.Regions, Postcodes: v.Postcodes,
		Nationwide: v.Nationwide, City: v.City, County: v.County, Postcode: v.Postcode,
		Tier: v.Tier, Status: v.Status, ShowPricing: v.ShowPricing,
		Rating: v.Rating, CreatedAt: v.CreatedAt,
	}
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL-safe slug from a company name.
func slugify(company string) string {
	s := slugUnsafe.ReplaceAllString(strings.ToLower(company), "-")
	return strings.Trim(s, "-")
}

func parseServiceTags(in []string) ([]model.ServiceTag, bool) {
	out := make([]model.ServiceTag, 0, len(in))
	for _, s := range in {
		tag := model.ServiceTag(s)
		if !tag.Valid() {
			return nil, false
		}
		out = append(out, tag)
	}
	return out, true
}

// Register creates a vendor account in pending state; activation is an
// operator action.
func (h *VendorHandler) Register(c echo.Context) error {
	var req vendorRegisterRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Malformed request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Company == "" || !validEmail(req.Email) {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Company and a valid email are required")
	}
	services, ok := parseServiceTags(req.Services)
	if !ok {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Unknown service tag")
	}

	id, err := h.Auth.RegisterVendor(c.Request().Context(), model.Vendor{
		Email:       req.Email,
		Slug:        slugify(req.Company),
		Company:     req.Company,
		Phone:       req.Phone,
		Website:     req.Website,
		Services:    services,
		Description: req.Description,
		Regions:     req.Regions,
		Postcodes:   req.Postcodes,
		Nationwide:  req.Nationwide,
		City:        req.City,
		County:      req.County,
		Postcode:    req.Postcode,
		Tier:        model.TierFree,
		Status:      model.VendorPending,
	}, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			return respondErr(c, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
		case errors.Is(err, repository.ErrEmailExists):
			return respondErr(c, http.StatusConflict, "EMAIL_EXISTS", "Email already registered")
		}
		return err
	}
	return respond(c, http.StatusCreated, echo.Map{"id": id})
}

// Login verifies vendor credentials and returns a token pair.
func (h *VendorHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Malformed request body")
	}
	v, pair, err := h.Auth.LoginVendor(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return respondErr(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		}
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"vendor": viewVendor(v), "tokens": viewPair(pair)})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword starts a password reset. The body is identical whether the
// account exists or not.
func (h *VendorHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "email is required")
	}
	if err := h.Auth.RequestVendorPasswordReset(c.Request().Context(), req.Email); err != nil {
		return respondErr(c, http.StatusServiceUnavailable, "MAIL_UNAVAILABLE", "Could not send reset email, please try again later")
	}
	return respond(c, http.StatusOK, echo.Map{
		"message": "If that email is registered, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword consumes a reset token and sets a new password, returning
// fresh credentials.
func (h *VendorHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "token and password are required")
	}
	v, pair, err := h.Auth.ResetVendorPassword(c.Request().Context(), req.Token, req.Password, c.RealIP())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			return respondErr(c, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
		case errors.Is(err, auth.ErrInvalidReset):
			return respondErr(c, http.StatusBadRequest, "INVALID_RESET_TOKEN", "Invalid or expired reset token")
		}
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"vendor": viewVendor(v), "tokens": viewPair(pair)})
}

// VerifyResetToken reports whether a reset token is still usable. Unknown and
// expired tokens answer identically.
func (h *VendorHandler) VerifyResetToken(c echo.Context) error {
	if err := h.Auth.VerifyResetToken(c.Request().Context(), c.Param("token")); err != nil {
		if errors.Is(err, auth.ErrInvalidReset) {
			return respondErr(c, http.StatusBadRequest, "INVALID_RESET_TOKEN", "Invalid or expired reset token")
		}
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"valid": true})
}

// Me returns the authenticated vendor's profile.
func (h *VendorHandler) Me(c echo.Context) error {
	v, err := h.Vendors.GetByID(c.Request().Context(), middleware.PrincipalID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondErr(c, http.StatusNotFound, "NOT_FOUND", "Vendor not found")
		}
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"vendor": viewVendor(v)})
}

// UpdateMe replaces the vendor-editable profile fields.
func (h *VendorHandler) UpdateMe(c echo.Context) error {
	var req vendorProfileRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Malformed request body")
	}
	if req.Company == "" {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "company is required")
	}
	services, ok := parseServiceTags(req.Services)
	if !ok {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Unknown service tag")
	}

	id := middleware.PrincipalID(c)
	err := h.Vendors.UpdateProfile(c.Request().Context(), model.Vendor{
		ID:          id,
		Company:     req.Company,
		Phone:       req.Phone,
		Website:     req.Website,
		Services:    services,
		Description: req.Description,
		Regions:     req.Regions,
		Postcodes:   req.Postcodes,
		Nationwide:  req.Nationwide,
		City:        req.City,
		County:      req.County,
		Postcode:    req.Postcode,
		ShowPricing: req.ShowPricing,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondErr(c, http.StatusNotFound, "NOT_FOUND", "Vendor not found")
		}
		return err
	}
	v, err := h.Vendors.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"vendor": viewVendor(v)})
}

// MyProducts lists the authenticated vendor's catalog entries.
func (h *VendorHandler) MyProducts(c echo.Context) error {
	products, err := h.Products.ListByVendor(c.Request().Context(), middleware.PrincipalID(c))
	if err != nil {
		return err
	}
	if products == nil {
		products = []model.VendorProduct{}
	}
	return respond(c, http.StatusOK, echo.Map{"products": products})
}
