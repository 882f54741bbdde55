package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const maxCachedTokenTTL = 5 * time.Minute

// Principal is the authenticated actor of a request. Exactly one of User
// and Customer is set, matching Type.
type Principal struct {
	Type     models.PrincipalType
	ID       uuid.UUID
	TokenID  uuid.UUID
	User     *models.User
	Customer *models.Customer
}

// Profile returns the principal's record for serialization.
func (p *Principal) Profile() interface{} {
	if p.Type == models.PrincipalCustomer {
		return p.Customer
	}
	return p.User
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserRegistration is the input of staff sign-up.
type UserRegistration struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// CustomerRegistration is the input of customer sign-up.
type CustomerRegistration struct {
	Name                 string  `json:"name" validate:"required,max=255"`
	Email                string  `json:"email" validate:"required,email,max=255"`
	Phone                string  `json:"phone" validate:"required,max=20"`
	Password             string  `json:"password" validate:"required"`
	PasswordConfirmation string  `json:"password_confirmation" validate:"required,eqfield=Password"`
	Address              *string `json:"address" validate:"omitempty,max=500"`
	Area                 *string `json:"area" validate:"omitempty,max=255"`
	City                 *string `json:"city" validate:"omitempty,max=255"`
}

// CustomerProfileUpdate lists the editable customer fields. Nil leaves a field as is.
type CustomerProfileUpdate struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,min=1,max=20"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Area    *string `json:"area" validate:"omitempty,max=255"`
	City    *string `json:"city" validate:"omitempty,max=255"`
}

// IdentityService owns both principal tables and their bearer tokens.
type IdentityService struct {
	db     *gorm.DB
	secret string
	ttl    time.Duration
	cache  TokenCache
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewIdentityService constructs IdentityService. cache may be nil.
func NewIdentityService(db *gorm.DB, secret string, ttl time.Duration, cache TokenCache) *IdentityService {
	return &IdentityService{db: db, secret: secret, ttl: ttl, cache: cache, now: time.Now}
}

// RegisterUser creates a staff account and issues its first token.
func (s *IdentityService) RegisterUser(ctx context.Context, in UserRegistration) (*models.User, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	fields := FieldErrors{}
	fields.Merge(utils.ValidateStruct(in))
	fields.Add("password", utils.StaffPasswordPolicy.Check(in.Password)...)
	if err := s.checkTaken(ctx, fields, &models.User{}, "email", in.Email, nil); err != nil {
		return nil, "", err
	}
	if err := fields.Err(""); err != nil {
		return nil, "", err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, "", ServerError("failed to hash password", err)
	}

	user := models.User{Name: in.Name, Email: in.Email, PasswordHash: hash}
	var token string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return ValidationError("email", "the email has already been taken")
			}
			return err
		}
		token, _, err = s.issueToken(tx, models.PrincipalUser, user.ID)
		return err
	})
	if err != nil {
		return nil, "", asServiceError(err, "failed to register user")
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID)
	return &user, token, nil
}

// RegisterCustomer creates a customer account and issues its first token.
func (s *IdentityService) RegisterCustomer(ctx context.Context, in CustomerRegistration) (*models.Customer, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)

	fields := FieldErrors{}
	fields.Merge(utils.ValidateStruct(in))
	fields.Add("password", utils.CustomerPasswordPolicy.Check(in.Password)...)
	if err := s.checkTaken(ctx, fields, &models.Customer{}, "email", in.Email, nil); err != nil {
		return nil, "", err
	}
	if err := s.checkTaken(ctx, fields, &models.Customer{}, "phone", in.Phone, nil); err != nil {
		return nil, "", err
	}
	if err := fields.Err(""); err != nil {
		return nil, "", err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, "", ServerError("failed to hash password", err)
	}

	customer := models.Customer{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Address:      trimmed(in.Address),
		Area:         trimmed(in.Area),
		City:         trimmed(in.City),
	}
	var token string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&customer).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return FieldErrors{
					"email": {"the email or phone has already been taken"},
					"phone": {"the email or phone has already been taken"},
				}.Err("")
			}
			return err
		}
		token, _, err = s.issueToken(tx, models.PrincipalCustomer, customer.ID)
		return err
	})
	if err != nil {
		return nil, "", asServiceError(err, "failed to register customer")
	}

	slog.InfoContext(ctx, "customer registered", "customer_id", customer.ID)
	return &customer, token, nil
}

// Login verifies credentials within one principal namespace and issues a
// token. Unknown email and wrong password fail identically.
func (s *IdentityService) Login(ctx context.Context, kind models.PrincipalType, email, password string) (*Principal, string, error) {
	email = normalizeEmail(email)

	fields := FieldErrors{}
	fields.Merge(utils.ValidateStruct(loginInput{Email: email, Password: password}))
	if err := fields.Err(""); err != nil {
		return nil, "", err
	}

	principal, hash, err := s.findByEmail(ctx, kind, email)
	if err != nil {
		return nil, "", err
	}
	if principal == nil {
		// Burn the same bcrypt time as a real comparison.
		utils.CheckPassword(s.dummyPasswordHash(), password)
		return nil, "", ErrInvalidCredentials
	}
	if !utils.CheckPassword(hash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, tokenID, err := s.issueToken(s.db.WithContext(ctx), kind, principal.ID)
	if err != nil {
		return nil, "", ServerError("failed to issue token", err)
	}
	principal.TokenID = tokenID

	return principal, token, nil
}

// Resolve authenticates a bearer token within the given principal namespace.
func (s *IdentityService) Resolve(ctx context.Context, token string, kind models.PrincipalType) (*Principal, error) {
	claims, err := utils.ParseToken(s.secret, token)
	if err != nil {
		return nil, UnauthenticatedError("invalid or expired token")
	}
	if models.PrincipalType(claims.PrincipalType) != kind {
		return nil, UnauthenticatedError("token is not valid for this resource")
	}
	tokenID, err := claims.TokenID()
	if err != nil {
		return nil, UnauthenticatedError("invalid token")
	}
	principalID, err := claims.PrincipalID()
	if err != nil {
		return nil, UnauthenticatedError("invalid token")
	}

	if err := s.checkTokenRecord(ctx, tokenID, kind, principalID); err != nil {
		return nil, err
	}

	principal, err := s.loadPrincipal(ctx, kind, principalID)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, UnauthenticatedError("invalid token")
	}
	principal.TokenID = tokenID
	return principal, nil
}

// Revoke deletes the access token. Revoking an unknown token is not an error.
func (s *IdentityService) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Delete(&models.AccessToken{}, "id = ?", tokenID).Error; err != nil {
		return ServerError("failed to revoke token", err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, s.cache.GenerateKey("token", tokenID.String())); err != nil {
			slog.WarnContext(ctx, "token cache delete failed", "token_id", tokenID, "error", err)
		}
	}
	return nil
}

// UpdateCustomerProfile edits the live profile. Existing orders keep the
// contact data they were placed with.
func (s *IdentityService) UpdateCustomerProfile(ctx context.Context, customerID uuid.UUID, in CustomerProfileUpdate) (*models.Customer, error) {
	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		in.Name = &v
	}
	if in.Phone != nil {
		v := strings.TrimSpace(*in.Phone)
		in.Phone = &v
	}

	fields := FieldErrors{}
	fields.Merge(utils.ValidateStruct(in))
	if in.Phone != nil && !fields.Has("phone") {
		if err := s.checkTaken(ctx, fields, &models.Customer{}, "phone", *in.Phone, &customerID); err != nil {
			return nil, err
		}
	}
	if err := fields.Err(""); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Phone != nil {
		updates["phone"] = *in.Phone
	}
	if in.Address != nil {
		updates["address"] = trimmed(in.Address)
	}
	if in.Area != nil {
		updates["area"] = trimmed(in.Area)
	}
	if in.City != nil {
		updates["city"] = trimmed(in.City)
	}

	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		if err := db.Model(&models.Customer{}).Where("id = ?", customerID).Updates(updates).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return nil, ValidationError("phone", "the phone has already been taken")
			}
			return nil, ServerError("failed to update profile", err)
		}
	}

	var customer models.Customer
	if err := db.First(&customer, "id = ?", customerID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, NotFoundError("customer not found")
		}
		return nil, ServerError("failed to load profile", err)
	}
	return &customer, nil
}

func (s *IdentityService) issueToken(tx *gorm.DB, kind models.PrincipalType, principalID uuid.UUID) (string, uuid.UUID, error) {
	now := s.now()
	record := models.AccessToken{
		BaseModel:     models.BaseModel{ID: uuid.New()},
		PrincipalType: kind,
		PrincipalID:   principalID,
		Name:          "api",
		ExpiresAt:     now.Add(s.ttl),
	}
	if err := tx.Create(&record).Error; err != nil {
		return "", uuid.Nil, err
	}
	token, err := utils.GenerateToken(s.secret, string(kind), principalID, record.ID, now, s.ttl)
	return token, record.ID, err
}

func (s *IdentityService) checkTokenRecord(ctx context.Context, tokenID uuid.UUID, kind models.PrincipalType, principalID uuid.UUID) error {
	marker := string(kind) + ":" + principalID.String()

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.GenerateKey("token", tokenID.String())
		cached, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			slog.WarnContext(ctx, "token cache read failed", "error", err)
		} else if cached == marker {
			return nil
		}
	}

	var record models.AccessToken
	err := s.db.WithContext(ctx).
		First(&record, "id = ? AND principal_type = ? AND principal_id = ?", tokenID, kind, principalID).Error
	if err != nil {
		if database.IsNotFound(err) {
			return UnauthenticatedError("token has been revoked")
		}
		return ServerError("failed to load token", err)
	}

	remaining := record.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return UnauthenticatedError("invalid or expired token")
	}

	if s.cache != nil {
		if remaining > maxCachedTokenTTL {
			remaining = maxCachedTokenTTL
		}
		if err := s.cache.Set(ctx, cacheKey, marker, remaining); err != nil {
			slog.WarnContext(ctx, "token cache write failed", "error", err)
		}
	}
	return nil
}

func (s *IdentityService) loadPrincipal(ctx context.Context, kind models.PrincipalType, id uuid.UUID) (*Principal, error) {
	db := s.db.WithContext(ctx)
	switch kind {
	case models.PrincipalUser:
		var user models.User
		if err := db.First(&user, "id = ?", id).Error; err != nil {
			if database.IsNotFound(err) {
				return nil, nil
			}
			return nil, ServerError("failed to load user", err)
		}
		return &Principal{Type: kind, ID: user.ID, User: &user}, nil
	case models.PrincipalCustomer:
		var customer models.Customer
		if err := db.First(&customer, "id = ?", id).Error; err != nil {
			if database.IsNotFound(err) {
				return nil, nil
			}
			return nil, ServerError("failed to load customer", err)
		}
		return &Principal{Type: kind, ID: customer.ID, Customer: &customer}, nil
	}
	return nil, ServerError("unknown principal type", fmt.Errorf("%q", kind))
}

func (s *IdentityService) findByEmail(ctx context.Context, kind models.PrincipalType, email string) (*Principal, string, error) {
	db := s.db.WithContext(ctx)
	switch kind {
	case models.PrincipalUser:
		var user models.User
		if err := db.Where("email = ?", email).First(&user).Error; err != nil {
			if database.IsNotFound(err) {
				return nil, "", nil
			}
			return nil, "", ServerError("failed to load user", err)
		}
		return &Principal{Type: kind, ID: user.ID, User: &user}, user.PasswordHash, nil
	case models.PrincipalCustomer:
		var customer models.Customer
		if err := db.Where("email = ?", email).First(&customer).Error; err != nil {
			if database.IsNotFound(err) {
				return nil, "", nil
			}
			return nil, "", ServerError("failed to load customer", err)
		}
		return &Principal{Type: kind, ID: customer.ID, Customer: &customer}, customer.PasswordHash, nil
	}
	return nil, "", ServerError("unknown principal type", fmt.Errorf("%q", kind))
}

// checkTaken records a field error when value is already used in model's table.
func (s *IdentityService) checkTaken(ctx context.Context, fields FieldErrors, model interface{}, column, value string, exclude *uuid.UUID) error {
	if value == "" || fields.Has(column) {
		return nil
	}

	query := s.db.WithContext(ctx).Model(model).Where(column+" = ?", value)
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return ServerError("failed to check "+column, err)
	}
	if count > 0 {
		fields.Add(column, fmt.Sprintf("the %s has already been taken", column))
	}
	return nil
}

func (s *IdentityService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = utils.HashPassword(uuid.NewString())
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
