package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/database/databasetest"
	"github.com/example/storefront/internal/models"
)

func newIdentityService(t *testing.T, cache TokenCache) (*IdentityService, *gorm.DB) {
	t.Helper()
	db := databasetest.New(t)
	return NewIdentityService(db, testSecret, time.Hour, cache), db
}

func validCustomer() CustomerRegistration {
	return CustomerRegistration{
		Name:                 "Grace Hopper",
		Email:                "Grace@Example.com ",
		Phone:                "555-0001",
		Password:             "s3cret-pass",
		PasswordConfirmation: "s3cret-pass",
		City:                 strPtr("Arlington"),
	}
}

func TestRegisterUserIssuesUsableToken(t *testing.T) {
	svc, _ := newIdentityService(t, nil)
	ctx := context.Background()

	user, token, err := svc.RegisterUser(ctx, UserRegistration{
		Name:                 "Ada",
		Email:                "ada@example.com",
		Password:             "password1",
		PasswordConfirmation: "password1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotEqual(t, "password1", user.PasswordHash)

	principal, err := svc.Resolve(ctx, token, models.PrincipalUser)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.ID)
	assert.Equal(t, "ada@example.com", principal.User.Email)
}

func TestRegisterUserCollectsFieldErrors(t *testing.T) {
	svc, _ := newIdentityService(t, nil)
	ctx := context.Background()

	_, _, err := svc.RegisterUser(ctx, UserRegistration{
		Email:                "not-an-email",
		Password:             "short",
		PasswordConfirmation: "different",
	})

	svcErr := requireKind(t, err, KindValidation)
	assert.ElementsMatch(t, []string{"name", "email", "password", "password_confirmation"}, svcErr.Fields.Fields())
}

func TestRegisterRejectsTakenEmailPerTable(t *testing.T) {
	svc, _ := newIdentityService(t, nil)
	ctx := context.Background()

	_, _, err := svc.RegisterCustomer(ctx, validCustomer())
	require.NoError(t, err)

	again := validCustomer()
	again.Phone = "555-0002"
	_, _, err = svc.RegisterCustomer(ctx, again)
	svcErr := requireKind(t, err, KindValidation)
	assert.Equal(t, []string{"email"}, svcErr.Fields.Fields())

	// The staff namespace is independent.
	_, _, err = svc.RegisterUser(ctx, UserRegistration{
		Name:                 "Grace",
		Email:                "grace@example.com",
		Password:             "password1",
		PasswordConfirmation: "password1",
	})
	assert.NoError(t, err)
}

func TestRegisterCustomerPasswordPolicy(t *testing.T) {
	svc, _ := newIdentityService(t, nil)

	in := validCustomer()
	in.Password = "onlyletters"
	in.PasswordConfirmation = "onlyletters"
	_, _, err := svc.RegisterCustomer(context.Background(), in)

	svcErr := requireKind(t, err, KindValidation)
	assert.Equal(t, []string{"password"}, svcErr.Fields.Fields())
	assert.Len(t, svcErr.Fields["password"], 2)
}

func TestRegisterCustomerNormalizesAndStoresProfile(t *testing.T) {
	svc, _ := newIdentityService(t, nil)

	customer, _, err := svc.RegisterCustomer(context.Background(), validCustomer())
	require.NoError(t, err)

	assert.Equal(t, "grace@example.com", customer.Email)
	require.NotNil(t, customer.City)
	assert.Equal(t, "Arlington", *customer.City)
	assert.Nil(t, customer.Address)
}

func TestLoginFailsIdenticallyForUnknownEmailAndWrongPassword(t *testing.T) {
	svc, _ := newIdentityService(t, nil)
	ctx := context.Background()

	_, _, err := svc.RegisterCustomer(ctx, validCustomer())
	require.NoError(t, err)

	_, _, unknown := svc.Login(ctx, models.PrincipalCustomer, "nobody@example.com", "s3cret-pass")
	_, _, wrong := svc.Login(ctx, models.PrincipalCustomer, "grace@example.com", "wrong-pass1!")

	requireKind(t, unknown, KindInvalidCredentials)
	requireKind(t, wrong, KindInvalidCredentials)
	assert.Equal(t, unknown.Error(), wrong.Error())

	// Customer credentials do not log into the staff namespace.
	_, _, err = svc.Login(ctx, models.PrincipalUser, "grace@example.com", "s3cret-pass")
	requireKind(t, err, KindInvalidCredentials)

	principal, token, err := svc.Login(ctx, models.PrincipalCustomer, " GRACE@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, models.PrincipalCustomer, principal.Type)
}

func TestResolveRejectsOtherPrincipalType(t *testing.T) {
	svc, _ := newIdentityService(t, nil)

	_, token, err := svc.RegisterCustomer(context.Background(), validCustomer())
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), token, models.PrincipalUser)
	requireKind(t, err, KindUnauthenticated)

	_, err = svc.Resolve(context.Background(), "garbage", models.PrincipalCustomer)
	requireKind(t, err, KindUnauthenticated)
}

func TestRevokeInvalidatesTokenAndIsIdempotent(t *testing.T) {
	cache := newMemCache()
	svc, _ := newIdentityService(t, cache)
	ctx := context.Background()

	_, token, err := svc.RegisterCustomer(ctx, validCustomer())
	require.NoError(t, err)

	principal, err := svc.Resolve(ctx, token, models.PrincipalCustomer)
	require.NoError(t, err)
	assert.Len(t, cache.entries, 1)

	require.NoError(t, svc.Revoke(ctx, principal.TokenID))
	require.NoError(t, svc.Revoke(ctx, principal.TokenID))
	assert.Empty(t, cache.entries)

	_, err = svc.Resolve(ctx, token, models.PrincipalCustomer)
	requireKind(t, err, KindUnauthenticated)
}

func TestResolveUsesCacheForHotTokens(t *testing.T) {
	cache := newMemCache()
	svc, _ := newIdentityService(t, cache)
	ctx := context.Background()

	_, token, err := svc.RegisterCustomer(ctx, validCustomer())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Resolve(ctx, token, models.PrincipalCustomer)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, cache.sets)
}

func TestResolveRejectsExpiredTokenRecord(t *testing.T) {
	svc, _ := newIdentityService(t, nil)
	ctx := context.Background()

	_, token, err := svc.RegisterCustomer(ctx, validCustomer())
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Resolve(ctx, token, models.PrincipalCustomer)
	requireKind(t, err, KindUnauthenticated)
}

func TestUpdateCustomerProfile(t *testing.T) {
	svc, db := newIdentityService(t, nil)
	ctx := context.Background()

	customer, _, err := svc.RegisterCustomer(ctx, validCustomer())
	require.NoError(t, err)
	other := seedCustomer(t, db, "other@example.com", "555-0002")

	updated, err := svc.UpdateCustomerProfile(ctx, customer.ID, CustomerProfileUpdate{
		Name: strPtr(" Rear Admiral Hopper "),
		City: strPtr(""),
		Area: strPtr("Pentagon"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Rear Admiral Hopper", updated.Name)
	assert.Nil(t, updated.City)
	assert.Equal(t, "Pentagon", *updated.Area)
	assert.Equal(t, "555-0001", updated.Phone)

	_, err = svc.UpdateCustomerProfile(ctx, customer.ID, CustomerProfileUpdate{Phone: strPtr(other.Phone)})
	svcErr := requireKind(t, err, KindValidation)
	assert.Equal(t, []string{"phone"}, svcErr.Fields.Fields())

	_, err = svc.UpdateCustomerProfile(ctx, customer.ID, CustomerProfileUpdate{Name: strPtr("  ")})
	requireKind(t, err, KindValidation)
}
