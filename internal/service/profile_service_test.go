package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
)

func TestProfileGetAndUpdate(t *testing.T) {
	users := newFakeUserRepo()
	require.NoError(t, users.Create(context.Background(), &domain.User{ID: customerA.UserID, Name: "Ann", Phone: "5551234567", Email: "a@x.com", Role: domain.RoleCustomer}))
	svc := NewProfileService(ProfileDependencies{UserRepo: users, AnalyticsRepo: &fakeAnalyticsRepo{}})
	ctx := context.Background()

	user, err := svc.Get(ctx, customerA)
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.Name)

	_, err = svc.Update(ctx, customerA, ProfileUpdate{})
	requireDomainError(t, err, http.StatusBadRequest, "No fields to update")

	_, err = svc.Update(ctx, customerA, ProfileUpdate{Name: ptr("A"), Phone: ptr("12ab")})
	de := requireDomainError(t, err, http.StatusBadRequest, "Validation failed")
	assert.Contains(t, de.Details, "name")
	assert.Contains(t, de.Details, "phone")

	updated, err := svc.Update(ctx, customerA, ProfileUpdate{Name: ptr(" Anna "), Phone: ptr("5559876543")})
	require.NoError(t, err)
	assert.Equal(t, "Anna", updated.Name)
	assert.Equal(t, "5559876543", updated.Phone)
	assert.Equal(t, "a@x.com", updated.Email)

	_, err = svc.Get(ctx, auth.Identity{UserID: "ghost", Role: domain.RoleCustomer})
	requireDomainError(t, err, http.StatusNotFound, "User not found")

	activity, err := svc.Activity(ctx, customerA)
	require.NoError(t, err)
	assert.EqualValues(t, 2, activity.Total)
}

func TestRegisterDevice(t *testing.T) {
	repo := newFakeDeviceRepo()
	svc := NewDeviceService(repo)
	ctx := context.Background()

	_, err := svc.Register(ctx, customerA, " ", nil)
	requireDomainError(t, err, http.StatusBadRequest, "deviceId is required")

	first, err := svc.Register(ctx, customerA, "pixel-7", ptr("tok-1"))
	require.NoError(t, err)
	second, err := svc.Register(ctx, customerA, "pixel-7", ptr("tok-2"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	devices, err := repo.ListByUser(ctx, customerA.UserID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "tok-2", *devices[0].FCMToken)
}
