package service

import (
	"testing"
	"time"

	"apalloc_backend/internal/directory/repository"
	"apalloc_backend/platform/apperr"
)

func TestValidateVendorAcceptsOnlyDirectoryVendors(t *testing.T) {
	for _, vendor := range []string{"adobe", "msp"} {
		if err := validateVendor(vendor); err != nil {
			t.Fatalf("expected vendor %q to be valid, got %v", vendor, err)
		}
	}

	for _, vendor := range []string{"generic", "mdm", "msp_support", "", "Adobe"} {
		err := validateVendor(vendor)
		if err == nil {
			t.Fatalf("expected vendor %q to be rejected", vendor)
		}
		if !apperr.Is(err, apperr.KindBadRequest) {
			t.Fatalf("expected bad request for vendor %q, got %v", vendor, err)
		}
	}
}

func TestMapUserResponseFormatsTimestamps(t *testing.T) {
	seen := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	u := repository.User{
		Email:      "a@b.com",
		Branch:     "Tampa",
		IsActive:   true,
		CreatedAt:  time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
		LastSeenAt: &seen,
	}

	resp := mapUserResponse(u)
	if resp.CreatedAt != "2026-01-02T00:00:00Z" {
		t.Fatalf("unexpected created_at %q", resp.CreatedAt)
	}
	if resp.LastSeenAt == nil || *resp.LastSeenAt != "2026-03-14T08:30:00Z" {
		t.Fatalf("expected last_seen_at in UTC, got %v", resp.LastSeenAt)
	}

	u.LastSeenAt = nil
	if got := mapUserResponse(u); got.LastSeenAt != nil {
		t.Fatalf("expected nil last_seen_at, got %v", *got.LastSeenAt)
	}
}
