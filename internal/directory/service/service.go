// Package service provides business logic for the per-vendor user
// directories.
package service

import (
	"context"
	"time"

	"apalloc_backend/internal/directory/repository"
	"apalloc_backend/internal/directory/transport"
	"apalloc_backend/internal/money"
	"apalloc_backend/platform/apperr"
)

const msgUnknownVendor = "unknown directory vendor"

// Vendors with a persistent user directory. Device and generic
// uploads carry no per-person rows, so they have none.
var knownVendors = map[string]struct{}{
	"adobe": {},
	"msp":   {},
}

// Service provides directory operations for handlers and for the
// analysis pipeline.
type Service struct {
	repo *repository.Repository
}

// New creates a new directory service.
func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

func validateVendor(vendor string) error {
	if _, ok := knownVendors[vendor]; !ok {
		return apperr.BadRequest(msgUnknownVendor)
	}
	return nil
}

// List returns the full directory for a vendor.
func (s *Service) List(ctx context.Context, vendor string) (transport.ListUsersResponse, error) {
	if err := validateVendor(vendor); err != nil {
		return transport.ListUsersResponse{}, err
	}

	users, err := s.repo.List(ctx, vendor)
	if err != nil {
		return transport.ListUsersResponse{}, err
	}

	resp := transport.ListUsersResponse{Vendor: vendor, Users: make([]transport.UserResponse, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, mapUserResponse(u))
	}
	return resp, nil
}

// Save upserts the branch-bearing rows of the request and reports how
// many branchless rows were skipped.
func (s *Service) Save(ctx context.Context, vendor string, req transport.SaveUsersRequest) (transport.SaveUsersResponse, error) {
	if err := validateVendor(vendor); err != nil {
		return transport.SaveUsersResponse{}, err
	}

	rows := make([]repository.UpsertUser, 0, len(req.Users))
	skipped := 0
	for _, u := range req.Users {
		email := money.NormalizeEmail(u.Email)
		branch := money.NormalizeText(u.Branch)
		if email == "" || branch == "" {
			skipped++
			continue
		}
		rows = append(rows, repository.UpsertUser{
			Email:     email,
			FirstName: money.NormalizeText(u.FirstName),
			LastName:  money.NormalizeText(u.LastName),
			Branch:    branch,
		})
	}

	if err := s.repo.Upsert(ctx, vendor, rows); err != nil {
		return transport.SaveUsersResponse{}, err
	}
	return transport.SaveUsersResponse{Saved: len(rows), Skipped: skipped}, nil
}

// Deactivate soft-deletes rows by email.
func (s *Service) Deactivate(ctx context.Context, vendor string, req transport.DeactivateRequest) (transport.DeactivateResponse, error) {
	if err := validateVendor(vendor); err != nil {
		return transport.DeactivateResponse{}, err
	}

	emails := make([]string, 0, len(req.Emails))
	for _, email := range req.Emails {
		if normalized := money.NormalizeEmail(email); normalized != "" {
			emails = append(emails, normalized)
		}
	}

	count, err := s.repo.Deactivate(ctx, vendor, emails)
	if err != nil {
		return transport.DeactivateResponse{}, err
	}
	return transport.DeactivateResponse{Deactivated: count}, nil
}

// Snapshot materializes the directory as an email-keyed map for the
// allocation engine.
func (s *Service) Snapshot(ctx context.Context, vendor string) (map[string]repository.User, error) {
	if err := validateVendor(vendor); err != nil {
		return nil, err
	}

	users, err := s.repo.List(ctx, vendor)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]repository.User, len(users))
	for _, u := range users {
		email := money.NormalizeEmail(u.Email)
		if email == "" {
			continue
		}
		u.Email = email
		snapshot[email] = u
	}
	return snapshot, nil
}

// UpsertRows writes branch-bearing rows on behalf of the analysis
// pipeline (user corrections, managed-vendor seeding).
func (s *Service) UpsertRows(ctx context.Context, vendor string, rows []repository.UpsertUser) error {
	if err := validateVendor(vendor); err != nil {
		return err
	}
	filtered := make([]repository.UpsertUser, 0, len(rows))
	for _, row := range rows {
		row.Email = money.NormalizeEmail(row.Email)
		row.Branch = money.NormalizeText(row.Branch)
		if row.Email == "" || row.Branch == "" {
			continue
		}
		filtered = append(filtered, row)
	}
	return s.repo.Upsert(ctx, vendor, filtered)
}

// TouchSeen refreshes last-seen for exported users after a finalized
// pass.
func (s *Service) TouchSeen(ctx context.Context, vendor string, rows []repository.SeenUser) error {
	if err := validateVendor(vendor); err != nil {
		return err
	}
	filtered := make([]repository.SeenUser, 0, len(rows))
	for _, row := range rows {
		row.Email = money.NormalizeEmail(row.Email)
		if row.Email == "" {
			continue
		}
		filtered = append(filtered, row)
	}
	return s.repo.TouchSeen(ctx, vendor, filtered)
}

// FindMissing returns active directory entries absent from the given
// export emails.
func (s *Service) FindMissing(ctx context.Context, vendor string, activeEmails []string) ([]repository.User, error) {
	if err := validateVendor(vendor); err != nil {
		return nil, err
	}
	normalized := make([]string, 0, len(activeEmails))
	for _, email := range activeEmails {
		if e := money.NormalizeEmail(email); e != "" {
			normalized = append(normalized, e)
		}
	}
	return s.repo.FindMissing(ctx, vendor, normalized)
}

func mapUserResponse(u repository.User) transport.UserResponse {
	var lastSeen *string
	if u.LastSeenAt != nil {
		formatted := u.LastSeenAt.UTC().Format(time.RFC3339)
		lastSeen = &formatted
	}
	return transport.UserResponse{
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Branch:     u.Branch,
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  u.UpdatedAt.UTC().Format(time.RFC3339),
		LastSeenAt: lastSeen,
	}
}
