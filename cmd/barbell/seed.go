package main

import (
	"context"
	"fmt"
	"os"

	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/orgs"
	"github.com/platinummonkey/barbell/pkg/rbac"
	"github.com/platinummonkey/barbell/pkg/status"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML document that populates memory storage
type seedFile struct {
	Users         []seedUser         `yaml:"users"`
	Organizations []seedOrganization `yaml:"organizations"`
}

type seedUser struct {
	ID            int64  `yaml:"id"`
	Name          string `yaml:"name"`
	Email         string `yaml:"email"`
	EmailVerified bool   `yaml:"email_verified"`
	SuperAdmin    bool   `yaml:"super_admin"`
}

type seedOrganization struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Slug    string `yaml:"slug"`
	Members []struct {
		UserID int64  `yaml:"user_id"`
		Role   string `yaml:"role"`
	} `yaml:"members"`
	Athletes []struct {
		ID     int64  `yaml:"id"`
		Name   string `yaml:"name"`
		UserID *int64 `yaml:"user_id"`
	} `yaml:"athletes"`
}

// readSeed parses and checks a seed file without touching any store
func readSeed(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	orgIDs := make(map[int64]bool)
	for _, org := range seed.Organizations {
		if org.ID <= 0 || org.Slug == "" {
			return nil, fmt.Errorf("seed organization %q needs an id and a slug", org.Name)
		}
		if orgIDs[org.ID] {
			return nil, fmt.Errorf("duplicate seed organization id %d", org.ID)
		}
		orgIDs[org.ID] = true

		for _, m := range org.Members {
			if _, err := rbac.ParseRole(m.Role); err != nil {
				return nil, fmt.Errorf("seed organization %s, user %d: %w", org.Slug, m.UserID, err)
			}
		}
	}
	return &seed, nil
}

// apply loads the seed into the memory stores
func (s *seedFile) apply(ctx context.Context, dir *orgs.MemoryDirectory, statuses *status.MemoryStore, users *auth.MemoryUserStore) error {
	for _, u := range s.Users {
		users.Add(auth.User{
			ID:            u.ID,
			Name:          u.Name,
			Email:         u.Email,
			EmailVerified: u.EmailVerified,
			IsSuperAdmin:  u.SuperAdmin,
		})
	}

	for _, org := range s.Organizations {
		dir.AddOrganization(orgs.Organization{ID: org.ID, Name: org.Name, Slug: org.Slug})
		for _, m := range org.Members {
			role, err := rbac.ParseRole(m.Role)
			if err != nil {
				return err
			}
			dir.SetMember(org.ID, m.UserID, role)
		}
		for _, a := range org.Athletes {
			athlete := &status.Athlete{ID: a.ID, OrganizationID: org.ID, UserID: a.UserID, Name: a.Name}
			if err := statuses.CreateAthlete(ctx, athlete); err != nil {
				return fmt.Errorf("failed to seed athlete %q: %w", a.Name, err)
			}
		}
	}
	return nil
}
