package matching

import (
	"strings"
	"time"

	"github.com/turtacn/molmatch/internal/domain/molecule"
	"github.com/turtacn/molmatch/internal/domain/substruct"
	"github.com/turtacn/molmatch/pkg/errors"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// Options are the service-wide matching defaults.  Requests may override
// the search-related fields.
type Options struct {
	MaxMappings     int
	UniqueOnly      bool
	ExistsOnly      bool
	ForwardChecking bool
	Roles           []string
	Match           molecule.MatchOptions

	// Timeout bounds a single query/target search.  0 disables it.
	Timeout time.Duration

	// Workers is the batch concurrency.  Values below 1 mean 1.
	Workers int

	// FailFast aborts a batch on the first failing target.
	FailFast bool
}

// DefaultOptions returns the defaults used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		ForwardChecking: true,
		Match:           molecule.DefaultMatchOptions(),
		Workers:         4,
	}
}

// resolved is Options merged with a request and validated.
type resolved struct {
	Options
	roles substruct.Role
}

func (o Options) merge(over mtypes.MatchOptions) (resolved, error) {
	r := resolved{Options: o}
	if over.MaxMappings != nil {
		if *over.MaxMappings < 0 {
			return resolved{}, errors.InvalidParam("max_mappings must not be negative").
				WithDetailf("max_mappings=%d", *over.MaxMappings)
		}
		r.MaxMappings = *over.MaxMappings
	}
	setBool(&r.UniqueOnly, over.UniqueOnly)
	setBool(&r.ExistsOnly, over.ExistsOnly)
	setBool(&r.ForwardChecking, over.ForwardChecking)
	setBool(&r.Match.Charge, over.CheckCharge)
	setBool(&r.Match.Isotope, over.CheckIsotope)
	setBool(&r.Match.Aromatic, over.CheckAromatic)
	setBool(&r.Match.AtomMaps, over.CheckAtomMaps)
	if len(over.Roles) > 0 {
		r.Roles = over.Roles
	}

	roles, err := ParseRoles(r.Roles)
	if err != nil {
		return resolved{}, err
	}
	r.roles = roles
	if r.Workers < 1 {
		r.Workers = 1
	}
	return r, nil
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// ParseRoles converts role names into an enable mask.  An empty list or
// "all" enables every role.
func ParseRoles(names []string) (substruct.Role, error) {
	if len(names) == 0 {
		return substruct.RoleAll, nil
	}
	var mask substruct.Role
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if strings.EqualFold(part, "all") {
				mask |= substruct.RoleAll
				continue
			}
			r, err := substruct.ParseRole(part)
			if err != nil {
				return 0, err
			}
			mask |= r
		}
	}
	if err := substruct.ValidateRoleMask(mask); err != nil {
		return 0, err
	}
	return mask, nil
}

func (r resolved) mode() string {
	if r.ExistsOnly {
		return ModeExists
	}
	return ModeFind
}

// newEngine returns an engine configured for r.
func (r resolved) newEngine(opts ...substruct.Option) (*substruct.Engine, error) {
	opts = append(opts,
		substruct.WithPredicates(molecule.NewPredicates(r.Match)),
		substruct.WithForwardChecking(r.ForwardChecking),
	)
	e := substruct.New(opts...)
	e.SetMaxNumMappings(r.MaxMappings)
	e.SetUniqueMappingsOnly(r.UniqueOnly)
	if err := e.SetEnabledRoles(r.roles); err != nil {
		return nil, err
	}
	return e, nil
}
