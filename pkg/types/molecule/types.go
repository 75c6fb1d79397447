// Package molecule defines the molecule/reaction document DTOs exchanged
// between the CLI, the HTTP surface and the matching service.  No domain
// logic lives here, only plain data types that are safe to import from any
// layer.
package molecule

import "strings"

// ─────────────────────────────────────────────────────────────────────────────
// RoleName — reaction role of a component
// ─────────────────────────────────────────────────────────────────────────────

// RoleName is the textual reaction role of a component.
type RoleName string

const (
	RoleReactant RoleName = "reactant"
	RoleAgent    RoleName = "agent"
	RoleProduct  RoleName = "product"

	// RoleNone marks components of a plain (non-reaction) molecule.
	RoleNone RoleName = "none"
)

// IsValid reports whether r is one of the known role names.  Comparison is
// case-insensitive; the empty string is treated as RoleNone by Normalize.
func (r RoleName) IsValid() bool {
	switch r.Normalize() {
	case RoleReactant, RoleAgent, RoleProduct, RoleNone:
		return true
	}
	return false
}

// Normalize lower-cases r and maps "" to RoleNone.
func (r RoleName) Normalize() RoleName {
	s := strings.ToLower(strings.TrimSpace(string(r)))
	if s == "" {
		return RoleNone
	}
	return RoleName(s)
}

// ─────────────────────────────────────────────────────────────────────────────
// BondOrderName
// ─────────────────────────────────────────────────────────────────────────────

// BondOrderName is the textual bond order used in documents.
type BondOrderName string

const (
	BondSingle   BondOrderName = "single"
	BondDouble   BondOrderName = "double"
	BondTriple   BondOrderName = "triple"
	BondAromatic BondOrderName = "aromatic"

	// BondAny is a query-only order matching every target bond.
	BondAny BondOrderName = "any"
)

// ─────────────────────────────────────────────────────────────────────────────
// Documents
// ─────────────────────────────────────────────────────────────────────────────

// AtomDocument describes one atom.  Charge, Isotope, MapNumber and
// Hydrogens default to zero.
type AtomDocument struct {
	Symbol    string `yaml:"symbol" json:"symbol"`
	Charge    int    `yaml:"charge,omitempty" json:"charge,omitempty"`
	Isotope   int    `yaml:"isotope,omitempty" json:"isotope,omitempty"`
	Aromatic  bool   `yaml:"aromatic,omitempty" json:"aromatic,omitempty"`
	Hydrogens int    `yaml:"hydrogens,omitempty" json:"hydrogens,omitempty"`
	MapNumber int    `yaml:"map,omitempty" json:"map,omitempty"`
}

// BondDocument connects two atoms of the same component.  Begin and End are
// zero-based indices into the component's Atoms slice.
type BondDocument struct {
	Begin    int           `yaml:"begin" json:"begin"`
	End      int           `yaml:"end" json:"end"`
	Order    BondOrderName `yaml:"order,omitempty" json:"order,omitempty"`
	Aromatic bool          `yaml:"aromatic,omitempty" json:"aromatic,omitempty"`
}

// ComponentDocument is one connected (or not) fragment with a reaction role.
type ComponentDocument struct {
	Role  RoleName       `yaml:"role,omitempty" json:"role,omitempty"`
	Atoms []AtomDocument `yaml:"atoms" json:"atoms"`
	Bonds []BondDocument `yaml:"bonds,omitempty" json:"bonds,omitempty"`
}

// GraphDocument is a molecule or reaction.  A plain molecule is a single
// component with role "none".
type GraphDocument struct {
	ID         string              `yaml:"id,omitempty" json:"id,omitempty"`
	Name       string              `yaml:"name,omitempty" json:"name,omitempty"`
	Components []ComponentDocument `yaml:"components" json:"components"`
}

// NumAtoms returns the total atom count over all components.
func (d *GraphDocument) NumAtoms() int {
	n := 0
	for _, c := range d.Components {
		n += len(c.Atoms)
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Match results
// ─────────────────────────────────────────────────────────────────────────────

// Pair is one query→target correspondence by graph-wide index.
type Pair struct {
	Query  int `yaml:"query" json:"query"`
	Target int `yaml:"target" json:"target"`
}

// MappingDocument is one mapping of a query onto a target.
type MappingDocument struct {
	Atoms []Pair `yaml:"atoms" json:"atoms"`
	Bonds []Pair `yaml:"bonds" json:"bonds"`
}

// SearchStats mirrors the engine's per-call counters.
type SearchStats struct {
	Nodes      int64 `yaml:"nodes" json:"nodes"`
	Candidates int64 `yaml:"candidates" json:"candidates"`
	Completed  int64 `yaml:"completed" json:"completed"`
	Rejected   int64 `yaml:"rejected" json:"rejected"`
	Duplicates int64 `yaml:"duplicates" json:"duplicates"`
}

// MatchResponse is the result of matching one query against one target.
type MatchResponse struct {
	QueryID    string            `yaml:"query_id" json:"query_id"`
	TargetID   string            `yaml:"target_id" json:"target_id"`
	Matched    bool              `yaml:"matched" json:"matched"`
	Count      int               `yaml:"count" json:"count"`
	Mappings   []MappingDocument `yaml:"mappings,omitempty" json:"mappings,omitempty"`
	Stats      SearchStats       `yaml:"stats" json:"stats"`
	DurationMS float64           `yaml:"duration_ms" json:"duration_ms"`
	Error      string            `yaml:"error,omitempty" json:"error,omitempty"`
}

// MatchOptions overrides engine configuration for one request.  Nil fields
// fall back to configured defaults.
type MatchOptions struct {
	MaxMappings     *int     `yaml:"max_mappings,omitempty" json:"max_mappings,omitempty"`
	UniqueOnly      *bool    `yaml:"unique_only,omitempty" json:"unique_only,omitempty"`
	ExistsOnly      *bool    `yaml:"exists_only,omitempty" json:"exists_only,omitempty"`
	ForwardChecking *bool    `yaml:"forward_checking,omitempty" json:"forward_checking,omitempty"`
	Roles           []string `yaml:"roles,omitempty" json:"roles,omitempty"`
	CheckCharge     *bool    `yaml:"check_charge,omitempty" json:"check_charge,omitempty"`
	CheckIsotope    *bool    `yaml:"check_isotope,omitempty" json:"check_isotope,omitempty"`
	CheckAromatic   *bool    `yaml:"check_aromatic,omitempty" json:"check_aromatic,omitempty"`
	CheckAtomMaps   *bool    `yaml:"check_atom_maps,omitempty" json:"check_atom_maps,omitempty"`
}

// MatchRequestDocument is the HTTP request body for POST /api/v1/match.
type MatchRequestDocument struct {
	Query   *GraphDocument `json:"query" binding:"required"`
	Target  *GraphDocument `json:"target" binding:"required"`
	Options MatchOptions   `json:"options"`
}
