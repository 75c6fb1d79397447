package molecule

import (
	"strings"

	"github.com/turtacn/molmatch/internal/domain/substruct"
	"github.com/turtacn/molmatch/pkg/errors"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// RoleFromName converts a document role name.  "" means none.
func RoleFromName(name mtypes.RoleName) (substruct.Role, error) {
	if !name.IsValid() {
		return 0, errors.New(errors.CodeMoleculeInvalidFormat, "unknown component role").
			WithDetailf("role=%q", name)
	}
	return substruct.ParseRole(string(name.Normalize()))
}

// RoleToName converts a single role to its document name.
func RoleToName(r substruct.Role) mtypes.RoleName {
	return mtypes.RoleName(r.String())
}

// FromDocument builds a Graph from doc.  Bond endpoints in the document are
// component-local atom indices.  A document without an ID gets a UUID.
func FromDocument(doc *mtypes.GraphDocument) (*Graph, error) {
	if doc == nil {
		return nil, errors.InvalidParam("molecule document is nil")
	}
	g := NewGraphWithID(doc.ID, doc.Name)

	for ci, cd := range doc.Components {
		role, err := RoleFromName(cd.Role)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "invalid component").
				WithDetailf("document=%s component=%d", g.id, ci)
		}
		comp, err := g.AddComponent(role)
		if err != nil {
			return nil, err
		}

		offset := g.NumAtoms()
		for ai, ad := range cd.Atoms {
			symbol := strings.TrimSpace(ad.Symbol)
			if symbol == "" {
				return nil, errors.New(errors.CodeMoleculeInvalidFormat, "atom has no symbol").
					WithDetailf("document=%s component=%d atom=%d", g.id, ci, ai)
			}
			if _, err := g.AddAtom(comp, Atom{
				Symbol:    symbol,
				Charge:    ad.Charge,
				Isotope:   ad.Isotope,
				Aromatic:  ad.Aromatic,
				Hydrogens: ad.Hydrogens,
				MapNumber: ad.MapNumber,
			}); err != nil {
				return nil, err
			}
		}

		for bi, bd := range cd.Bonds {
			order, err := ParseBondOrder(bd.Order)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeUnknown, "invalid bond").
					WithDetailf("document=%s component=%d bond=%d", g.id, ci, bi)
			}
			if bd.Begin < 0 || bd.Begin >= len(cd.Atoms) || bd.End < 0 || bd.End >= len(cd.Atoms) {
				return nil, errors.New(errors.CodeMalformedGraph, "bond references a missing atom").
					WithDetailf("document=%s component=%d bond=%d atoms=(%d,%d)", g.id, ci, bi, bd.Begin, bd.End)
			}
			if _, err := g.AddBond(Bond{
				Begin:    offset + bd.Begin,
				End:      offset + bd.End,
				Order:    order,
				Aromatic: bd.Aromatic,
			}); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// ToDocument renders g in the document format.
func (g *Graph) ToDocument() *mtypes.GraphDocument {
	doc := &mtypes.GraphDocument{ID: g.id, Name: g.name}
	local := make([]int, len(g.atoms))
	for _, c := range g.components {
		cd := mtypes.ComponentDocument{Role: RoleToName(c.Role)}
		for i, ai := range c.Atoms {
			local[ai] = i
			a := g.atoms[ai]
			cd.Atoms = append(cd.Atoms, mtypes.AtomDocument{
				Symbol:    a.Symbol,
				Charge:    a.Charge,
				Isotope:   a.Isotope,
				Aromatic:  a.Aromatic,
				Hydrogens: a.Hydrogens,
				MapNumber: a.MapNumber,
			})
		}
		for _, bi := range c.Bonds {
			b := g.bonds[bi]
			cd.Bonds = append(cd.Bonds, mtypes.BondDocument{
				Begin:    local[b.Begin],
				End:      local[b.End],
				Order:    b.Order.Name(),
				Aromatic: b.Aromatic,
			})
		}
		doc.Components = append(doc.Components, cd)
	}
	return doc
}

// MappingToDocument converts an engine mapping to its document form.
func MappingToDocument(m *substruct.Mapping) mtypes.MappingDocument {
	doc := mtypes.MappingDocument{
		Atoms: make([]mtypes.Pair, 0, m.NumAtoms()),
		Bonds: make([]mtypes.Pair, 0, m.NumBonds()),
	}
	for _, p := range m.AtomPairs() {
		doc.Atoms = append(doc.Atoms, mtypes.Pair{Query: p.Query, Target: p.Target})
	}
	for _, p := range m.BondPairs() {
		doc.Bonds = append(doc.Bonds, mtypes.Pair{Query: p.Query, Target: p.Target})
	}
	return doc
}
