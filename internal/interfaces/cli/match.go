package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/molmatch/internal/application/matching"
	"github.com/turtacn/molmatch/internal/infrastructure/storage/molfile"
	"github.com/turtacn/molmatch/pkg/errors"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// searchFlags are the per-run overrides of the configured search defaults.
type searchFlags struct {
	maxMappings     int
	unique          bool
	exists          bool
	forwardChecking bool
	roles           []string
	checkCharge     bool
	checkIsotope    bool
	checkAromatic   bool
	checkAtomMaps   bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.maxMappings, "max-mappings", 0, "stop after this many mappings (0 = unlimited)")
	fs.BoolVar(&f.unique, "unique", false, "report each matched substructure once")
	fs.BoolVar(&f.exists, "exists", false, "only report whether a mapping exists")
	fs.BoolVar(&f.forwardChecking, "forward-checking", true, "prune candidates by neighbor degree")
	fs.StringSliceVar(&f.roles, "roles", nil, "enabled reaction roles (reactant, agent, product, none, all)")
	fs.BoolVar(&f.checkCharge, "check-charge", true, "require equal formal charge")
	fs.BoolVar(&f.checkIsotope, "check-isotope", true, "require equal isotope when the query sets one")
	fs.BoolVar(&f.checkAromatic, "check-aromatic", true, "require equal aromaticity")
	fs.BoolVar(&f.checkAtomMaps, "check-atom-maps", false, "enforce reaction atom-map consistency")
}

// options returns the flags the user set explicitly; the rest fall back to
// configuration.
func (f *searchFlags) options(cmd *cobra.Command) mtypes.MatchOptions {
	fs := cmd.Flags()
	var o mtypes.MatchOptions
	if fs.Changed("max-mappings") {
		o.MaxMappings = &f.maxMappings
	}
	if fs.Changed("unique") {
		o.UniqueOnly = &f.unique
	}
	if fs.Changed("exists") {
		o.ExistsOnly = &f.exists
	}
	if fs.Changed("forward-checking") {
		o.ForwardChecking = &f.forwardChecking
	}
	if fs.Changed("roles") {
		o.Roles = f.roles
	}
	if fs.Changed("check-charge") {
		o.CheckCharge = &f.checkCharge
	}
	if fs.Changed("check-isotope") {
		o.CheckIsotope = &f.checkIsotope
	}
	if fs.Changed("check-aromatic") {
		o.CheckAromatic = &f.checkAromatic
	}
	if fs.Changed("check-atom-maps") {
		o.CheckAtomMaps = &f.checkAtomMaps
	}
	return o
}

// NewMatchCmd matches one query file against one target file.
func NewMatchCmd() *cobra.Command {
	var (
		queryPath  string
		targetPath string
		flags      searchFlags
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find the mappings of a query graph into a target",
		Example: `  molmatch match -q query.yaml -t target.yaml
  molmatch match -q query.yaml -t reaction.yaml --roles reactant --unique -o table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			query, err := molfile.ReadOne(queryPath)
			if err != nil {
				return err
			}
			target, err := molfile.ReadOne(targetPath)
			if err != nil {
				return err
			}

			res, err := cliCtx.Service.Match(cmd.Context(), &matching.MatchRequest{
				Query:   query,
				Target:  target,
				Options: flags.options(cmd),
			})
			if err != nil {
				return errors.Wrap(err, errors.CodeUnknown, "match failed")
			}
			return PrintResult(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&queryPath, "query", "q", "", "query molecule file (YAML or JSON)")
	cmd.Flags().StringVarP(&targetPath, "target", "t", "", "target molecule or reaction file")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("target")
	flags.register(cmd)
	return cmd
}
