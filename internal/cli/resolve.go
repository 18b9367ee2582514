package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vizgen/internal/pattern"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Domain  string
	Pattern string
}

// Resolution is the resolver's decision for one domain/label pair.
type Resolution struct {
	Domain      string `json:"domain"`
	Recommended string `json:"recommended,omitempty"`
	Pattern     string `json:"pattern"`
	Overridden  bool   `json:"overridden"`
	FastPath    bool   `json:"fast_path"`
}

func (r Resolution) String() string {
	s := fmt.Sprintf("%s -> %s", r.Domain, r.Pattern)
	switch {
	case r.Overridden:
		s += " (domain override)"
	case r.Recommended != "" && r.Pattern == r.Recommended:
		s += " (recommended)"
	default:
		s += " (default)"
	}
	if r.FastPath {
		s += ", fast path"
	}
	return s
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which pattern a domain and recommendation resolve to",
		Long: `Apply the pattern resolution rules without calling the generative
service: domain overrides first, then the recommended label, then flow.

Examples:
  vizgen resolve --domain sorting
  vizgen resolve --domain generic --pattern graph`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Domain, "domain", "d", pattern.DomainGeneric, "classified domain")
	cmd.Flags().StringVarP(&opts.Pattern, "pattern", "p", "", "recommended pattern label")
	return cmd
}

func runResolve(opts *ResolveOptions, cmd *cobra.Command) error {
	kind := pattern.Resolve(opts.Domain, opts.Pattern)
	_, overridden := pattern.Override(opts.Domain)

	rec := ""
	if k, ok := pattern.Parse(opts.Pattern); ok {
		rec = string(k)
	}
	return opts.formatter(cmd).Success(Resolution{
		Domain:      opts.Domain,
		Recommended: rec,
		Pattern:     string(kind),
		Overridden:  overridden,
		FastPath:    pattern.FastPath(opts.Domain, kind),
	})
}
