package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/docblock"
	"tephra/internal/driver"
	"tephra/internal/ttype"
	"tephra/internal/ttype/combiner"
	"tephra/internal/ttype/comparator"
	"tephra/internal/ttype/expander"
)

// loadCodebase returns a populated codebase of the stubs under paths, or an
// empty one without paths. Stub diagnostics are printed to errOut.
func loadCodebase(ctx context.Context, errOut io.Writer, paths []string) (*codex.CodebaseMetadata, error) {
	if len(paths) == 0 {
		return codex.NewCodebase(atom.NewInterner()), nil
	}
	res, err := driver.NewSession(driver.Options{}).Run(ctx, paths)
	if err != nil {
		return nil, err
	}
	if res.Bag.HasErrors() {
		fmt.Fprint(errOut, diag.FormatShort(res.Bag.Items(), res.FileSet))
		fmt.Fprintln(errOut)
	}
	return res.Codebase, nil
}

// parseTypes reads every argument as a docblock type expanded against cb.
func parseTypes(cb *codex.CodebaseMetadata, args []string) ([]ttype.TUnion, error) {
	out := make([]ttype.TUnion, 0, len(args))
	for _, text := range args {
		u, err := docblock.Parse(cb.Interner, text, nil)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", text, err)
		}
		out = append(out, expander.Expanded(cb, u, &expander.TypeExpansionOptions{
			EvaluateClassConstants: true,
			ExpandDerived:          true,
		}))
	}
	return out, nil
}

func newCombineCmd() *cobra.Command {
	var (
		allowMixed bool
		stubs      []string
	)
	cmd := &cobra.Command{
		Use:   "combine <type>...",
		Short: "Combine types into their simplest union",
		Example: `  tephra combine 'int' 'string' 'null'
  tephra combine 'list<int>' 'list<string>'
  tephra combine --stubs stubs/ 'Foo' 'Bar'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cb, err := loadCodebase(cmd.Context(), cmd.ErrOrStderr(), stubs)
			if err != nil {
				return err
			}
			us, err := parseTypes(cb, args)
			if err != nil {
				return err
			}
			var atomics []ttype.Atomic
			for _, u := range us {
				atomics = append(atomics, u.Types...)
			}
			combined := ttype.Union(combiner.Combine(atomics, cb, allowMixed)...)
			fmt.Fprintln(cmd.OutOrStdout(), ttype.Format(cb.Interner, combined))
			return nil
		},
	}
	cmd.Flags().BoolVar(&allowMixed, "allow-mixed-union", false, "keep mixed next to other types instead of absorbing them")
	cmd.Flags().StringSliceVar(&stubs, "stubs", nil, "stub paths that declare the classes used")
	return cmd
}

func newContainsCmd() *cobra.Command {
	var stubs []string
	cmd := &cobra.Command{
		Use:   "contains <input> <container>",
		Short: "Check whether every value of input fits container",
		Long: `Contains prints true or false, followed by the coercion flags the comparison
observed. It exits with status 1 when the input is not contained.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cb, err := loadCodebase(cmd.Context(), cmd.ErrOrStderr(), stubs)
			if err != nil {
				return err
			}
			us, err := parseTypes(cb, args)
			if err != nil {
				return err
			}
			var res comparator.ComparisonResult
			ok := comparator.UnionIsContainedBy(cb, us[0], us[1], false, false, &res)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ok)
			if flags := coercionFlags(&res); len(flags) > 0 {
				fmt.Fprintln(out, strings.Join(flags, " "))
			}
			if !ok {
				return exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&stubs, "stubs", nil, "stub paths that declare the classes used")
	return cmd
}

func coercionFlags(res *comparator.ComparisonResult) []string {
	var out []string
	if res.TypeCoerced.IsTrue() {
		out = append(out, "coerced")
	}
	if res.TypeCoercedFromNestedMixed.IsTrue() {
		out = append(out, "coerced-from-nested-mixed")
	}
	if res.TypeCoercedFromAsMixed.IsTrue() {
		out = append(out, "coerced-from-as-mixed")
	}
	if res.TypeCoercedToLiteral.IsTrue() {
		out = append(out, "coerced-to-literal")
	}
	return out
}
