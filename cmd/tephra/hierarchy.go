package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tephra/internal/atom"
	"tephra/internal/codex"
)

func newHierarchyCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "hierarchy [paths...]",
		Short: "Print populated class hierarchies",
		Long: `Hierarchy populates the stubs under paths and prints every class-like with
its ancestors and where each of its methods is declared.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			paths := args
			if len(paths) == 0 {
				paths = cfg.Stubs.Paths
			}
			if len(paths) == 0 {
				return fmt.Errorf("no stub paths given")
			}
			colored, err := useColor(cmd, cfg)
			if err != nil {
				return err
			}
			cb, err := loadCodebase(cmd.Context(), cmd.ErrOrStderr(), paths)
			if err != nil {
				return err
			}

			keys := cb.SortedClassKeys()
			if class != "" {
				meta := cb.ClassLike(cb.Interner.Intern(class))
				if meta == nil {
					return fmt.Errorf("class %s is not declared", class)
				}
				keys = []atom.Atom{meta.Key}
			}
			p := newTreePalette(colored)
			for i, key := range keys {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				printClass(cmd.OutOrStdout(), p, cb, cb.ClassLikes[key])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "print only this class-like")
	return cmd
}

type treePalette struct {
	kind, name, faint, bad *color.Color
}

func newTreePalette(enabled bool) treePalette {
	p := treePalette{
		kind:  color.New(color.FgMagenta),
		name:  color.New(color.Bold),
		faint: color.New(color.Faint),
		bad:   color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{p.kind, p.name, p.faint, p.bad} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func names(cb *codex.CodebaseMetadata, list []atom.Atom) string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, cb.Interner.String(a))
	}
	return strings.Join(out, ", ")
}

// displayNames turns a set of folded keys into sorted display names.
func displayNames(cb *codex.CodebaseMetadata, s atom.Set) string {
	out := make([]string, 0, s.Len())
	for a := range s.All() {
		if meta := cb.ClassLike(a); meta != nil {
			out = append(out, cb.Interner.String(meta.Name))
			continue
		}
		out = append(out, cb.Interner.String(a))
	}
	slices.Sort(out)
	return strings.Join(out, ", ")
}

func printClass(w io.Writer, p treePalette, cb *codex.CodebaseMetadata, meta *codex.ClassLikeMetadata) {
	in := cb.Interner
	header := p.kind.Sprint(meta.Kind.String()) + " " + p.name.Sprint(in.String(meta.Name))
	if meta.DirectParentClass != atom.Empty {
		header += " extends " + in.String(meta.DirectParentClass)
	}
	if len(meta.DirectParentInterfaces) > 0 {
		verb := " implements "
		if meta.IsInterface() {
			verb = " extends "
		}
		header += verb + names(cb, meta.DirectParentInterfaces)
	}
	if len(meta.UsedTraits) > 0 {
		header += " uses " + names(cb, meta.UsedTraits)
	}
	state := p.faint.Sprintf("[%s]", meta.State)
	if meta.State == codex.Invalid {
		state = p.bad.Sprintf("[%s]", meta.State)
	}
	fmt.Fprintf(w, "%s %s\n", header, state)

	if meta.AllParentClasses.Len() > 0 {
		fmt.Fprintf(w, "  parents:    %s\n", displayNames(cb, meta.AllParentClasses))
	}
	if meta.AllParentInterfaces.Len() > 0 {
		fmt.Fprintf(w, "  interfaces: %s\n", displayNames(cb, meta.AllParentInterfaces))
	}
	if meta.AllUsedTraits.Len() > 0 {
		fmt.Fprintf(w, "  traits:     %s\n", displayNames(cb, meta.AllUsedTraits))
	}
	if len(meta.InvalidDependencies) > 0 {
		fmt.Fprintf(w, "  %s %s\n", p.bad.Sprint("missing:"), names(cb, meta.InvalidDependencies))
	}

	methods := slices.SortedFunc(maps.Keys(meta.DeclaringMethodIDs), func(a, b atom.Atom) int {
		return strings.Compare(in.String(a), in.String(b))
	})
	if len(methods) == 0 {
		return
	}
	fmt.Fprintln(w, "  methods:")
	for _, m := range methods {
		id := meta.DeclaringMethodIDs[m]
		fn := cb.MethodByID(id)
		name := in.String(m)
		if fn != nil {
			name = in.String(fn.Name)
		}
		if id.Class == meta.Key {
			fmt.Fprintf(w, "    %s\n", name)
			continue
		}
		owner := in.String(id.Class)
		if decl := cb.ClassLike(id.Class); decl != nil {
			owner = in.String(decl.Name)
		}
		fmt.Fprintf(w, "    %s %s\n", name, p.faint.Sprint("<- "+owner))
	}
}
