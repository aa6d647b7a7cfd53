package scan

import (
	"maps"
	"slices"
	"strings"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/docblock"
	"tephra/internal/syntax"
	"tephra/internal/ttype"
)

func (fs *fileScanner) class(d *syntax.ClassDecl) {
	name := trimName(d.Name)
	kind, ok := codex.ParseClassKind(d.Kind)
	if !ok {
		fs.sum.Skipped++
		fs.report(diag.InvalidStub, d.Pos(), len(d.Name), "unknown class kind %q of %s", d.Kind, name)
		return
	}
	meta := codex.NewClassLike(fs.in.Intern(name), fs.in.InternLower(name), kind)
	meta.Location = fs.loc(d.Pos())
	if _, dup := fs.cb.ClassLikes[meta.Key]; dup {
		fs.sum.Skipped++
		fs.report(diag.DuplicateSymbol, d.Pos(), len(d.Name), "class %s is already declared", name)
		return
	}

	fs.classFlags(meta, d)
	fs.relations(meta, d)

	scope := &docblock.Scope{Aliases: map[string]ttype.TAlias{}}
	fs.aliases(meta, d, scope)
	meta.TemplateTypes = fs.templates(d.Templates, meta.Key, scope, d.Pos())
	for _, alias := range slices.Sorted(maps.Keys(d.TypeAliases)) {
		u, _ := fs.typeOf(d.TypeAliases[alias], scope, d.Pos())
		meta.TypeAliases[fs.in.Intern(alias)] = u
	}
	fs.extendedOffsets(meta, d.ExtendsParams, scope, d)
	fs.extendedOffsets(meta, d.ImplementsParams, scope, d)

	if kind == codex.KindEnum {
		fs.enum(meta, d, scope)
	}
	fs.classConstants(meta, d, scope)
	fs.properties(meta, d, scope)
	fs.methods(meta, d, scope)

	fs.cb.AddClassLike(meta)
	fs.sum.Classes++
}

func (fs *fileScanner) classFlags(meta *codex.ClassLikeMetadata, d *syntax.ClassDecl) {
	if d.Abstract || meta.IsInterface() {
		meta.Flags |= codex.FlagAbstract
	}
	// enums can not be extended
	if d.Final || meta.IsEnum() {
		meta.Flags |= codex.FlagFinal
	}
	if d.Readonly {
		meta.Flags |= codex.FlagReadonly
	}
	if d.ConsistentConstructor {
		meta.Flags |= codex.FlagConsistentConstructor
	}
	if d.ConsistentTemplates {
		meta.Flags |= codex.FlagConsistentTemplates
	}
}

// relations fills the direct relation lists. The meaning of extends depends
// on the kind: interfaces extend interfaces, classes extend one class.
func (fs *fileScanner) relations(meta *codex.ClassLikeMetadata, d *syntax.ClassDecl) {
	extends := fs.names(d.Extends)
	implements := fs.names(d.Implements)
	switch meta.Kind {
	case codex.KindInterface:
		meta.DirectParentInterfaces = extends
		if len(implements) > 0 {
			fs.report(diag.InvalidStub, d.Pos(), len(d.Name), "interface %s can not implement interfaces, use extends", d.Name)
		}
	case codex.KindClass:
		if len(extends) > 1 {
			fs.report(diag.InvalidStub, d.Pos(), len(d.Name), "class %s extends more than one class", d.Name)
		}
		if len(extends) > 0 {
			meta.DirectParentClass = extends[0]
		}
		meta.DirectParentInterfaces = implements
	default:
		if len(extends) > 0 {
			fs.report(diag.InvalidStub, d.Pos(), len(d.Name), "%s %s can not extend", meta.Kind, d.Name)
		}
		if meta.IsEnum() {
			meta.DirectParentInterfaces = implements
		} else if len(implements) > 0 {
			fs.report(diag.InvalidStub, d.Pos(), len(d.Name), "trait %s can not implement interfaces", d.Name)
		}
	}

	meta.UsedTraits = fs.names(d.Uses)
	for _, alias := range slices.Sorted(maps.Keys(d.TraitAliases)) {
		meta.TraitAliasMap[fs.in.InternLower(alias)] = fs.in.InternLower(d.TraitAliases[alias])
	}
	meta.RequireExtends = fs.names(d.RequireExtends)
	meta.RequireImplements = fs.names(d.RequireImplements)
	meta.Mixins = fs.names(d.Mixins)
	meta.PermittedInheritors = fs.names(d.Inheritors)
}

// aliases makes own and imported type aliases visible in scope. Own aliases
// are registered first so they may refer to each other.
func (fs *fileScanner) aliases(meta *codex.ClassLikeMetadata, d *syntax.ClassDecl, scope *docblock.Scope) {
	for alias := range d.TypeAliases {
		scope.Aliases[alias] = ttype.TAlias{Class: meta.Name, Name: fs.in.Intern(alias)}
	}
	for _, imp := range d.ImportTypes {
		from := trimName(imp.From)
		if from == "" || imp.Name == "" {
			fs.report(diag.InvalidStub, d.Pos(), len(d.Name), "import-types entry of %s needs from and name", d.Name)
			continue
		}
		local := imp.As
		if local == "" {
			local = imp.Name
		}
		meta.ImportedTypeAliases[fs.in.Intern(local)] = codex.ImportedAlias{
			From: fs.in.InternLower(from),
			Name: fs.in.Intern(imp.Name),
		}
		scope.Aliases[local] = ttype.TAlias{Class: fs.in.Intern(from), Name: fs.in.Intern(imp.Name)}
	}
}

func (fs *fileScanner) extendedOffsets(meta *codex.ClassLikeMetadata, params map[string][]string, scope *docblock.Scope, d *syntax.ClassDecl) {
	for _, parent := range slices.Sorted(maps.Keys(params)) {
		args := params[parent]
		out := make([]ttype.TUnion, len(args))
		for i, text := range args {
			u, ok := fs.typeOf(text, scope, d.Pos())
			if !ok {
				u = ttype.Mixed()
			}
			out[i] = u
		}
		meta.TemplateExtendedOffsets[fs.in.InternLower(trimName(parent))] = out
	}
}

func (fs *fileScanner) enum(meta *codex.ClassLikeMetadata, d *syntax.ClassDecl, scope *docblock.Scope) {
	if u, ok := fs.typeOf(d.EnumBacking, scope, d.Pos()); ok {
		meta.EnumBackingType = u
	}
	for _, c := range d.Cases {
		name := fs.in.Intern(c.Name)
		if _, dup := meta.EnumCases[name]; dup {
			fs.sum.Skipped++
			fs.report(diag.DuplicateSymbol, c.Pos(), len(c.Name), "case %s::%s is already declared", d.Name, c.Name)
			continue
		}
		ec := &codex.EnumCaseMetadata{Name: name, Location: fs.loc(c.Pos())}
		if u, ok := ValueType(fs.in, c.Value.Expr); ok {
			ec.Value = u
		}
		meta.EnumCases[name] = ec
		meta.CaseOrder = append(meta.CaseOrder, name)
	}
}

func (fs *fileScanner) classConstants(meta *codex.ClassLikeMetadata, d *syntax.ClassDecl, scope *docblock.Scope) {
	for _, c := range d.Constants {
		name := fs.in.Intern(c.Name)
		_, dup := meta.Constants[name]
		if _, isCase := meta.EnumCases[name]; dup || isCase {
			fs.sum.Skipped++
			fs.report(diag.DuplicateSymbol, c.Pos(), len(c.Name), "constant %s::%s is already declared", d.Name, c.Name)
			continue
		}
		vis, ok := codex.ParseVisibility(c.Visibility)
		if !ok {
			fs.report(diag.InvalidStub, c.Pos(), len(c.Name), "unknown visibility %q", c.Visibility)
		}
		cm := &codex.ClassConstantMetadata{
			Name:           name,
			DeclaringClass: meta.Key,
			Visibility:     vis,
			Final:          c.Final,
			Location:       fs.loc(c.Pos()),
		}
		cm.Type, _ = fs.typeOf(c.Type, scope, c.Pos())
		if u, ok := ValueType(fs.in, c.Value.Expr); ok {
			cm.Inferred = u
		}
		if len(cm.Type.Types) == 0 && len(cm.Inferred.Types) == 0 {
			cm.Type = ttype.Mixed()
		}
		meta.Constants[name] = cm
	}
}

func (fs *fileScanner) properties(meta *codex.ClassLikeMetadata, d *syntax.ClassDecl, scope *docblock.Scope) {
	for _, p := range d.Properties {
		name := fs.in.Intern(strings.TrimPrefix(p.Name, "$"))
		if _, dup := meta.Properties[name]; dup {
			fs.sum.Skipped++
			fs.report(diag.DuplicateSymbol, p.Pos(), len(p.Name), "property %s::$%s is already declared", d.Name, fs.in.String(name))
			continue
		}
		vis, ok := codex.ParseVisibility(p.Visibility)
		if !ok {
			fs.report(diag.InvalidStub, p.Pos(), len(p.Name), "unknown visibility %q", p.Visibility)
		}
		pm := &codex.PropertyMetadata{
			Name:           name,
			DeclaringClass: meta.Key,
			HasDefault:     p.Default.Present(),
			Visibility:     vis,
			Static:         p.Static,
			Readonly:       p.Readonly || meta.Flags.Has(codex.FlagReadonly),
			Location:       fs.loc(p.Pos()),
		}
		pm.Type, pm.HasType = fs.typeOf(p.Type, scope, p.Pos())
		if !pm.HasType {
			pm.Type = ttype.Mixed()
		}
		meta.Properties[name] = pm
	}
}

func (fs *fileScanner) methods(meta *codex.ClassLikeMetadata, d *syntax.ClassDecl, classScope *docblock.Scope) {
	for _, m := range d.Methods {
		key := fs.in.InternLower(m.Name)
		if _, dup := meta.Methods[key]; dup {
			fs.sum.Skipped++
			fs.report(diag.DuplicateSymbol, m.Pos(), len(m.Name), "method %s::%s is already declared", d.Name, m.Name)
			continue
		}
		vis, ok := codex.ParseVisibility(m.Visibility)
		if !ok {
			fs.report(diag.InvalidStub, m.Pos(), len(m.Name), "unknown visibility %q", m.Visibility)
		}
		fn := &codex.FunctionLikeMetadata{
			Name:          fs.in.Intern(m.Name),
			Key:           key,
			DefiningClass: meta.Key,
			Visibility:    vis,
			Location:      fs.loc(m.Pos()),
		}
		if m.Static {
			fn.Flags |= codex.FnStatic
		}
		if m.Abstract || meta.IsInterface() {
			fn.Flags |= codex.FnAbstract
		}
		if m.Final {
			fn.Flags |= codex.FnFinal
		}

		// method templates shadow class templates
		scope := &docblock.Scope{
			Templates: slices.Clone(classScope.Templates),
			Aliases:   classScope.Aliases,
		}
		fn.TemplateTypes = fs.templates(m.Templates, codex.FunctionEntity(fs.in, meta.Key, key), scope, m.Pos())
		fn.Params = fs.params(m.Params, scope)
		fn.ReturnType, fn.HasReturnType = fs.typeOf(m.Returns, scope, m.Pos())
		meta.Methods[key] = fn
	}
}

// Names lists the folded keys of the top-level symbols a stub declares, in
// declaration order.
func Names(in *atom.Interner, stub *syntax.File) []atom.Atom {
	out := make([]atom.Atom, 0, len(stub.Constants)+len(stub.Functions)+len(stub.Classes))
	for _, c := range stub.Constants {
		out = append(out, in.Intern(trimName(c.Name)))
	}
	for _, f := range stub.Functions {
		out = append(out, in.InternLower(trimName(f.Name)))
	}
	for _, c := range stub.Classes {
		out = append(out, in.InternLower(trimName(c.Name)))
	}
	return out
}
