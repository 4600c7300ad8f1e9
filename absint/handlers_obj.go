package absint

import (
	"fmt"

	"github.com/chazu/bcverify/classpath"
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/pkg/bytecode"
	"github.com/chazu/bcverify/types"
)

// resolved returns the cached resolution for in. A missing cache entry is a
// structural failure that stops the method; a cached failure is reported
// and returned with ok set.
func (vc *VerificationContext) resolved(in bytecode.Instruction) (classpath.Resolved, bool) {
	r, ok := vc.cache.At(in.Addr)
	if !ok {
		vc.report(in.Addr, diag.CacheMiss, "%s: id #%d was not resolved ahead of verification", in.Op, in.ID)
		vc.abort(fmt.Errorf("%s at %04X: %w", in.Op, in.Addr, ErrCacheMiss))
		return r, false
	}
	if !r.OK() {
		vc.report(in.Addr, cannotResolve(in.Op.IDKind()), "%s: %v", in.Op, r.Err)
	}
	return r, true
}

func cannotResolve(k bytecode.IDKind) diag.Kind {
	switch k {
	case bytecode.IDField:
		return diag.CannotResolveFieldId
	case bytecode.IDMethod:
		return diag.CannotResolveMethodId
	case bytecode.IDString:
		return diag.CannotResolveStringId
	default:
		return diag.CannotResolveClassId
	}
}

func (vc *VerificationContext) descType(d classpath.TypeDesc) types.Type {
	return vc.ts.Normalize(d.Type())
}

func (vc *VerificationContext) checkClassAccess(in bytecode.Instruction, c *classpath.Class) {
	if !vc.v.plugin.CheckClassAccess(vc.method.Owner, c) {
		vc.report(in.Addr, diag.InaccessibleClass, "%s: class %s is not accessible from %s", in.Op, c.Name(), vc.method.Owner.Name())
	}
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

func (vc *VerificationContext) loadString(in bytecode.Instruction) bool {
	r, ok := vc.resolved(in)
	if !ok {
		return false
	}
	t := types.Object.Type()
	if r.OK() && vc.v.stringClass != nil {
		t = vc.v.stringClass.Type()
	}
	return vc.define(in, Acc, t)
}

func (vc *VerificationContext) loadType(in bytecode.Instruction) bool {
	r, ok := vc.resolved(in)
	if !ok {
		return false
	}
	if r.OK() {
		vc.checkClassAccess(in, r.Class)
	}
	return vc.define(in, Acc, types.ClassClass.Type())
}

// ---------------------------------------------------------------------------
// Objects and fields
// ---------------------------------------------------------------------------

func (vc *VerificationContext) newObject(in bytecode.Instruction) bool {
	r, ok := vc.resolved(in)
	if !ok {
		return false
	}
	if !r.OK() {
		return vc.define(in, in.Reg(0), types.Object.Type())
	}
	c := r.Class
	vc.checkClassAccess(in, c)
	if c.IsAbstract() || c.IsArray() {
		vc.report(in.Addr, diag.AbstractInstantiation, "newobj: cannot instantiate %s", c.Name())
		return false
	}
	return vc.define(in, in.Reg(0), c.Type())
}

// field resolves the field of in and checks its kind and width.
func (vc *VerificationContext) field(in bytecode.Instruction, static bool, w width) (*classpath.Field, types.Type, bool) {
	r, ok := vc.resolved(in)
	if !ok || !r.OK() {
		return nil, w.Type(), ok
	}
	f := r.Field
	if !vc.v.plugin.CheckFieldAccess(vc.method.Owner, f) {
		vc.report(in.Addr, diag.InaccessibleField, "%s: field %s is not accessible from %s", in.Op, f.FullName(), vc.method.Owner.Name())
	}
	if f.Static != static {
		what := "an instance"
		if f.Static {
			what = "a static"
		}
		vc.report(in.Addr, diag.BadStaticFieldUse, "%s: %s is %s field", in.Op, f.FullName(), what)
		return nil, types.Type{}, false
	}
	t := vc.descType(f.Type)
	if !vc.ts.IsSubtype(t, w.Type()) {
		vc.report(in.Addr, diag.BadFieldType, "%s: field %s has type %s", in.Op, f.FullName(), f.Type)
		return nil, types.Type{}, false
	}
	return f, t, true
}

// object checks the object register of an instance field access.
func (vc *VerificationContext) object(in bytecode.Instruction, f *classpath.Field) bool {
	want := types.Reference.Type()
	if f != nil {
		want = f.Owner.Type()
	}
	_, ok := vc.objectReg(in, in.Reg(0), want)
	return ok
}

func (vc *VerificationContext) loadField(in bytecode.Instruction, w width) bool {
	f, t, ok := vc.field(in, false, w)
	if !ok || !vc.object(in, f) {
		return false
	}
	return vc.define(in, Acc, t)
}

func (vc *VerificationContext) storeField(in bytecode.Instruction, w width) bool {
	f, t, ok := vc.field(in, false, w)
	if !ok || !vc.object(in, f) {
		return false
	}
	_, ok = vc.regOf(in, Acc, t)
	return ok
}

func (vc *VerificationContext) loadStatic(in bytecode.Instruction, w width) bool {
	_, t, ok := vc.field(in, true, w)
	if !ok {
		return false
	}
	return vc.define(in, Acc, t)
}

func (vc *VerificationContext) storeStatic(in bytecode.Instruction, w width) bool {
	_, t, ok := vc.field(in, true, w)
	if !ok {
		return false
	}
	_, ok = vc.regOf(in, Acc, t)
	return ok
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

func (vc *VerificationContext) newArray(in bytecode.Instruction) bool {
	if _, ok := vc.regOf(in, in.Reg(1), types.Integral32.Type()); !ok {
		return false
	}
	r, ok := vc.resolved(in)
	if !ok {
		return false
	}
	if !r.OK() {
		return vc.define(in, in.Reg(0), types.Array.Type())
	}
	if !r.Class.IsArray() {
		vc.report(in.Addr, diag.BadArrayElementType, "newarr: %s is not an array class", r.Class.Name())
		return false
	}
	vc.checkClassAccess(in, r.Class)
	return vc.define(in, in.Reg(0), r.Class.Type())
}

// element returns the element type of the array held in r. Arrays of
// unknown class yield the width's type.
func (vc *VerificationContext) element(in bytecode.Instruction, r int, w width) (types.Type, bool) {
	v, ok := vc.objectReg(in, r, types.Array.Type())
	if !ok {
		return types.Type{}, false
	}
	c, isClass := v.Type.Class().(*classpath.Class)
	if !v.Type.IsClass() || !isClass || !c.IsArray() {
		return w.Type(), true
	}
	t := vc.descType(c.ElementType())
	if !vc.ts.IsSubtype(t, w.Type()) {
		vc.report(in.Addr, diag.BadArrayElementType, "%s: %s holds %s", in.Op, c.Name(), c.ElementType())
		return types.Type{}, false
	}
	return t, true
}

func (vc *VerificationContext) index(in bytecode.Instruction, r int) bool {
	v, ok := vc.reg(in, r)
	if !ok {
		return false
	}
	if !vc.ts.IsSubtype(v.Type, types.Integral32.Type()) {
		vc.report(in.Addr, diag.BadArrayIndexType, "%s: index %s is %s", in.Op, regName(r), vc.ts.String(v.Type))
		return false
	}
	return true
}

func (vc *VerificationContext) loadElement(in bytecode.Instruction, w width) bool {
	if !vc.index(in, Acc) {
		return false
	}
	t, ok := vc.element(in, in.Reg(0), w)
	if !ok {
		return false
	}
	return vc.define(in, Acc, t)
}

func (vc *VerificationContext) storeElement(in bytecode.Instruction, w width) bool {
	if !vc.index(in, in.Reg(1)) {
		return false
	}
	elem, ok := vc.element(in, in.Reg(0), w)
	if !ok {
		return false
	}
	acc, ok := vc.regOf(in, Acc, w.Type())
	if !ok {
		return false
	}
	if vc.ts.IsSubtype(acc.Type, elem) {
		return true
	}
	if w == widthObj {
		// Covariant arrays make the store a runtime check unless the types
		// cannot overlap.
		if vc.ts.Meet(acc.Type, elem).IsBot() {
			vc.report(in.Addr, diag.ImpossibleArrayCheckCast, "%s: %s can never be stored in an array of %s",
				in.Op, vc.ts.String(acc.Type), vc.ts.String(elem))
		}
		return true
	}
	vc.report(in.Addr, diag.BadAccumulatorType, "%s: storing %s into an array of %s", in.Op, vc.ts.String(acc.Type), vc.ts.String(elem))
	return false
}

// ---------------------------------------------------------------------------
// Casts
// ---------------------------------------------------------------------------

func bothArrays(a, b types.Type) bool {
	return a.IsClass() && b.IsClass() && a.Class().IsArray() && b.Class().IsArray()
}

func (vc *VerificationContext) checkCast(in bytecode.Instruction) bool {
	r, ok := vc.resolved(in)
	if !ok {
		return false
	}
	acc, ok := vc.regOf(in, Acc, types.Reference.Type())
	if !ok || !r.OK() {
		return ok
	}
	vc.checkClassAccess(in, r.Class)
	target := r.Class.Type()

	if vc.ts.IsSubtype(acc.Type, target) {
		vc.report(in.Addr, diag.RedundantCheckCast, "checkcast: %s is already %s", vc.ts.String(acc.Type), r.Class.Name())
		return true
	}
	narrowed := vc.ts.Meet(acc.Type, target)
	if narrowed.IsBot() {
		kind := diag.IncompatibleAccumulatorType
		if bothArrays(acc.Type, target) {
			kind = diag.ImpossibleArrayCheckCast
		}
		vc.report(in.Addr, kind, "checkcast: %s can never be %s", vc.ts.String(acc.Type), r.Class.Name())
	}
	if err := vc.exec.Current().SetAndPropagateToSameOrigin(Acc, acc.WithType(narrowed)); err != nil {
		return false
	}
	return true
}

func (vc *VerificationContext) isInstance(in bytecode.Instruction) bool {
	r, ok := vc.resolved(in)
	if !ok {
		return false
	}
	acc, ok := vc.regOf(in, Acc, types.Reference.Type())
	if !ok {
		return false
	}
	if r.OK() {
		vc.checkClassAccess(in, r.Class)
		impossible := vc.ts.Meet(acc.Type, r.Class.Type()).IsBot()
		// Null, and Bot left by an impossible cast, are already accounted for.
		if impossible && !acc.Type.Is(types.NullReference) && !acc.Type.IsBot() {
			vc.report(in.Addr, diag.ImpossibleInstanceOf, "isinstance: %s is never %s", vc.ts.String(acc.Type), r.Class.Name())
		}
	}
	return vc.define(in, Acc, types.U1.Type())
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// callee resolves the method of a call instruction. ok is false when the
// block must stop; m is nil when the method did not resolve.
func (vc *VerificationContext) callee(in bytecode.Instruction) (*classpath.Method, bool) {
	r, ok := vc.resolved(in)
	if !ok {
		return nil, false
	}
	if !r.OK() {
		vc.exec.Current().Undefine(Acc)
		return nil, true
	}
	m := r.Method
	if !vc.v.plugin.CheckMethodAccess(vc.method.Owner, m) {
		vc.report(in.Addr, diag.InaccessibleMethod, "%s: %s is not accessible from %s", in.Op, m.FullName(), vc.method.Owner.Name())
	}
	return m, true
}

func (vc *VerificationContext) call(in bytecode.Instruction, virtual bool) bool {
	m, ok := vc.callee(in)
	if !ok || m == nil {
		return ok
	}
	if virtual && m.Static {
		vc.report(in.Addr, diag.BadCallStaticMismatch, "%s: %s is static", in.Op, m.FullName())
		return false
	}
	sig := vc.signature(m)
	if !vc.args(in, m, in.Regs, sig.Params, !m.Static) {
		return false
	}
	if m.Return.Void {
		vc.exec.Current().Undefine(Acc)
		return true
	}
	return vc.define(in, Acc, sig.Return)
}

func (vc *VerificationContext) initObject(in bytecode.Instruction) bool {
	m, ok := vc.callee(in)
	if !ok || m == nil {
		return ok
	}
	if m.Static || !vc.v.plugin.IsConstructorName(m.Name) {
		vc.report(in.Addr, diag.BadCallStaticMismatch, "initobj: %s is not a constructor", m.FullName())
		return false
	}
	if m.Owner.IsAbstract() {
		vc.report(in.Addr, diag.AbstractInstantiation, "initobj: cannot instantiate %s", m.Owner.Name())
		return false
	}
	sig := vc.signature(m)
	if !vc.args(in, m, in.Regs, sig.Params[1:], false) {
		return false
	}
	return vc.define(in, Acc, m.Owner.Type())
}

// args checks actual argument registers against formal types. With
// receiver set, the first argument is dereferenced.
func (vc *VerificationContext) args(in bytecode.Instruction, m *classpath.Method, regs []int, formals []types.Type, receiver bool) bool {
	if vc.v.plugin.IsCallExempt(m) {
		return true
	}
	if len(regs) != len(formals) {
		vc.report(in.Addr, diag.BadCallWrongArity, "%s: %s takes %d arguments, got %d", in.Op, m.FullName(), len(formals), len(regs))
		return false
	}
	for i, r := range regs {
		var (
			v  AbstractTypedValue
			ok bool
		)
		if receiver && i == 0 {
			v, ok = vc.objectReg(in, r, types.Reference.Type())
		} else {
			v, ok = vc.reg(in, r)
		}
		if !ok || !vc.checkArg(in, m, i, v, formals[i]) {
			return false
		}
	}
	return true
}

func (vc *VerificationContext) checkArg(in bytecode.Instruction, m *classpath.Method, i int, actual AbstractTypedValue, formal types.Type) bool {
	switch {
	case formal.IsBot():
		vc.report(in.Addr, diag.BadCallFormalIsBot, "%s: parameter %d of %s has no valid type", in.Op, i, m.FullName())
		return false
	case formal.IsTop():
		vc.report(in.Addr, diag.BadCallFormalIsTop, "%s: parameter %d of %s accepts anything", in.Op, i, m.FullName())
		return true
	}

	a := actual.Type
	if vc.ts.IsSubtype(a, formal) {
		return true
	}
	if a.IsBuiltin() && formal.IsBuiltin() && vc.ts.IsPrimitive(a) && vc.ts.IsPrimitive(formal) &&
		vc.v.plugin.CoercionAllowed(a.Builtin(), formal.Builtin()) {
		return true
	}

	wrongSubclass := vc.ts.IsReference(a) && vc.ts.IsReference(formal) && !vc.ts.Meet(a, formal).IsBot()
	sev := vc.emit(in.Addr, diag.BadCallIncompatibleParameter, vc.severity(diag.BadCallIncompatibleParameter, wrongSubclass),
		"%s: argument %d of %s is %s, want %s", in.Op, i, m.FullName(), vc.ts.String(a), vc.ts.String(formal))
	return sev != diag.SeverityError
}
