package absint

import (
	"testing"

	"github.com/chazu/bcverify/diag"
)

type handlerCase struct {
	name    string
	params  []string
	returns string
	vregs   int
	code    string
	opts    Options
	status  diag.Status
	kinds   []diag.Kind
}

func runHandlerCases(t *testing.T, cases []handlerCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.opts, testMethod(tc.params, tc.returns, tc.vregs, tc.code))
			res := f.v.Verify(f.method(t, "Test.m"))
			if res.Status != tc.status {
				t.Errorf("status = %s, want %s; messages:", res.Status, tc.status)
				for _, m := range f.sink.Messages() {
					t.Logf("  %s", m)
				}
			}
			for _, k := range tc.kinds {
				if !f.sink.Has(k) {
					t.Errorf("missing %s; got %v", k, f.sink.Kinds())
				}
			}
			if tc.status == diag.OK && res.Warnings != 0 {
				t.Errorf("%d warnings on a clean method", res.Warnings)
			}
		})
	}
}

func TestPrimitiveHandlers(t *testing.T) {
	runHandlerCases(t, []handlerCase{
		{
			name: "i32 arithmetic", returns: "i32", vregs: 1,
			code:   "movi v0, 2\nldai 3\nmul2 v0\nreturn",
			status: diag.OK,
		},
		{
			name: "i64 arithmetic", returns: "i64", vregs: 1,
			code:   "movi.64 v0, 2\nldai.64 3\nadd2.64 v0\nreturn.64",
			status: diag.OK,
		},
		{
			name: "compare yields i32", returns: "i32", vregs: 1,
			code:   "movi.64 v0, 1\nldai.64 2\ncmp.64 v0\nreturn",
			status: diag.OK,
		},
		{
			name: "inc on argument", params: []string{"i32"}, returns: "i32",
			code:   "inc v0, 1\nlda v0\nreturn",
			status: diag.OK,
		},
		{
			name: "undefined register", returns: "i32", vregs: 1,
			code:   "lda v0\nreturn",
			status: diag.Warning, kinds: []diag.Kind{diag.UndefinedRegister},
		},
		{
			name: "register beyond frame", returns: "i32", vregs: 1,
			code:   "lda v5\nreturn",
			status: diag.Error, kinds: []diag.Kind{diag.UndefinedRegister},
		},
		{
			name: "write beyond frame", vregs: 1,
			code:   "movi v9, 1\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.UndefinedRegister},
		},
		{
			name: "write beyond frame configured as warning", vregs: 1,
			code:   "movi v9, 1\nreturn.void",
			opts:   Options{Severities: diag.Severities{diag.UndefinedRegister: diag.SeverityWarning}},
			status: diag.Warning, kinds: []diag.Kind{diag.UndefinedRegister},
		},
		{
			name: "wide operand to narrow op", returns: "i32", vregs: 1,
			code:   "movi.64 v0, 1\nldai 1\nadd2 v0\nreturn",
			status: diag.Error, kinds: []diag.Kind{diag.BadRegisterType},
		},
		{
			name: "wide accumulator stored narrow", vregs: 1,
			code:   "ldai.64 1\nsta v0\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.BadAccumulatorType},
		},
		{
			name: "conditional jump on reference", vregs: 0,
			code:   "lda.str \"s\"\njeqz 3\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.BadAccumulatorType},
		},
		{
			name: "falls off the end", vregs: 1,
			code:   "ldai 1\nsta v0",
			status: diag.Error, kinds: []diag.Kind{diag.FallsOffEnd},
		},
		{
			name: "dead code after return",
			code:   "return.void\nldai 1\nreturn.void",
			status: diag.Warning, kinds: []diag.Kind{diag.DeadCode},
		},
	})
}

func TestReturnHandlers(t *testing.T) {
	runHandlerCases(t, []handlerCase{
		{
			name: "return.void from i32 method", returns: "i32",
			code:   "return.void",
			status: diag.Error, kinds: []diag.Kind{diag.BadReturnInstructionType},
		},
		{
			name: "narrow return from i64 method", returns: "i64",
			code:   "ldai 1\nreturn",
			status: diag.Error, kinds: []diag.Kind{diag.BadReturnInstructionType},
		},
		{
			name: "wrong class returned", returns: "Box", vregs: 1,
			code:   "newobj v0, @Cat\nlda.obj v0\nreturn.obj",
			status: diag.Error, kinds: []diag.Kind{diag.BadReturnType},
		},
		{
			name: "string returned as object", returns: "Object",
			code:   "lda.str \"s\"\nreturn.obj",
			status: diag.OK,
		},
		{
			name: "throw exception", vregs: 1,
			code:   "newobj v0, @MyError\nthrow v0",
			status: diag.OK,
		},
		{
			name: "throw non-throwable", vregs: 1,
			code:   "newobj v0, @Box\nthrow v0",
			status: diag.Error, kinds: []diag.Kind{diag.ThrowNonThrowable},
		},
		{
			name: "throw null", vregs: 1,
			code:   "mov.null v0\nthrow v0",
			status: diag.Warning, kinds: []diag.Kind{diag.AlwaysNpe},
		},
	})
}

func TestObjectHandlers(t *testing.T) {
	runHandlerCases(t, []handlerCase{
		{
			name: "instance field round trip", returns: "i32", vregs: 1,
			code:   "newobj v0, @Point\nldai 5\nstobj v0, @Point.x\nldobj v0, @Point.x\nreturn",
			status: diag.OK,
		},
		{
			name: "static field", returns: "i32",
			code:   "ldstatic @Box.count\nreturn",
			status: diag.OK,
		},
		{
			name: "instance field used statically", returns: "i32",
			code:   "ldstatic @Point.x\nreturn",
			status: diag.Error, kinds: []diag.Kind{diag.BadStaticFieldUse},
		},
		{
			name: "field width mismatch", returns: "i64",
			code:   "ldstatic.64 @Box.count\nreturn.64",
			status: diag.Error, kinds: []diag.Kind{diag.BadFieldType},
		},
		{
			name: "unknown field", vregs: 1,
			code:   "ldstatic @Box.missing\nsta v0\nreturn.void",
			status: diag.Warning, kinds: []diag.Kind{diag.CannotResolveFieldId},
		},
		{
			name: "private field", vregs: 1,
			code:   "ldstatic @Secret.hidden\nsta v0\nreturn.void",
			status: diag.Warning, kinds: []diag.Kind{diag.InaccessibleField},
		},
		{
			name: "field of null", vregs: 1,
			code:   "mov.null v0\nldobj v0, @Point.x\nreturn.void",
			status: diag.Warning, kinds: []diag.Kind{diag.AlwaysNpe},
		},
		{
			name: "abstract class", vregs: 1,
			code:   "newobj v0, @Shape\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.AbstractInstantiation},
		},
		{
			name: "unknown class", vregs: 1,
			code:   "newobj v0, @Nowhere\nreturn.void",
			status: diag.Warning, kinds: []diag.Kind{diag.CannotResolveClassId},
		},
		{
			name: "private class", vregs: 1,
			code:   "newobj v0, @Hidden\nreturn.void",
			status: diag.Warning, kinds: []diag.Kind{diag.InaccessibleClass},
		},
		{
			name: "class literal", vregs: 1,
			code:   "lda.type @Box\nsta.obj v0\nreturn.void",
			status: diag.OK,
		},
		{
			name: "null branch narrows aliases", params: []string{"Box"},
			code:   "lda.obj v0\njnez.obj ok\nldobj.obj v0, @Box.item\nreturn.void\nok:\nreturn.void",
			status: diag.Warning, kinds: []diag.Kind{diag.AlwaysNpe},
		},
		{
			name: "non-null branch keeps type", params: []string{"Box"},
			code:   "lda.obj v0\njeqz.obj done\nldobj.obj v0, @Box.item\nreturn.void\ndone:\nreturn.void",
			status: diag.OK,
		},
	})
}

func TestArrayHandlers(t *testing.T) {
	runHandlerCases(t, []handlerCase{
		{
			name: "store and load element", returns: "i32", vregs: 2,
			code:   "movi v1, 4\nnewarr v0, v1, @i32[]\nldai 7\nstarr v0, v1\nldai 0\nldarr v0\nreturn",
			status: diag.OK,
		},
		{
			name: "length", returns: "i32", vregs: 2,
			code:   "movi v1, 4\nnewarr v0, v1, @Box[]\nlenarr v0\nreturn",
			status: diag.OK,
		},
		{
			name: "wide index", returns: "i32", vregs: 2,
			code:   "movi v1, 4\nnewarr v0, v1, @i32[]\nldai.64 0\nldarr v0\nreturn",
			status: diag.Error, kinds: []diag.Kind{diag.BadArrayIndexType},
		},
		{
			name: "non-array class", vregs: 2,
			code:   "movi v1, 4\nnewarr v0, v1, @Box\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.BadArrayElementType},
		},
		{
			name: "element width mismatch", returns: "i64", vregs: 2,
			code:   "movi v1, 4\nnewarr v0, v1, @i32[]\nldai 0\nldarr.64 v0\nreturn.64",
			status: diag.Error, kinds: []diag.Kind{diag.BadArrayElementType},
		},
		{
			name: "store that can never succeed", vregs: 2,
			code:   "movi v1, 1\nnewarr v0, v1, @Cat[]\nlda.str \"s\"\nstarr.obj v0, v1\nreturn.void",
			status: diag.Warning, kinds: []diag.Kind{diag.ImpossibleArrayCheckCast},
		},
	})
}

func TestCastHandlers(t *testing.T) {
	runHandlerCases(t, []handlerCase{
		{
			name: "redundant cast", vregs: 1,
			code:   "newobj v0, @Cat\nlda.obj v0\ncheckcast @Cat\nreturn.void",
			status: diag.OK, kinds: []diag.Kind{diag.RedundantCheckCast},
		},
		{
			name: "downcast", params: []string{"Object"}, returns: "Box",
			code:   "lda.obj v0\ncheckcast @Box\nreturn.obj",
			status: diag.OK,
		},
		{
			name: "cast of primitive", vregs: 0,
			code:   "ldai 1\ncheckcast @Box\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.BadAccumulatorType},
		},
		{
			name: "impossible instanceof",
			code:   "lda.str \"s\"\nisinstance @Cat\nreturn.void",
			status: diag.Warning, kinds: []diag.Kind{diag.ImpossibleInstanceOf},
		},
		{
			name: "instanceof of null",
			code:   "lda.null\nisinstance @Cat\nreturn.void",
			status: diag.OK,
		},
	})
}

func TestCallHandlers(t *testing.T) {
	runHandlerCases(t, []handlerCase{
		{
			name: "static call", vregs: 1,
			code:   "movi v0, 1\ncall @Lib.takesInt, v0\nreturn.void",
			status: diag.OK,
		},
		{
			name: "wrong arity", vregs: 1,
			code:   "movi v0, 1\ncall @Lib.takesInt, v0, v0\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.BadCallWrongArity},
		},
		{
			name: "unrelated class argument", vregs: 1,
			code:   "newobj v0, @Cat\ncall @Lib.takesBox, v0\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.BadCallIncompatibleParameter},
		},
		{
			name: "unsigned to signed coercion", vregs: 1,
			code:   "ldstatic @Box.ucount\nsta v0\ncall @Lib.takesInt, v0\nreturn.void",
			status: diag.OK,
		},
		{
			name: "superclass argument", vregs: 1,
			code:   "newobj v0, @Object\ncall @Lib.takesBox, v0\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.BadCallIncompatibleParameter},
		},
		{
			name: "superclass argument allowed", vregs: 1,
			code:   "newobj v0, @Object\ncall @Lib.takesBox, v0\nreturn.void",
			opts:   Options{AllowWrongSubclassing: true},
			status: diag.Warning, kinds: []diag.Kind{diag.BadCallIncompatibleParameter},
		},
		{
			name: "virtual call of static method", vregs: 1,
			code:   "movi v0, 1\ncall.virt @Lib.takesInt, v0\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.BadCallStaticMismatch},
		},
		{
			name: "virtual call", returns: "i32", vregs: 1,
			code:   "newobj v0, @Point\ncall.virt @Point.getX, v0\nreturn",
			status: diag.OK,
		},
		{
			name: "virtual call on null", returns: "i32", vregs: 1,
			code:   "mov.null v0\ncall.virt @Point.getX, v0\nreturn",
			status: diag.Warning, kinds: []diag.Kind{diag.AlwaysNpe},
		},
		{
			name: "unknown method", vregs: 1,
			code:   "movi v0, 1\ncall @Lib.nothing, v0\nreturn.void",
			status: diag.Warning, kinds: []diag.Kind{diag.CannotResolveMethodId},
		},
		{
			name: "result of void call", returns: "i32", vregs: 1,
			code:   "movi v0, 1\ncall @Lib.takesInt, v0\nreturn",
			status: diag.Warning, kinds: []diag.Kind{diag.UndefinedRegister},
		},
		{
			name: "constructor", returns: "Point", vregs: 1,
			code:   "movi v0, 1\ninitobj @Point.<init>, v0\nreturn.obj",
			status: diag.OK,
		},
		{
			name: "initobj of plain method", vregs: 1,
			code:   "newobj v0, @Point\ninitobj @Point.getX\nreturn.void",
			status: diag.Error, kinds: []diag.Kind{diag.BadCallStaticMismatch},
		},
	})
}
