package diag

import "fmt"

// Kind enumerates the messages the verifier can report.
type Kind uint8

const (
	UndefinedRegister Kind = iota
	BadRegisterType
	BadAccumulatorType
	IncompatibleAccumulatorType
	IncorrectJump
	InvalidOpcode
	InstructionOverrun
	FallsOffEnd
	CacheMiss
	CannotResolveClassId
	CannotResolveFieldId
	CannotResolveMethodId
	CannotResolveStringId
	AlwaysNpe
	AlwaysNpeAccumulator
	ImpossibleCheckCast
	ImpossibleInstanceOf
	ImpossibleArrayCheckCast
	RedundantCheckCast
	BadArrayElementType
	BadArrayIndexType
	BadCallWrongArity
	BadCallIncompatibleParameter
	BadCallFormalIsBot
	BadCallFormalIsTop
	BadCallStaticMismatch
	BadReturnType
	BadReturnInstructionType
	BadFieldType
	BadStaticFieldUse
	AbstractInstantiation
	InaccessibleClass
	InaccessibleField
	InaccessibleMethod
	ThrowNonThrowable
	DeadCode
	UnreachableCatch
	RegisterConflict

	numKinds
)

var kindInfo = [numKinds]struct {
	name string
	sev  Severity
}{
	UndefinedRegister:            {"UndefinedRegister", SeverityWarning},
	BadRegisterType:              {"BadRegisterType", SeverityError},
	BadAccumulatorType:           {"BadAccumulatorType", SeverityError},
	IncompatibleAccumulatorType:  {"IncompatibleAccumulatorType", SeverityWarning},
	IncorrectJump:                {"IncorrectJump", SeverityError},
	InvalidOpcode:                {"InvalidOpcode", SeverityError},
	InstructionOverrun:           {"InstructionOverrun", SeverityError},
	FallsOffEnd:                  {"FallsOffEnd", SeverityError},
	CacheMiss:                    {"CacheMiss", SeverityError},
	CannotResolveClassId:         {"CannotResolveClassId", SeverityWarning},
	CannotResolveFieldId:         {"CannotResolveFieldId", SeverityWarning},
	CannotResolveMethodId:        {"CannotResolveMethodId", SeverityWarning},
	CannotResolveStringId:        {"CannotResolveStringId", SeverityWarning},
	AlwaysNpe:                    {"AlwaysNpe", SeverityWarning},
	AlwaysNpeAccumulator:         {"AlwaysNpeAccumulator", SeverityWarning},
	ImpossibleCheckCast:          {"ImpossibleCheckCast", SeverityWarning},
	ImpossibleInstanceOf:         {"ImpossibleInstanceOf", SeverityWarning},
	ImpossibleArrayCheckCast:     {"ImpossibleArrayCheckCast", SeverityWarning},
	RedundantCheckCast:           {"RedundantCheckCast", SeverityHidden},
	BadArrayElementType:          {"BadArrayElementType", SeverityError},
	BadArrayIndexType:            {"BadArrayIndexType", SeverityError},
	BadCallWrongArity:            {"BadCallWrongArity", SeverityError},
	BadCallIncompatibleParameter: {"BadCallIncompatibleParameter", SeverityError},
	BadCallFormalIsBot:           {"BadCallFormalIsBot", SeverityError},
	BadCallFormalIsTop:           {"BadCallFormalIsTop", SeverityHidden},
	BadCallStaticMismatch:        {"BadCallStaticMismatch", SeverityError},
	BadReturnType:                {"BadReturnType", SeverityError},
	BadReturnInstructionType:     {"BadReturnInstructionType", SeverityError},
	BadFieldType:                 {"BadFieldType", SeverityError},
	BadStaticFieldUse:            {"BadStaticFieldUse", SeverityError},
	AbstractInstantiation:        {"AbstractInstantiation", SeverityError},
	InaccessibleClass:            {"InaccessibleClass", SeverityWarning},
	InaccessibleField:            {"InaccessibleField", SeverityWarning},
	InaccessibleMethod:           {"InaccessibleMethod", SeverityWarning},
	ThrowNonThrowable:            {"ThrowNonThrowable", SeverityError},
	DeadCode:                     {"DeadCode", SeverityWarning},
	UnreachableCatch:             {"UnreachableCatch", SeverityHidden},
	RegisterConflict:             {"RegisterConflict", SeverityHidden},
}

func (k Kind) String() string {
	if k < numKinds {
		return kindInfo[k].name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// DefaultSeverity returns the severity of k when nothing is configured.
func (k Kind) DefaultSeverity() Severity {
	if k < numKinds {
		return kindInfo[k].sev
	}
	return SeverityError
}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, bool) {
	for k := Kind(0); k < numKinds; k++ {
		if kindInfo[k].name == name {
			return k, true
		}
	}
	return 0, false
}

// AllKinds returns every kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, numKinds)
	for k := range out {
		out[k] = Kind(k)
	}
	return out
}

// Severities overrides the default severity of some kinds.
type Severities map[Kind]Severity

// Of returns the configured severity of k.
func (s Severities) Of(k Kind) Severity {
	if sev, ok := s[k]; ok {
		return sev
	}
	return k.DefaultSeverity()
}
