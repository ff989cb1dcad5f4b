package value

// Opcode is a single bytecode instruction tag. Operand widths
// are fixed per opcode: u16 for constant/local/upvalue/global/property
// indices and jump offsets, u8 for argument counts, and a variable-length
// (isLocal,index) pair run for CLOSURE sized by the Function's upvalue
// count.
type Opcode uint8

const ( //nolint:revive
	OpConstant Opcode = iota
	OpNil
	OpTrue
	OpFalse
	OpUnit
	OpUndefined
	OpPop

	OpGetLocal
	OpSetLocal
	OpGetUpvalue
	OpSetUpvalue
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpGetProperty
	OpSetProperty
	OpGetSuper

	OpEqual
	OpNot
	OpNegate

	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpCallInfix
	OpCallPostfix
	OpInvoke
	OpSuperInvoke
	OpReturn
	OpImplicitReturn

	OpClosure
	OpCloseUpvalue
	OpClass
	OpInherit
	OpMethod
	OpSign
	OpOverload

	OpSubscriptGet
	OpSubscriptSet
	OpMember
	OpSpread
	OpDestructure

	OpPrint
	OpExprStatement
	OpImport
	OpThrow
	OpSetTypeLocal
	OpSetTypeGlobal
)

// operandWidths maps each opcode to its operand's byte width: 0 (none), 1
// (u8 arg count), 2 (u16 index/offset), or -1 (variable-length, CLOSURE's
// upvalue descriptor run, sized by the target Function's UpvalueCount).
var operandWidths = map[Opcode]int{
	OpConstant:       2,
	OpNil:            0,
	OpTrue:           0,
	OpFalse:          0,
	OpUnit:           0,
	OpUndefined:      0,
	OpPop:            0,
	OpGetLocal:       2,
	OpSetLocal:       2,
	OpGetUpvalue:     2,
	OpSetUpvalue:     2,
	OpGetGlobal:      2,
	OpDefineGlobal:   2,
	OpSetGlobal:      2,
	OpGetProperty:    2,
	OpSetProperty:    2,
	OpGetSuper:       2,
	OpEqual:          0,
	OpNot:            0,
	OpNegate:         0,
	OpJump:           2,
	OpJumpIfFalse:    2,
	OpLoop:           2,
	OpCall:           1,
	OpCallInfix:      0,
	OpCallPostfix:    1,
	OpInvoke:         3, // u16 name constant + u8 arg count
	OpSuperInvoke:    3,
	OpReturn:         0,
	OpImplicitReturn: 0,
	OpClosure:        -1,
	OpCloseUpvalue:   0,
	OpClass:          2,
	OpInherit:        0,
	OpMethod:         2,
	OpSign:           0,
	OpOverload:       1,
	OpSubscriptGet:   0,
	OpSubscriptSet:   0,
	OpMember:         0,
	OpSpread:         0,
	OpDestructure:    0,
	OpPrint:          0,
	OpExprStatement:  0,
	OpImport:         0,
	OpThrow:          0,
	OpSetTypeLocal:   2,
	OpSetTypeGlobal:  2,
}

// OperandWidth returns the fixed operand width for op, or -1 for CLOSURE's
// variable-length upvalue descriptor run.
func OperandWidth(op Opcode) int { return operandWidths[op] }

var opcodeNames = map[Opcode]string{
	OpConstant:       "CONSTANT",
	OpNil:            "NIL",
	OpTrue:           "TRUE",
	OpFalse:          "FALSE",
	OpUnit:           "UNIT",
	OpUndefined:      "UNDEFINED",
	OpPop:            "POP",
	OpGetLocal:       "GET_LOCAL",
	OpSetLocal:       "SET_LOCAL",
	OpGetUpvalue:     "GET_UPVALUE",
	OpSetUpvalue:     "SET_UPVALUE",
	OpGetGlobal:      "GET_GLOBAL",
	OpDefineGlobal:   "DEFINE_GLOBAL",
	OpSetGlobal:      "SET_GLOBAL",
	OpGetProperty:    "GET_PROPERTY",
	OpSetProperty:    "SET_PROPERTY",
	OpGetSuper:       "GET_SUPER",
	OpEqual:          "EQUAL",
	OpNot:            "NOT",
	OpNegate:         "NEGATE",
	OpJump:           "JUMP",
	OpJumpIfFalse:    "JUMP_IF_FALSE",
	OpLoop:           "LOOP",
	OpCall:           "CALL",
	OpCallInfix:      "CALL_INFIX",
	OpCallPostfix:    "CALL_POSTFIX",
	OpInvoke:         "INVOKE",
	OpSuperInvoke:    "SUPER_INVOKE",
	OpReturn:         "RETURN",
	OpImplicitReturn: "IMPLICIT_RETURN",
	OpClosure:        "CLOSURE",
	OpCloseUpvalue:   "CLOSE_UPVALUE",
	OpClass:          "CLASS",
	OpInherit:        "INHERIT",
	OpMethod:         "METHOD",
	OpSign:           "SIGN",
	OpOverload:       "OVERLOAD",
	OpSubscriptGet:   "SUBSCRIPT_GET",
	OpSubscriptSet:   "SUBSCRIPT_SET",
	OpMember:         "MEMBER",
	OpSpread:         "SPREAD",
	OpDestructure:    "DESTRUCTURE",
	OpPrint:          "PRINT",
	OpExprStatement:  "EXPR_STATEMENT",
	OpImport:         "IMPORT",
	OpThrow:          "THROW",
	OpSetTypeLocal:   "SET_TYPE_LOCAL",
	OpSetTypeGlobal:  "SET_TYPE_GLOBAL",
}

func (op Opcode) String() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return "UNKNOWN"
}
