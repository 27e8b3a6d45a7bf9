package ecma

import (
	"math"
	"math/big"
)

// toPrimitive implements ToPrimitive(hint) for any Value (spec.md §4.1
// operator semantics).
func toPrimitive(v Value, hint string) Value {
	if o, ok := v.(*Object); ok {
		return o.ToPrimitive(hint)
	}
	return v
}

func isBigInt(v Value) bool {
	_, ok := v.(valueBigInt)
	return ok
}

func isNumberLike(v Value) bool {
	switch v.(type) {
	case valueFloat, valueBigInt:
		return true
	}
	return false
}

// toNumeric implements ToNumeric: ToPrimitive(number) then, if the result
// is already a BigInt, pass through; otherwise ToNumber.
func toNumeric(v Value) Value {
	prim := toPrimitive(v, "number")
	if isBigInt(prim) {
		return prim
	}
	return valueFloat(prim.ToNumber())
}

// evalBinary implements the binary operator table (spec.md §4.1).
func evalBinary(ctx *EvalContext, op BinaryOp, left, right Value) (Value, error) {
	switch op {
	case OpAdd:
		lp := toPrimitive(left, "default")
		rp := toPrimitive(right, "default")
		_, lIsStr := lp.(valueString)
		_, rIsStr := rp.(valueString)
		if lIsStr || rIsStr {
			return StringValue(lp.ToString() + rp.ToString()), nil
		}
		ln := toNumeric(lp)
		rn := toNumeric(rp)
		if err := checkBigIntMix(ln, rn); err != nil {
			return nil, err
		}
		if isBigInt(ln) {
			return BigIntValue(new(big.Int).Add(ln.(valueBigInt).n, rn.(valueBigInt).n)), nil
		}
		return valueFloat(ln.ToNumber() + rn.ToNumber()), nil
	case OpSub, OpMul, OpDiv, OpMod, OpExp:
		ln := toNumeric(left)
		rn := toNumeric(right)
		if err := checkBigIntMix(ln, rn); err != nil {
			return nil, err
		}
		if isBigInt(ln) {
			return bigIntArith(ctx, op, ln.(valueBigInt).n, rn.(valueBigInt).n)
		}
		return valueFloat(floatArith(op, ln.ToNumber(), rn.ToNumber())), nil
	case OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr, OpUShr:
		return evalBitwise(op, left, right)
	case OpEq:
		return BoolValue(looseEquals(left, right)), nil
	case OpNeq:
		return BoolValue(!looseEquals(left, right)), nil
	case OpStrictEq:
		return BoolValue(strictEquals(left, right)), nil
	case OpStrictNeq:
		return BoolValue(!strictEquals(left, right)), nil
	case OpLt, OpLte, OpGt, OpGte:
		return evalRelational(op, left, right)
	case OpIn:
		o, ok := right.(*Object)
		if !ok {
			return nil, NewTypeError(ctx.Realm, "Cannot use 'in' operator to search for '%s' in non-object", left.ToString())
		}
		return BoolValue(o.HasProperty(ToPropertyKey(left))), nil
	case OpInstanceof:
		return evalInstanceof(ctx, left, right)
	}
	return nil, newHostError(HostErrUnsupportedNode, ctx.SourceRef, "unsupported binary operator %q", op)
}

func checkBigIntMix(l, r Value) error {
	if isBigInt(l) != isBigInt(r) {
		return NewTypeErrorNoRealm("Cannot mix BigInt and other types, use explicit conversions")
	}
	return nil
}

func floatArith(op BinaryOp, l, r float64) float64 {
	switch op {
	case OpSub:
		return l - r
	case OpMul:
		return l * r
	case OpDiv:
		return l / r
	case OpMod:
		return math.Mod(l, r)
	case OpExp:
		return math.Pow(l, r)
	}
	return math.NaN()
}

func bigIntArith(ctx *EvalContext, op BinaryOp, l, r *big.Int) (Value, error) {
	switch op {
	case OpSub:
		return BigIntValue(new(big.Int).Sub(l, r)), nil
	case OpMul:
		return BigIntValue(new(big.Int).Mul(l, r)), nil
	case OpDiv:
		if r.Sign() == 0 {
			return nil, NewRangeError(ctx.Realm, "Division by zero")
		}
		return BigIntValue(new(big.Int).Quo(l, r)), nil
	case OpMod:
		if r.Sign() == 0 {
			return nil, NewRangeError(ctx.Realm, "Division by zero")
		}
		return BigIntValue(new(big.Int).Rem(l, r)), nil
	case OpExp:
		if r.Sign() < 0 {
			return nil, NewRangeError(ctx.Realm, "Exponent must be non-negative")
		}
		return BigIntValue(new(big.Int).Exp(l, r, nil)), nil
	}
	return nil, NewTypeErrorNoRealm("unsupported bigint operator %q", op)
}

func toInt32(v Value) int32 {
	n := v.ToNumber()
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int32(uint32(int64(n)))
}

func toUint32(v Value) uint32 {
	n := v.ToNumber()
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return uint32(int64(n))
}

func evalBitwise(op BinaryOp, left, right Value) (Value, error) {
	if isBigInt(left) || isBigInt(right) {
		if !isBigInt(left) || !isBigInt(right) {
			return nil, NewTypeErrorNoRealm("Cannot mix BigInt and other types, use explicit conversions")
		}
		l, r := left.(valueBigInt).n, right.(valueBigInt).n
		switch op {
		case OpBitAnd:
			return BigIntValue(new(big.Int).And(l, r)), nil
		case OpBitOr:
			return BigIntValue(new(big.Int).Or(l, r)), nil
		case OpBitXor:
			return BigIntValue(new(big.Int).Xor(l, r)), nil
		case OpShl:
			return BigIntValue(new(big.Int).Lsh(l, uint(r.Int64()))), nil
		case OpShr:
			return BigIntValue(new(big.Int).Rsh(l, uint(r.Int64()))), nil
		default:
			return nil, NewTypeErrorNoRealm("BigInts have no unsigned right shift, use >> instead")
		}
	}
	switch op {
	case OpBitAnd:
		return valueFloat(float64(toInt32(left) & toInt32(right))), nil
	case OpBitOr:
		return valueFloat(float64(toInt32(left) | toInt32(right))), nil
	case OpBitXor:
		return valueFloat(float64(toInt32(left) ^ toInt32(right))), nil
	case OpShl:
		shift := toUint32(right) & 0x1F
		return valueFloat(float64(toInt32(left) << shift)), nil
	case OpShr:
		shift := toUint32(right) & 0x1F
		return valueFloat(float64(toInt32(left) >> shift)), nil
	case OpUShr:
		shift := toUint32(right) & 0x1F
		return valueFloat(float64(toUint32(left) >> shift)), nil
	}
	return nil, NewTypeErrorNoRealm("unsupported bitwise operator %q", op)
}

func evalRelational(op BinaryOp, left, right Value) (Value, error) {
	lp := toPrimitive(left, "number")
	rp := toPrimitive(right, "number")
	ls, lIsStr := lp.(valueString)
	rs, rIsStr := rp.(valueString)
	if lIsStr && rIsStr {
		switch op {
		case OpLt:
			return BoolValue(ls < rs), nil
		case OpLte:
			return BoolValue(ls <= rs), nil
		case OpGt:
			return BoolValue(ls > rs), nil
		case OpGte:
			return BoolValue(ls >= rs), nil
		}
	}
	ln, rn := lp.ToNumber(), rp.ToNumber()
	if math.IsNaN(ln) || math.IsNaN(rn) {
		return _false, nil
	}
	switch op {
	case OpLt:
		return BoolValue(ln < rn), nil
	case OpLte:
		return BoolValue(ln <= rn), nil
	case OpGt:
		return BoolValue(ln > rn), nil
	case OpGte:
		return BoolValue(ln >= rn), nil
	}
	return _false, nil
}

func strictEquals(a, b Value) bool {
	if ao, ok := a.(*Object); ok {
		bo, ok2 := b.(*Object)
		return ok2 && ao == bo
	}
	if _, ok := b.(*Object); ok {
		return false
	}
	if a.typeName() != b.typeName() {
		return false
	}
	switch av := a.(type) {
	case valueFloat:
		bv := b.(valueFloat)
		return float64(av) == float64(bv)
	case valueString:
		return av == b.(valueString)
	case valueBool:
		return av == b.(valueBool)
	case valueBigInt:
		return av.n.Cmp(b.(valueBigInt).n) == 0
	case *Symbol:
		return av == b.(*Symbol)
	case valueUndefined:
		return true
	case valueNull:
		return true
	}
	return false
}

func looseEquals(a, b Value) bool {
	if strictEquals(a, b) {
		return true
	}
	aNullish, bNullish := IsNullish(a), IsNullish(b)
	if aNullish || bNullish {
		return aNullish && bNullish
	}
	_, aObj := a.(*Object)
	_, bObj := b.(*Object)
	if aObj && !bObj {
		return looseEquals(toPrimitive(a, "default"), b)
	}
	if bObj && !aObj {
		return looseEquals(a, toPrimitive(b, "default"))
	}
	if aObj && bObj {
		return false
	}
	if isBigInt(a) != isBigInt(b) {
		an, bn := toBigIntOrNumber(a), toBigIntOrNumber(b)
		return numericLooseEqual(an, bn)
	}
	return a.ToNumber() == b.ToNumber()
}

func toBigIntOrNumber(v Value) Value { return v }

func numericLooseEqual(a, b Value) bool {
	af, aIsBI := a.(valueBigInt)
	bf, bIsBI := b.(valueBigInt)
	if aIsBI {
		bn := b.ToNumber()
		if math.IsNaN(bn) || math.IsInf(bn, 0) {
			return false
		}
		f, _ := new(big.Float).SetInt(af.n).Float64()
		return f == bn
	}
	if bIsBI {
		an := a.ToNumber()
		if math.IsNaN(an) || math.IsInf(an, 0) {
			return false
		}
		f, _ := new(big.Float).SetInt(bf.n).Float64()
		return an == f
	}
	return a.ToNumber() == b.ToNumber()
}

// evalInstanceof honors @@hasInstance before OrdinaryHasInstance (spec.md
// §4.1).
func evalInstanceof(ctx *EvalContext, left, right Value) (Value, error) {
	ro, ok := right.(*Object)
	if !ok {
		return nil, NewTypeError(ctx.Realm, "Right-hand side of 'instanceof' is not callable")
	}
	if hi := ro.Get(ctx.Realm.SymHasInstance); !IsNullish(hi) {
		if fn, ok := hi.(*Object); ok && fn.callable != nil {
			res, err := fn.callable.invoke(FunctionCall{This: ro, Args: []Value{left}})
			if err != nil {
				return nil, err
			}
			return BoolValue(res.ToBoolean()), nil
		}
	}
	if ro.callable == nil {
		return nil, NewTypeError(ctx.Realm, "Right-hand side of 'instanceof' is not callable")
	}
	lo, ok := left.(*Object)
	if !ok {
		return _false, nil
	}
	protoVal := ro.Get(StringKey("prototype"))
	proto, ok := protoVal.(*Object)
	if !ok {
		return nil, NewTypeError(ctx.Realm, "Function has non-object prototype in instanceof check")
	}
	for p := lo.Prototype(); p != nil; p = p.Prototype() {
		if p == proto {
			return _true, nil
		}
	}
	return _false, nil
}

func evalUnary(ctx *EvalContext, op UnaryOp, v Value) (Value, error) {
	switch op {
	case OpUnaryPlus:
		if isBigInt(v) {
			return nil, NewTypeErrorNoRealm("Cannot convert a BigInt value to a number")
		}
		return valueFloat(toPrimitive(v, "number").ToNumber()), nil
	case OpUnaryMinus:
		n := toNumeric(v)
		if isBigInt(n) {
			return BigIntValue(new(big.Int).Neg(n.(valueBigInt).n)), nil
		}
		return valueFloat(-n.ToNumber()), nil
	case OpNot:
		return BoolValue(!v.ToBoolean()), nil
	case OpBitNot:
		n := toNumeric(v)
		if isBigInt(n) {
			return BigIntValue(new(big.Int).Not(n.(valueBigInt).n)), nil
		}
		return valueFloat(float64(^toInt32(n))), nil
	case OpTypeof:
		return StringValue(v.typeName()), nil
	case OpVoid:
		return _undefined, nil
	}
	return nil, NewTypeErrorNoRealm("unsupported unary operator %q", op)
}
