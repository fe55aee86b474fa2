package scan

import (
	"bytes"
	"fmt"
	"strings"

	"memcheat/value"
)

// Operation selects how a Predicate judges a value read from memory
type Operation uint8

const (
	Equals Operation = iota
	GreaterThan
	LessThan
	Between
	UnknownInitial

	// relative operations compare against the value seen by the previous pass
	Changed
	Unchanged
	Increased
	Decreased
)

func (op Operation) String() string {
	switch op {
	case Equals:
		return "eq"
	case GreaterThan:
		return "gt"
	case LessThan:
		return "lt"
	case Between:
		return "between"
	case UnknownInitial:
		return "unknown"
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	case Increased:
		return "increased"
	case Decreased:
		return "decreased"
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// ParseOperation maps names such as "eq", "==", "gt", "inc" to an Operation
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eq", "=", "==", "equals", "exact":
		return Equals, nil
	case "gt", ">", "greater":
		return GreaterThan, nil
	case "lt", "<", "less":
		return LessThan, nil
	case "between", "range", "bt":
		return Between, nil
	case "unknown", "any", "?":
		return UnknownInitial, nil
	case "changed", "ch", "!=":
		return Changed, nil
	case "unchanged", "same", "uc":
		return Unchanged, nil
	case "increased", "inc", "+":
		return Increased, nil
	case "decreased", "dec", "-":
		return Decreased, nil
	}
	return 0, fmt.Errorf("%w: unknown operation %q", ErrInvalidPredicate, s)
}

// Operands is the number of comparison values the operation carries
func (op Operation) Operands() int {
	switch op {
	case Equals, GreaterThan, LessThan:
		return 1
	case Between:
		return 2
	}
	return 0
}

// IsRelative reports operations that compare against the previous pass
func (op Operation) IsRelative() bool {
	switch op {
	case Changed, Unchanged, Increased, Decreased:
		return true
	}
	return false
}

// Predicate is a comparison rule over values of one data type
type Predicate struct {
	Op    Operation
	Value value.Value // Equals, GreaterThan, LessThan, lower bound of Between
	Upper value.Value // upper bound of Between
}

// Exactly matches values equal to v
func Exactly(v value.Value) Predicate {
	return Predicate{Op: Equals, Value: v}
}

func GreaterThanValue(v value.Value) Predicate {
	return Predicate{Op: GreaterThan, Value: v}
}

func LessThanValue(v value.Value) Predicate {
	return Predicate{Op: LessThan, Value: v}
}

// Unknown accepts every readable address on the first pass
func Unknown() Predicate {
	return Predicate{Op: UnknownInitial}
}

// Relative returns one of the Changed/Unchanged/Increased/Decreased predicates
func Relative(op Operation) Predicate {
	return Predicate{Op: op}
}

// InRange builds an inclusive Between predicate; bounds may come in either order
func InRange(lo, hi value.Value) (Predicate, error) {
	ord, err := value.Compare(lo, hi)
	if err != nil {
		return Predicate{}, err
	}
	if ord == value.Greater {
		lo, hi = hi, lo
	}
	return Predicate{Op: Between, Value: lo, Upper: hi}, nil
}

// ParsePredicate builds a predicate from an operation name and textual operands
func ParsePredicate(op string, dt value.DataType, args ...string) (Predicate, error) {
	o, err := ParseOperation(op)
	if err != nil {
		return Predicate{}, err
	}
	if len(args) != o.Operands() {
		return Predicate{}, fmt.Errorf("%w: %s takes %d value(s), got %d", ErrInvalidPredicate, o, o.Operands(), len(args))
	}

	vals := make([]value.Value, len(args))
	for i, a := range args {
		v, err := value.Parse(a, dt)
		if err != nil {
			return Predicate{}, err
		}
		vals[i] = v
	}

	switch o {
	case Between:
		return InRange(vals[0], vals[1])
	case Equals, GreaterThan, LessThan:
		return Predicate{Op: o, Value: vals[0]}, nil
	}
	return Predicate{Op: o}, nil
}

func (p Predicate) String() string {
	switch p.Op.Operands() {
	case 1:
		return fmt.Sprintf("%s %s", p.Op, p.Value)
	case 2:
		return fmt.Sprintf("%s %s..%s", p.Op, p.Value, p.Upper)
	}
	return p.Op.String()
}

// validate checks the predicate against the session data type and the pass kind
func (p Predicate) validate(dt value.DataType, first bool) error {
	if first && p.Op.IsRelative() {
		return fmt.Errorf("%w: %s needs a previous pass", ErrInvalidPredicate, p.Op)
	}
	if !first && p.Op == UnknownInitial {
		return fmt.Errorf("%w: unknown initial value is only valid for the first pass", ErrInvalidPredicate)
	}
	if p.Op > Decreased {
		return fmt.Errorf("%w: %s", ErrInvalidPredicate, p.Op)
	}

	if p.Op.Operands() >= 1 && p.Value.Type() != dt {
		return fmt.Errorf("%w: predicate value is %s, scan is %s", value.ErrTypeMismatch, p.Value.Type(), dt)
	}
	if p.Op.Operands() == 2 && p.Upper.Type() != dt {
		return fmt.Errorf("%w: predicate upper bound is %s, scan is %s", value.ErrTypeMismatch, p.Upper.Type(), dt)
	}
	return nil
}

// matcher is a predicate bound to raw operand bytes so passes avoid allocating Values
type matcher struct {
	dt     value.DataType
	op     Operation
	lo, hi []byte
}

func (p Predicate) matcher(dt value.DataType) matcher {
	return matcher{dt: dt, op: p.Op, lo: p.Value.Bytes(), hi: p.Upper.Bytes()}
}

// match judges cur; last is only consulted by relative operations
func (m matcher) match(cur, last []byte) bool {
	switch m.op {
	case UnknownInitial:
		return true
	case Changed:
		return !bytes.Equal(cur, last)
	case Unchanged:
		return bytes.Equal(cur, last)
	case Equals:
		return m.cmp(cur, m.lo) == value.Equal
	case GreaterThan:
		return m.cmp(cur, m.lo) == value.Greater
	case LessThan:
		return m.cmp(cur, m.lo) == value.Less
	case Between:
		lo, hi := m.cmp(cur, m.lo), m.cmp(cur, m.hi)
		return (lo == value.Greater || lo == value.Equal) && (hi == value.Less || hi == value.Equal)
	case Increased:
		return m.cmp(cur, last) == value.Greater
	case Decreased:
		return m.cmp(cur, last) == value.Less
	}
	return false
}

func (m matcher) cmp(a, b []byte) value.Ordering {
	ord, err := value.CompareBytes(m.dt, a, b)
	if err != nil {
		return value.Unordered
	}
	return ord
}
