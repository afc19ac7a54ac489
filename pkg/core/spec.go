package core

// Op is a comparison operator used by Cond.
type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "<>"
	OpGt   Op = ">"
	OpGte  Op = ">="
	OpLt   Op = "<"
	OpLte  Op = "<="
	OpLike Op = "LIKE"
	OpIn   Op = "IN"
)

// Cond compares a column with a value.
type Cond struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Cond { return Cond{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Cond { return Cond{Field: field, Op: OpNe, Value: v} }
func Gt(field string, v any) Cond { return Cond{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Cond { return Cond{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Cond { return Cond{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Cond { return Cond{Field: field, Op: OpLte, Value: v} }
func Like(field string, v any) Cond { return Cond{Field: field, Op: OpLike, Value: v} }
func In(field string, v any) Cond { return Cond{Field: field, Op: OpIn, Value: v} }

// Order sorts by a column.
type Order struct {
	Field string
	Desc  bool
}

// Spec is the filter / include / order / paging descriptor handed to repositories.
// All conditions are combined with AND. Adapters without relations ignore Includes.
type Spec struct {
	Where    []Cond
	Includes []string
	OrderBy  []Order
	Skip     int
	Take     int
}

// Where starts a spec from a set of conditions.
func Where(conds ...Cond) Spec {
	return Spec{Where: conds}
}

// And returns a copy of the spec with extra conditions.
func (s Spec) And(conds ...Cond) Spec {
	s.Where = append(append([]Cond(nil), s.Where...), conds...)
	return s
}

// Include returns a copy of the spec with extra includes.
func (s Spec) Include(paths ...string) Spec {
	s.Includes = append(append([]string(nil), s.Includes...), paths...)
	return s
}

// Asc returns a copy of the spec sorted ascending by field after existing orderings.
func (s Spec) Asc(field string) Spec {
	s.OrderBy = append(append([]Order(nil), s.OrderBy...), Order{Field: field})
	return s
}

// Desc returns a copy of the spec sorted descending by field after existing orderings.
func (s Spec) Desc(field string) Spec {
	s.OrderBy = append(append([]Order(nil), s.OrderBy...), Order{Field: field, Desc: true})
	return s
}

// Page returns a copy of the spec limited to a window. Take <= 0 means no limit.
func (s Spec) Page(skip, take int) Spec {
	s.Skip = skip
	s.Take = take
	return s
}
