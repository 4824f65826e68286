package query

import "strconv"

// ArgBinder collects query arguments and hands out numbered pgx
// placeholders, so filter predicates can be composed without keeping
// track of parameter positions by hand.
type ArgBinder struct {
	args []any
}

func NewArgBinder() *ArgBinder {
	return &ArgBinder{}
}

// Bind registers v as the next argument and returns its placeholder.
func (b *ArgBinder) Bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *ArgBinder) Args() []any {
	return b.args
}
