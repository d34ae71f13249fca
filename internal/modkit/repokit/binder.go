package repokit

// Binder binds a repo to a Queryer: the pool for single statements or a tx
// handle inside WithTx
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a function to Binder
type BindFunc[T any] func(Queryer) T

// Bind calls f
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// MustBind panics on a nil Queryer, then binds
func MustBind[T any](b Binder[T], q Queryer) T {
	if q == nil {
		panic("repokit: nil Queryer")
	}
	return b.Bind(q)
}
