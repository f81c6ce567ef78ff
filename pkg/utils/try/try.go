// Package try turns (value, error) pairs into a value or a fatal stop.
//
//	cfg := try.To(configs.Load(path)).OrFatal(logger)
package try

// Fataler is something with `Fatal`, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either is a (T, error) pair.
//
// It is "ok" when the error is nil, and then T is valid.
type Either[T any] interface {
	// Get returns the pair as it is.
	Get() (T, error)

	// OrFatal returns T if ok. Otherwise it calls ftl.Fatal(err).
	//
	// If ftl has `Helper()` (like *testing.T), that is called before Fatal.
	OrFatal(ftl Fataler) T

	// OrDefault returns T if ok, otherwise d.
	OrDefault(d T) T
}

func To[T any](ok T, ng error) Either[T] {
	if ng == nil {
		return tryOk[T]{ok}
	}
	return tryNg[T]{ng}
}

type tryOk[T any] struct {
	value T
}

type tryNg[T any] struct {
	err error
}

func (ok tryOk[T]) Get() (T, error) {
	return ok.value, nil
}

func (ng tryNg[T]) Get() (T, error) {
	return *new(T), ng.err
}

func (ok tryOk[T]) OrDefault(T) T {
	return ok.value
}

func (ng tryNg[T]) OrDefault(d T) T {
	return d
}

func (ok tryOk[T]) OrFatal(Fataler) T {
	return ok.value
}

func (ng tryNg[T]) OrFatal(ftl Fataler) T {
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(ng.err)
	return *new(T)
}
