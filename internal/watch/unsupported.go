//go:build !linux

package watch

func newService() (Service, error) {
	return nil, ErrUnsupported
}
