//go:build !cgo || !(linux || darwin)

package pvnative

func open(string) (Library, error) {
	return nil, ErrUnavailable
}
