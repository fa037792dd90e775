//go:build !unix

package page

func decommit(region []byte) error {
	return nil
}
