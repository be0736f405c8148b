// Package content stores extracted image bytes and hands back stable
// references that the state API can serve.
package content

// Ref points at one stored item: the public URL consumers see and the
// backing file path.
type Ref struct {
	URL  string
	Path string
}

// Store accepts a suggested filename and raw bytes. Failures are
// per-item; callers treat them as non-fatal and skip the item.
type Store interface {
	Put(name string, data []byte) (Ref, error)
}
