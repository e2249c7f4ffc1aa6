package wasm

import "github.com/pkg/errors"

func errTypeIndexOutOfRange(idx int64) error {
	return errors.Errorf("wasm: type index %d out of range", idx)
}
