package model

import "errors"

// ErrNotFound é o sentinela compartilhado por todos os drivers de storage.
var ErrNotFound = errors.New("not found")
