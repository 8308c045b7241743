package postgres

import "github.com/atendezap/atendezap/internal/storage/model"

var ErrNotFound = model.ErrNotFound
