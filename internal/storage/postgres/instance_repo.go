package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atendezap/atendezap/internal/storage/model"
)

type instanceRepo struct {
	db *DB
}

func NewInstanceRepository(db *DB) *instanceRepo {
	return &instanceRepo{db: db}
}

const instanceColumns = `id, name, owner_user_id, status, COALESCE(phone_number, ''), COALESCE(qr_code, ''), qr_updated_at, COALESCE(instance_token, ''), ai_enabled, created_at, updated_at`

func (r *instanceRepo) Create(ctx context.Context, inst model.Instance) (model.Instance, error) {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	now := time.Now()
	inst.CreatedAt = now
	inst.UpdatedAt = now

	query := `
		INSERT INTO instances (id, name, owner_user_id, status, phone_number, qr_code, qr_updated_at, instance_token, ai_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + instanceColumns + `
	`

	err := r.db.Pool.QueryRow(ctx, query,
		inst.ID, inst.Name, inst.OwnerUserID, string(inst.Status), nullIfEmpty(inst.PhoneNumber), nullIfEmpty(inst.QRCode), inst.QRUpdatedAt, nullIfEmpty(inst.Token), inst.AIEnabled, inst.CreatedAt, inst.UpdatedAt,
	).Scan(
		&inst.ID, &inst.Name, &inst.OwnerUserID, &inst.Status, &inst.PhoneNumber, &inst.QRCode, &inst.QRUpdatedAt, &inst.Token, &inst.AIEnabled, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return model.Instance{}, err
	}

	return inst, nil
}

func (r *instanceRepo) GetByID(ctx context.Context, id string) (model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *instanceRepo) GetByName(ctx context.Context, name string) (model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE name = $1`
	return r.scanOne(ctx, query, name)
}

func (r *instanceRepo) scanOne(ctx context.Context, query string, arg any) (model.Instance, error) {
	var inst model.Instance
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&inst.ID, &inst.Name, &inst.OwnerUserID, &inst.Status, &inst.PhoneNumber, &inst.QRCode, &inst.QRUpdatedAt, &inst.Token, &inst.AIEnabled, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Instance{}, ErrNotFound
	}
	if err != nil {
		return model.Instance{}, err
	}
	return inst, nil
}

func (r *instanceRepo) List(ctx context.Context) ([]model.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		var inst model.Instance
		if err := rows.Scan(
			&inst.ID, &inst.Name, &inst.OwnerUserID, &inst.Status, &inst.PhoneNumber, &inst.QRCode, &inst.QRUpdatedAt, &inst.Token, &inst.AIEnabled, &inst.CreatedAt, &inst.UpdatedAt,
		); err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}

	return instances, rows.Err()
}

func (r *instanceRepo) Update(ctx context.Context, inst model.Instance) (model.Instance, error) {
	inst.UpdatedAt = time.Now()

	query := `
		UPDATE instances
		SET name = $2, owner_user_id = $3, status = $4, phone_number = $5, qr_code = $6, qr_updated_at = $7, instance_token = $8, ai_enabled = $9, updated_at = $10
		WHERE id = $1
		RETURNING ` + instanceColumns + `
	`

	err := r.db.Pool.QueryRow(ctx, query,
		inst.ID, inst.Name, inst.OwnerUserID, string(inst.Status), nullIfEmpty(inst.PhoneNumber), nullIfEmpty(inst.QRCode), inst.QRUpdatedAt, nullIfEmpty(inst.Token), inst.AIEnabled, inst.UpdatedAt,
	).Scan(
		&inst.ID, &inst.Name, &inst.OwnerUserID, &inst.Status, &inst.PhoneNumber, &inst.QRCode, &inst.QRUpdatedAt, &inst.Token, &inst.AIEnabled, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Instance{}, ErrNotFound
	}
	if err != nil {
		return model.Instance{}, err
	}

	return inst, nil
}

func (r *instanceRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM instances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
