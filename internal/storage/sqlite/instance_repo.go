package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Conn.ExecContext(ctx, query,
		inst.ID, inst.Name, inst.OwnerUserID, string(inst.Status),
		nullIfEmpty(inst.PhoneNumber), nullIfEmpty(inst.QRCode), formatTimePtr(inst.QRUpdatedAt),
		nullIfEmpty(inst.Token), inst.AIEnabled,
		inst.CreatedAt.Format(time.RFC3339), inst.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return model.Instance{}, err
	}

	return inst, nil
}

func (r *instanceRepo) GetByID(ctx context.Context, id string) (model.Instance, error) {
	return r.getOne(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id)
}

func (r *instanceRepo) GetByName(ctx context.Context, name string) (model.Instance, error) {
	return r.getOne(ctx, `SELECT `+instanceColumns+` FROM instances WHERE name = ?`, name)
}

func (r *instanceRepo) getOne(ctx context.Context, query string, arg any) (model.Instance, error) {
	row := r.db.Conn.QueryRowContext(ctx, query, arg)
	inst, err := scanInstance(row.Scan)
	if err != nil {
		return model.Instance{}, mapError(err)
	}
	return inst, nil
}

func (r *instanceRepo) List(ctx context.Context) ([]model.Instance, error) {
	rows, err := r.db.Conn.QueryContext(ctx, `SELECT `+instanceColumns+` FROM instances ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
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
		SET name = ?, owner_user_id = ?, status = ?, phone_number = ?, qr_code = ?, qr_updated_at = ?, instance_token = ?, ai_enabled = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn.ExecContext(ctx, query,
		inst.Name, inst.OwnerUserID, string(inst.Status),
		nullIfEmpty(inst.PhoneNumber), nullIfEmpty(inst.QRCode), formatTimePtr(inst.QRUpdatedAt),
		nullIfEmpty(inst.Token), inst.AIEnabled,
		inst.UpdatedAt.Format(time.RFC3339), inst.ID,
	)
	if err != nil {
		return model.Instance{}, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return model.Instance{}, err
	}
	if affected == 0 {
		return model.Instance{}, ErrNotFound
	}

	return inst, nil
}

func (r *instanceRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanInstance(scan func(dest ...any) error) (model.Instance, error) {
	var inst model.Instance
	var createdAt, updatedAt string
	var qrUpdatedAt sql.NullString

	err := scan(
		&inst.ID, &inst.Name, &inst.OwnerUserID, &inst.Status, &inst.PhoneNumber, &inst.QRCode, &qrUpdatedAt, &inst.Token, &inst.AIEnabled, &createdAt, &updatedAt,
	)
	if err != nil {
		return model.Instance{}, err
	}

	inst.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	inst.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if qrUpdatedAt.Valid {
		inst.QRUpdatedAt = parseTimePtr(qrUpdatedAt.String)
	}

	return inst, nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
