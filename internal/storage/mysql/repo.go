package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/elevityx/truckeelights/internal/domain"
)

const dupEntryErrNo = 1062

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// CreateHouse persists a draft house and returns it with the server-assigned
// id and timestamp. The normalized_address UNIQUE key is the backstop for the
// check-then-act race: a losing writer gets ErrDuplicateAddress, not a
// duplicate row.
func (r *Repo) CreateHouse(ctx context.Context, h domain.House) (domain.House, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, insertHouseSQL,
		id,
		h.Address,
		h.NormalizedAddress,
		h.Location.Lat,
		h.Location.Lng,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == dupEntryErrNo {
			return domain.House{}, domain.ErrDuplicateAddress
		}
		return domain.House{}, fmt.Errorf("insert house: %w", err)
	}
	return r.GetHouse(ctx, id)
}

func (r *Repo) GetHouse(ctx context.Context, id string) (domain.House, error) {
	var h domain.House
	err := r.db.QueryRowContext(ctx, getHouseSQL, id).Scan(
		&h.ID, &h.Address, &h.NormalizedAddress, &h.Location.Lat, &h.Location.Lng, &h.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.House{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.House{}, fmt.Errorf("get house: %w", err)
	}
	return h, nil
}

func (r *Repo) ExistsNormalized(ctx context.Context, normalized string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, existsHouseSQL, normalized).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists house: %w", err)
	}
	return exists, nil
}

func (r *Repo) ListHouses(ctx context.Context) ([]domain.House, error) {
	rows, err := r.db.QueryContext(ctx, listHousesSQL)
	if err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}
	defer rows.Close()

	var out []domain.House
	for rows.Next() {
		var h domain.House
		if err := rows.Scan(&h.ID, &h.Address, &h.NormalizedAddress, &h.Location.Lat, &h.Location.Lng, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan house: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate houses: %w", err)
	}
	return out, nil
}

func (r *Repo) InsertPhoto(ctx context.Context, p domain.Photo) (domain.Photo, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, insertPhotoSQL,
		id,
		p.HouseID,
		p.DownloadURL,
		p.StoragePath,
		p.FileName,
	)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("insert photo: %w", err)
	}

	var out domain.Photo
	err = r.db.QueryRowContext(ctx, getPhotoSQL, id).Scan(
		&out.ID, &out.HouseID, &out.DownloadURL, &out.StoragePath, &out.FileName, &out.UploadedAt, &out.Reviewed,
	)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("read back photo: %w", err)
	}
	return out, nil
}

func (r *Repo) ListPhotos(ctx context.Context, houseID string) ([]domain.Photo, error) {
	rows, err := r.db.QueryContext(ctx, listPhotosSQL, houseID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var out []domain.Photo
	for rows.Next() {
		var p domain.Photo
		if err := rows.Scan(&p.ID, &p.HouseID, &p.DownloadURL, &p.StoragePath, &p.FileName, &p.UploadedAt, &p.Reviewed); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return out, nil
}

// ApprovePhoto flips reviewed to true. MySQL reports zero affected rows both
// for a missing photo and for an already-approved one, so a follow-up
// existence check separates the two.
func (r *Repo) ApprovePhoto(ctx context.Context, houseID, photoID string) error {
	res, err := r.db.ExecContext(ctx, approvePhotoSQL, photoID, houseID)
	if err != nil {
		return fmt.Errorf("approve photo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve photo rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, photoExistsSQL, photoID, houseID).Scan(&exists); err != nil {
		return fmt.Errorf("approve photo check: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil // already approved
}

var (
	_ domain.HouseRepository = (*Repo)(nil)
	_ domain.PhotoRepository = (*Repo)(nil)
)
