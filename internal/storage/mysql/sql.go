package mysql

const insertHouseSQL = `
INSERT INTO houses
  (id, address, normalized_address, lat, lng)
VALUES
  (?, ?, ?, ?, ?)
`

const getHouseSQL = `
SELECT id, address, normalized_address, lat, lng, created_at
FROM houses
WHERE id = ?
`

const existsHouseSQL = `
SELECT EXISTS(SELECT 1 FROM houses WHERE normalized_address = ?)
`

// Newest houses first; aligns with the index on created_at.
const listHousesSQL = `
SELECT id, address, normalized_address, lat, lng, created_at
FROM houses
ORDER BY created_at DESC, id DESC
`

const insertPhotoSQL = `
INSERT INTO photos
  (id, house_id, download_url, storage_path, file_name, reviewed)
VALUES
  (?, ?, ?, ?, ?, 0)
`

const getPhotoSQL = `
SELECT id, house_id, download_url, storage_path, file_name, uploaded_at, reviewed
FROM photos
WHERE id = ?
`

// Explicitly ordered: callers must never depend on store enumeration order.
const listPhotosSQL = `
SELECT id, house_id, download_url, storage_path, file_name, uploaded_at, reviewed
FROM photos
WHERE house_id = ?
ORDER BY uploaded_at DESC, id DESC
`

// One-way flag; re-approving an approved photo is a no-op.
const approvePhotoSQL = `
UPDATE photos SET reviewed = 1 WHERE id = ? AND house_id = ?
`

const photoExistsSQL = `
SELECT EXISTS(SELECT 1 FROM photos WHERE id = ? AND house_id = ?)
`
